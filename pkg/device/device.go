// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Backend is the inter-process communication transport.
type Backend string

const (
	// BackendNCCL passes data GPU to GPU.
	BackendNCCL Backend = "nccl"
	// BackendGloo passes data through host memory.
	BackendGloo Backend = "gloo"
	// BackendMPI is accepted by the collector but has no device assignment rule.
	BackendMPI Backend = "mpi"
)

// IsKnown reports whether b is one of the recognised backends.
func (b Backend) IsKnown() bool {
	switch b {
	case BackendNCCL, BackendGloo, BackendMPI:
		return true
	default:
		return false
	}
}

// HasAssignmentRule reports whether BuildAssignment can place nodes for b.
func (b Backend) HasAssignmentRule() bool {
	return b == BackendNCCL || b == BackendGloo
}

func (b Backend) String() string {
	return string(b)
}

// ParseBackend normalises s. Unknown names are returned as-is so that the
// rejection happens in one place, BuildAssignment.
func ParseBackend(s string) Backend {
	return Backend(strings.ToLower(strings.TrimSpace(s)))
}

// SupportedBackends returns the recognised backend names.
func SupportedBackends() []string {
	return []string{string(BackendNCCL), string(BackendGloo), string(BackendMPI)}
}

// Device identifies a compute or storage location, e.g. "cpu" or "cuda:1".
type Device string

// CPU is the host device.
const CPU Device = "cpu"

const cudaPrefix = "cuda:"

// CUDA returns the identifier of accelerator i.
func CUDA(i int) Device {
	return Device(cudaPrefix + strconv.Itoa(i))
}

// IsAccelerator reports whether d names a CUDA device.
func (d Device) IsAccelerator() bool {
	return strings.HasPrefix(string(d), cudaPrefix)
}

// Index returns the accelerator ordinal of d.
func (d Device) Index() (int, bool) {
	if !d.IsAccelerator() {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(string(d), cudaPrefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func (d Device) String() string {
	return string(d)
}

// ParseDevice validates s as "cpu" or "cuda:<n>".
func ParseDevice(s string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(s)))
	if d == CPU {
		return d, nil
	}
	if _, ok := d.Index(); ok {
		return d, nil
	}
	return "", fmt.Errorf("invalid device %q: expected cpu or cuda:<index>", s)
}
