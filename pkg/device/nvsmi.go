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
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

// nvidiaSMICommand is a variable so tests can point it at a missing binary.
var nvidiaSMICommand = "nvidia-smi"

// NVSMIDevice is the subset of `nvidia-smi -q -x` output the launcher reads.
type NVSMIDevice struct {
	XMLName       xml.Name   `xml:"nvidia_smi_log"`
	Timestamp     string     `xml:"timestamp"`
	DriverVersion string     `xml:"driver_version"`
	CudaVersion   string     `xml:"cuda_version"`
	AttachedGPUs  string     `xml:"attached_gpus"`
	GPUs          []NVSMIGPU `xml:"gpu"`
}

// NVSMIGPU describes one attached GPU.
type NVSMIGPU struct {
	ID                  string `xml:"id,attr"`
	ProductName         string `xml:"product_name"`
	ProductArchitecture string `xml:"product_architecture"`
	UUID                string `xml:"uuid"`
	MinorNumber         string `xml:"minor_number"`
	FbMemoryUsage       struct {
		Total string `xml:"total"`
	} `xml:"fb_memory_usage"`
}

// Accelerator is a GPU visible on the host.
type Accelerator struct {
	Index  int    `json:"index" yaml:"index"`
	Model  string `json:"model" yaml:"model"`
	UUID   string `json:"uuid" yaml:"uuid"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// Device returns the cuda identifier of a.
func (a Accelerator) Device() Device {
	return CUDA(a.Index)
}

// Inventory is the set of accelerators found on the host.
type Inventory struct {
	DriverVersion string        `json:"driverVersion,omitempty" yaml:"driverVersion,omitempty"`
	CUDAVersion   string        `json:"cudaVersion,omitempty" yaml:"cudaVersion,omitempty"`
	Accelerators  []Accelerator `json:"accelerators" yaml:"accelerators"`
}

// Count returns the number of accelerators.
func (inv *Inventory) Count() int {
	if inv == nil {
		return 0
	}
	return len(inv.Accelerators)
}

// DetectAccelerators queries nvidia-smi for attached GPUs. A host without
// nvidia-smi yields an empty inventory and no error.
func DetectAccelerators(ctx context.Context) (*Inventory, error) {
	path, err := exec.LookPath(nvidiaSMICommand)
	if err != nil {
		slog.Debug("nvidia-smi not found, assuming no accelerators", slog.String("error", err.Error()))
		return &Inventory{}, nil
	}

	out, err := exec.CommandContext(ctx, path, "-q", "-x").Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodeTimeout, "nvidia-smi query did not complete", ctx.Err())
		}
		return nil, cerrors.Wrap(cerrors.ErrCodeUnavailable, "failed to run nvidia-smi", err)
	}

	return parseInventory(out)
}

func parseSMIDevice(data []byte) (*NVSMIDevice, error) {
	var d NVSMIDevice
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse nvidia-smi output: %w", err)
	}
	return &d, nil
}

func parseInventory(data []byte) (*Inventory, error) {
	d, err := parseSMIDevice(data)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, "invalid nvidia-smi XML", err)
	}

	inv := &Inventory{
		DriverVersion: d.DriverVersion,
		CUDAVersion:   d.CudaVersion,
		Accelerators:  make([]Accelerator, 0, len(d.GPUs)),
	}
	for i, g := range d.GPUs {
		idx := i
		if n, err := strconv.Atoi(strings.TrimSpace(g.MinorNumber)); err == nil {
			idx = n
		}
		inv.Accelerators = append(inv.Accelerators, Accelerator{
			Index:  idx,
			Model:  g.ProductName,
			UUID:   g.UUID,
			Memory: g.FbMemoryUsage.Total,
		})
	}
	return inv, nil
}

// CheckCapacity verifies that assignment only names accelerators present in
// inv. It returns an ErrCodeInvalidConfig error listing the missing devices.
// Shared CPU assignments always pass.
func CheckCapacity(a Assignment, numNodes int, inv *Inventory) error {
	if inv == nil {
		inv = &Inventory{}
	}
	present := make(map[int]bool, inv.Count())
	for _, acc := range inv.Accelerators {
		present[acc.Index] = true
	}

	var missing []string
	for node := 0; node < numNodes; node++ {
		nd, err := a.For(node)
		if err != nil {
			return err
		}
		if i, ok := nd.Device.Index(); ok && !present[i] {
			missing = append(missing, nd.Device.String())
		}
	}
	if len(missing) > 0 {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
			"assigned accelerators not present on host", map[string]any{
				"missing":   strings.Join(missing, ","),
				"available": inv.Count(),
				"nodes":     numNodes,
			})
	}
	return nil
}
