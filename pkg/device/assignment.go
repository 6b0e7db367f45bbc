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
	"encoding/json"
	"math"
	"strings"

	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

// Key is the role name under which a node's device is configured.
type Key string

const (
	// KeyDevice is used when a node runs a single worker.
	KeyDevice Key = "device"
	// KeyDevices is used when a node fans out to several workers.
	KeyDevices Key = "devices"
)

// KeyFor returns KeyDevice for numWorkers <= 1 and KeyDevices otherwise.
func KeyFor(numWorkers int) Key {
	if numWorkers <= 1 {
		return KeyDevice
	}
	return KeyDevices
}

// Storing returns the storage role name paired with k.
func (k Key) Storing() string {
	return "storing_" + string(k)
}

// NodeDevices places one node: the device it computes on and the device its
// frames are stored on.
type NodeDevices struct {
	Key           Key
	Device        Device
	StoringDevice Device
}

// Map renders n as the role-keyed record, e.g.
// {"device": "cuda:1", "storing_device": "cuda:1"}.
func (n NodeDevices) Map() map[string]string {
	return map[string]string{
		string(n.Key):   string(n.Device),
		n.Key.Storing(): string(n.StoringDevice),
	}
}

// MarshalJSON encodes n in its role-keyed form.
func (n NodeDevices) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Map())
}

// MarshalYAML encodes n in its role-keyed form.
func (n NodeDevices) MarshalYAML() (any, error) {
	return n.Map(), nil
}

// AssignmentKind tells whether an Assignment holds one record per node or a
// single record shared by every node.
type AssignmentKind string

const (
	// PerNode assignments hold an ordered list of records.
	PerNode AssignmentKind = "per-node"
	// Shared assignments hold one record reused for all nodes.
	Shared AssignmentKind = "shared"
)

// Assignment is the derived device table for a run.
type Assignment struct {
	Kind   AssignmentKind `json:"kind" yaml:"kind"`
	Nodes  []NodeDevices  `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Common *NodeDevices   `json:"shared,omitempty" yaml:"shared,omitempty"`
}

// Len returns the number of records held: len(Nodes) for PerNode, 1 for Shared.
func (a Assignment) Len() int {
	if a.Kind == Shared {
		return 1
	}
	return len(a.Nodes)
}

// Covers reports whether a can place numNodes nodes.
func (a Assignment) Covers(numNodes int) bool {
	if a.Kind == Shared {
		return a.Common != nil
	}
	return len(a.Nodes) >= numNodes
}

// For returns the record for the zero-based node index.
func (a Assignment) For(node int) (NodeDevices, error) {
	switch a.Kind {
	case Shared:
		if a.Common == nil {
			return NodeDevices{}, cerrors.New(cerrors.ErrCodeInternal, "shared assignment has no record")
		}
		return *a.Common, nil
	case PerNode:
		if node < 0 || node >= len(a.Nodes) {
			return NodeDevices{}, cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
				"no device assigned to node", map[string]any{
					"node":     node,
					"assigned": len(a.Nodes),
				})
		}
		return a.Nodes[node], nil
	default:
		return NodeDevices{}, cerrors.NewWithContext(cerrors.ErrCodeInternal,
			"unknown assignment kind", map[string]any{"kind": a.Kind})
	}
}

// BuildAssignment derives the device table for backend.
//
// For nccl it returns numNodes+1 per-node records for accelerators
// 1..numNodes+1; callers use the first numNodes. For gloo it returns a single
// shared CPU record regardless of numNodes and numWorkers. Every other backend
// yields an ErrCodeUnsupported error.
func BuildAssignment(backend Backend, numNodes, numWorkers int) (Assignment, error) {
	if !backend.HasAssignmentRule() {
		return Assignment{}, cerrors.NewWithContext(cerrors.ErrCodeUnsupported,
			"backend not supported for device assignment", map[string]any{
				"backend":   string(backend),
				"supported": strings.Join([]string{string(BackendNCCL), string(BackendGloo)}, ","),
			})
	}

	key := KeyFor(numWorkers)
	if backend == BackendGloo {
		return Assignment{
			Kind: Shared,
			Common: &NodeDevices{
				Key:           key,
				Device:        CPU,
				StoringDevice: CPU,
			},
		}, nil
	}

	if numNodes < 1 || numNodes > math.MaxInt-2 {
		return Assignment{}, cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
			"node count out of range for nccl assignment", map[string]any{"nodes": numNodes})
	}
	nodes := make([]NodeDevices, 0, numNodes+1)
	for i := 1; i < numNodes+2; i++ {
		nodes = append(nodes, NodeDevices{
			Key:           key,
			Device:        CUDA(i),
			StoringDevice: CUDA(i),
		})
	}
	return Assignment{Kind: PerNode, Nodes: nodes}, nil
}

// StoringDevice returns the device the aggregated batches are stored on:
// accelerator 0 for nccl, the CPU otherwise.
func StoringDevice(backend Backend) Device {
	if backend == BackendNCCL {
		return CUDA(0)
	}
	return CPU
}
