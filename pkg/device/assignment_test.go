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
	"testing"

	"gopkg.in/yaml.v3"

	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		workers int
		want    Key
	}{
		{0, KeyDevice},
		{1, KeyDevice},
		{2, KeyDevices},
		{8, KeyDevices},
	}
	for _, tt := range tests {
		if got := KeyFor(tt.workers); got != tt.want {
			t.Errorf("KeyFor(%d) = %q, want %q", tt.workers, got, tt.want)
		}
	}
}

func TestBuildAssignment_NCCL(t *testing.T) {
	for _, n := range []int{1, 2, 4, 7} {
		a, err := BuildAssignment(BackendNCCL, n, 1)
		if err != nil {
			t.Fatalf("BuildAssignment(nccl, %d) error: %v", n, err)
		}
		if a.Kind != PerNode {
			t.Fatalf("kind = %q, want %q", a.Kind, PerNode)
		}
		if a.Len() != n+1 {
			t.Fatalf("nodes=%d: got %d entries, want %d", n, a.Len(), n+1)
		}
		for i, nd := range a.Nodes {
			want := CUDA(i + 1)
			if nd.Device != want || nd.StoringDevice != want {
				t.Errorf("entry %d = %+v, want %s for both roles", i, nd, want)
			}
			if nd.Key != KeyDevice {
				t.Errorf("entry %d key = %q, want %q", i, nd.Key, KeyDevice)
			}
		}
	}
}

func TestBuildAssignment_NCCLMultiWorker(t *testing.T) {
	a, err := BuildAssignment(BackendNCCL, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	got := a.Nodes[0].Map()
	if got["devices"] != "cuda:1" || got["storing_devices"] != "cuda:1" {
		t.Errorf("Map() = %v", got)
	}
}

func TestBuildAssignment_Gloo(t *testing.T) {
	for _, tc := range []struct{ nodes, workers int }{{1, 1}, {2, 1}, {4, 8}, {16, 2}} {
		a, err := BuildAssignment(BackendGloo, tc.nodes, tc.workers)
		if err != nil {
			t.Fatalf("BuildAssignment(gloo) error: %v", err)
		}
		if a.Kind != Shared || a.Common == nil {
			t.Fatalf("expected a single shared record, got %+v", a)
		}
		if len(a.Nodes) != 0 {
			t.Errorf("shared assignment should not carry a node list, got %d", len(a.Nodes))
		}
		if a.Common.Device != CPU || a.Common.StoringDevice != CPU {
			t.Errorf("shared record = %+v, want cpu for both roles", *a.Common)
		}
		if a.Common.Key != KeyFor(tc.workers) {
			t.Errorf("key = %q, want %q", a.Common.Key, KeyFor(tc.workers))
		}
		for node := 0; node < tc.nodes; node++ {
			nd, err := a.For(node)
			if err != nil || nd != *a.Common {
				t.Errorf("For(%d) = %+v, %v", node, nd, err)
			}
		}
	}
}

func TestBuildAssignment_Unsupported(t *testing.T) {
	for _, b := range []Backend{BackendMPI, "tcp", ""} {
		_, err := BuildAssignment(b, 2, 1)
		if err == nil {
			t.Fatalf("expected error for backend %q", b)
		}
		if !cerrors.IsCode(err, cerrors.ErrCodeUnsupported) {
			t.Errorf("backend %q: expected UNSUPPORTED, got %v", b, err)
		}
	}
}

func TestBuildAssignment_NCCLNodeRange(t *testing.T) {
	for _, n := range []int{0, -1, math.MaxInt, math.MaxInt - 1} {
		_, err := BuildAssignment(BackendNCCL, n, 1)
		if !cerrors.IsCode(err, cerrors.ErrCodeInvalidConfig) {
			t.Errorf("nodes %d: expected INVALID_CONFIG, got %v", n, err)
		}
	}
}

func TestStoringDevice(t *testing.T) {
	if got := StoringDevice(BackendNCCL); got != "cuda:0" {
		t.Errorf("nccl storing device = %q", got)
	}
	for _, b := range []Backend{BackendGloo, BackendMPI, "tcp"} {
		if got := StoringDevice(b); got != CPU {
			t.Errorf("%s storing device = %q, want cpu", b, got)
		}
	}
}

func TestAssignment_For_OutOfRange(t *testing.T) {
	a, _ := BuildAssignment(BackendNCCL, 2, 1)
	if _, err := a.For(3); err == nil {
		t.Error("expected error for node beyond the table")
	}
	if !a.Covers(3) || a.Covers(4) {
		t.Error("Covers() mismatch for 3 entries")
	}
}

func TestNodeDevices_Marshal(t *testing.T) {
	nd := NodeDevices{Key: KeyDevice, Device: CUDA(2), StoringDevice: CUDA(2)}

	j, err := json.Marshal(nd)
	if err != nil {
		t.Fatal(err)
	}
	if string(j) != `{"device":"cuda:2","storing_device":"cuda:2"}` {
		t.Errorf("json = %s", j)
	}

	y, err := yaml.Marshal(nd)
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]string
	if err := yaml.Unmarshal(y, &back); err != nil {
		t.Fatal(err)
	}
	if back["storing_device"] != "cuda:2" {
		t.Errorf("yaml round trip = %v", back)
	}
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"cpu", CPU, false},
		{"CUDA:3", CUDA(3), false},
		{"cuda:", "", true},
		{"cuda:-1", "", true},
		{"tpu:0", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDevice(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDevice(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDevice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBackend(t *testing.T) {
	if ParseBackend(" NCCL ") != BackendNCCL {
		t.Error("expected case-insensitive nccl")
	}
	if b := ParseBackend("tcp"); b.IsKnown() || b.HasAssignmentRule() {
		t.Error("tcp should be unknown")
	}
	if !BackendMPI.IsKnown() || BackendMPI.HasAssignmentRule() {
		t.Error("mpi is known but has no assignment rule")
	}
}
