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

// Package device derives per-node device assignments for a distributed
// collection run.
//
// A run places each collector node on a device and names the device that
// stores the frames it produces. The rule depends on the communication
// backend:
//
//   - nccl: one record per node, node i (1-based) gets accelerator cuda:i for
//     both compute and storage. Accelerator 0 is left to the main process.
//   - gloo: a single shared record placing every node on the CPU.
//   - anything else (including mpi): rejected.
//
// The role name is "device" when each node runs one worker and "devices" when
// it runs several:
//
//	key := device.KeyFor(numWorkers)
//	a, err := device.BuildAssignment(device.BackendNCCL, 4, numWorkers)
//	if err != nil {
//	    return err
//	}
//	nd, _ := a.For(0) // {device: cuda:1, storing_device: cuda:1}
//
// The package also queries nvidia-smi for the accelerators present on the
// host so callers can warn when more nodes are requested than GPUs exist.
package device
