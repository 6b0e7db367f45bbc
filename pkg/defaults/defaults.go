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

package defaults

import "time"

// Run configuration defaults.
const (
	// NumWorkers is the number of workers in each node.
	NumWorkers = 1

	// NumNodes is the number of collector nodes.
	NumNodes = 4

	// FramesPerBatch is the number of frames in each aggregated batch.
	FramesPerBatch = 800

	// TotalFrames is the frame budget for a run.
	TotalFrames = 2_000_000

	// Backend is the default communication backend.
	Backend = "nccl"

	// Env is the default registered environment.
	Env = "CartPole-v1"

	// LaunchMode is the only supported process-launch mode.
	LaunchMode = "mp"
)

// Run configuration limits.
const (
	// MaxNodes caps num_nodes; nccl assignments allocate one record per node.
	MaxNodes = 1024

	// MaxWorkers caps the number of workers in each node.
	MaxWorkers = 1024
)

// Launcher timeouts.
const (
	// ShutdownTimeout bounds collector shutdown after iteration ends.
	ShutdownTimeout = 30 * time.Second

	// AcceleratorProbeTimeout bounds the nvidia-smi query.
	AcceleratorProbeTimeout = 10 * time.Second
)

// Metrics server timeouts.
const (
	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 10 * time.Second
)

// Progress rendering.
const (
	// ProgressRefreshInterval is the minimum interval between redraws.
	ProgressRefreshInterval = 100 * time.Millisecond
)
