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

// Package cli implements the distcollect command-line interface.
//
// # Usage
//
//	distcollect [flags]
//
// Runs a distributed synchronous collection job. Flags keep the reference
// launcher's underscore names; hyphenated aliases are accepted too.
//
//	--num_workers       workers per collector node (default 1)
//	--num_nodes         collector nodes (default 4)
//	--frames_per_batch  frames per aggregated batch (default 800)
//	--total_frames      frame budget (default 2000000)
//	--backend           nccl, gloo or mpi (default nccl)
//	--env               registered environment (default CartPole-v1)
//	--seed              seed for environments and the policy
//	--config, -c        yaml or json run configuration file
//	--dry-run           print the derived plan and exit
//	--output, -o        write the plan or summary to a file (default: stdout)
//	--format, -t        yaml, json or table (default yaml)
//	--metrics-addr      serve /metrics, /health and /ready while collecting
//	--no-progress       disable the progress bar
//	--log-level         debug, info, warn or error
//
// Configuration precedence, lowest first: built-in defaults, the --config
// file, DISTCOLLECT_* environment variables, command-line flags.
//
// # Examples
//
// Preview the device plan for four nccl nodes:
//
//	distcollect --backend nccl --num_nodes 4 --dry-run --format table
//
// Collect on cpu with two workers per node and keep a summary:
//
//	distcollect --backend gloo --num_workers 2 --total_frames 80000 -o run.json -t json
//
// # Environment Variables
//
//	DISTCOLLECT_NUM_WORKERS, DISTCOLLECT_NUM_NODES, DISTCOLLECT_FRAMES_PER_BATCH,
//	DISTCOLLECT_TOTAL_FRAMES, DISTCOLLECT_BACKEND, DISTCOLLECT_ENV, DISTCOLLECT_SEED,
//	DISTCOLLECT_CONFIG, DISTCOLLECT_DRY_RUN, DISTCOLLECT_OUTPUT, DISTCOLLECT_FORMAT,
//	DISTCOLLECT_METRICS_ADDR, DISTCOLLECT_NO_PROGRESS, DISTCOLLECT_LOG_LEVEL
//	LOG_LEVEL  fallback log level
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, unsupported backend, collector failure)
//	2  Interrupted (SIGINT/SIGTERM)
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/distcollect/pkg/cli.version=1.0.0'"
package cli
