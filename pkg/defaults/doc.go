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

// Package defaults provides centralized configuration constants for distcollect.
//
// Flag defaults mirror the reference single-machine setup (4 nodes on a
// 5-GPU host, 800 frames per batch, 2M frames). Timeouts bound the few
// operations the launcher performs itself; collection has no deadline of its
// own and runs until the frame budget is spent or the context is cancelled.
//
// # Usage
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.ShutdownTimeout)
//	defer cancel()
//	_ = collector.Shutdown(ctx)
package defaults
