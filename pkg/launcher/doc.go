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

// Package launcher configures and drives a distributed synchronous collection run.
//
// A run moves through four states:
//
//	Configuring -> Collecting -> ShuttingDown -> Terminated
//
// Configuring derives a Plan from the Config: the device role key, the
// per-node device assignment, the storing device, and the per-node collector
// strategy. An unsupported backend fails here, before any environment or
// collector is constructed. Collecting pulls batches until the frame budget is
// spent, reporting each batch's frame count to a progress.Reporter. The
// collector is shut down exactly once, including when iteration fails or the
// context is cancelled.
//
//	l := launcher.New(cfg, launcher.WithProgress(progress.NewBar(os.Stderr)))
//	summary, err := l.Run(ctx)
package launcher
