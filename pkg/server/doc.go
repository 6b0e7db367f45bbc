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

// Package server exposes a running collection job over HTTP.
//
// Routes:
//
//	GET /         server name, version, launcher state
//	GET /health   liveness
//	GET /ready    200 while the server is accepting scrapes, 503 otherwise
//	GET /metrics  Prometheus metrics from the default registry
//
// Requests pass through panic recovery, rate limiting, request logging,
// and request metrics.
//
//	srv := server.New(server.WithAddress(":9090"), server.WithStatus(l.State))
//	go srv.Start(ctx)
package server
