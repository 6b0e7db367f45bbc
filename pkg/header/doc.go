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

// Package header provides the envelope written around distcollect output
// documents.
//
// Every document carries a Kubernetes-style kind, apiVersion, and metadata
// block, with the payload under spec:
//
//	kind: RunSummary
//	apiVersion: distcollect.nvidia.com/v1alpha1
//	metadata:
//	  timestamp: "2025-01-01T00:00:00Z"
//	  version: v0.3.0
//	  runId: 5f0c...
//	spec:
//	  batches: 2500
//	  ...
//
// Usage:
//
//	doc := header.NewDocument(header.KindSummary, version, summary,
//		header.WithMetadata("runId", summary.RunID))
package header
