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

// Package serializer writes run plans and summaries as JSON, YAML, or a
// flattened table, and reads run configuration files.
//
// Writing:
//
//	w, err := serializer.NewFileWriter(serializer.FormatYAML, path)
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	if err := w.Serialize(ctx, summary); err != nil {
//		return err
//	}
//
// An empty path writes to stdout.
//
// Reading:
//
//	cfg, err := serializer.FromFile[launcher.Config]("run.yaml")
//
// The format of a file is inferred from its extension. Files without a
// recognised extension are read as YAML, which also accepts JSON.
package serializer
