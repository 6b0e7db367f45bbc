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

package cli

import (
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/launcher"
	"github.com/NVIDIA/distcollect/pkg/serializer"
)

// parseOutputFormat reads and validates --format.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	return serializer.ParseFormat(cmd.String(flagFormat))
}

// configFromCommand layers defaults, the --config file, then explicitly
// set flags and environment variables.
func configFromCommand(cmd *cli.Command) (launcher.Config, error) {
	cfg := launcher.DefaultConfig()

	if path := cmd.String(flagConfig); path != "" {
		if err := serializer.Into(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if cmd.IsSet(flagNumWorkers) {
		cfg.NumWorkers = cmd.Int(flagNumWorkers)
	}
	if cmd.IsSet(flagNumNodes) {
		cfg.NumNodes = cmd.Int(flagNumNodes)
	}
	if cmd.IsSet(flagFramesPerBatch) {
		cfg.FramesPerBatch = cmd.Int(flagFramesPerBatch)
	}
	if cmd.IsSet(flagTotalFrames) {
		cfg.TotalFrames = cmd.Int(flagTotalFrames)
	}
	if cmd.IsSet(flagBackend) {
		cfg.Backend = device.Backend(cmd.String(flagBackend))
	}
	if cmd.IsSet(flagEnv) {
		cfg.Env = cmd.String(flagEnv)
	}
	if cmd.IsSet(flagSeed) {
		cfg.Seed = cmd.Int64(flagSeed)
	}

	cfg.Backend = device.ParseBackend(string(cfg.Backend))
	return cfg, nil
}
