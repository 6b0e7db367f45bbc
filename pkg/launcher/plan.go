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

package launcher

import (
	"fmt"

	"github.com/NVIDIA/distcollect/pkg/collector"
	"github.com/NVIDIA/distcollect/pkg/defaults"
	"github.com/NVIDIA/distcollect/pkg/device"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

// Config holds the user-supplied run parameters.
type Config struct {
	NumWorkers     int            `json:"numWorkers" yaml:"numWorkers"`
	NumNodes       int            `json:"numNodes" yaml:"numNodes"`
	FramesPerBatch int            `json:"framesPerBatch" yaml:"framesPerBatch"`
	TotalFrames    int            `json:"totalFrames" yaml:"totalFrames"`
	Backend        device.Backend `json:"backend" yaml:"backend"`
	Env            string         `json:"env" yaml:"env"`
	Seed           int64          `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		NumWorkers:     defaults.NumWorkers,
		NumNodes:       defaults.NumNodes,
		FramesPerBatch: defaults.FramesPerBatch,
		TotalFrames:    defaults.TotalFrames,
		Backend:        device.Backend(defaults.Backend),
		Env:            defaults.Env,
	}
}

// Validate checks value ranges. Divisibility is not enforced here; see
// Warnings.
func (c Config) Validate() error {
	invalid := func(msg, field string, v int) error {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig, msg, map[string]any{field: v})
	}
	switch {
	case c.NumWorkers < 1:
		return invalid("num_workers must be >= 1", "num_workers", c.NumWorkers)
	case c.NumWorkers > defaults.MaxWorkers:
		return invalid(fmt.Sprintf("num_workers must be <= %d", defaults.MaxWorkers), "num_workers", c.NumWorkers)
	case c.NumNodes < 1:
		return invalid("num_nodes must be >= 1", "num_nodes", c.NumNodes)
	case c.NumNodes > defaults.MaxNodes:
		return invalid(fmt.Sprintf("num_nodes must be <= %d", defaults.MaxNodes), "num_nodes", c.NumNodes)
	case c.FramesPerBatch <= 0:
		return invalid("frames_per_batch must be > 0", "frames_per_batch", c.FramesPerBatch)
	case c.TotalFrames <= 0:
		return invalid("total_frames must be > 0", "total_frames", c.TotalFrames)
	case c.Env == "":
		return cerrors.New(cerrors.ErrCodeInvalidConfig, "env must not be empty")
	}
	return nil
}

// Warnings lists caller-responsibility invariants the config violates.
func (c Config) Warnings() []string {
	var w []string
	if p := c.NumNodes * c.NumWorkers; p > 0 && c.FramesPerBatch%p != 0 {
		w = append(w, "frames_per_batch is not divisible by num_nodes x num_workers")
	}
	if c.FramesPerBatch > 0 && c.TotalFrames%c.FramesPerBatch != 0 {
		w = append(w, "total_frames is not divisible by frames_per_batch")
	}
	return w
}

// Plan is the collector configuration derived from a Config.
type Plan struct {
	Config        Config               `json:"config" yaml:"config"`
	Key           device.Key           `json:"deviceKey" yaml:"deviceKey"`
	Assignment    device.Assignment    `json:"assignment" yaml:"assignment"`
	StoringDevice device.Device        `json:"storingDevice" yaml:"storingDevice"`
	Kind          collector.Kind       `json:"collectorKind" yaml:"collectorKind"`
	LaunchMode    collector.LaunchMode `json:"launcher" yaml:"launcher"`
}

// BuildPlan validates cfg and derives its Plan. It has no side effects.
func BuildPlan(cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	assignment, err := device.BuildAssignment(cfg.Backend, cfg.NumNodes, cfg.NumWorkers)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Config:        cfg,
		Key:           device.KeyFor(cfg.NumWorkers),
		Assignment:    assignment,
		StoringDevice: device.StoringDevice(cfg.Backend),
		Kind:          collector.KindFor(cfg.NumWorkers),
		LaunchMode:    collector.LaunchModeMP,
	}, nil
}
