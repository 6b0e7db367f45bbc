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

package collector

import (
	"context"
	"sync/atomic"

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
	"github.com/NVIDIA/distcollect/pkg/policy"
)

// SyncCollector steps a single environment. Episodes carry over between
// calls to Collect: the environment is only reset when an episode ends.
type SyncCollector struct {
	node   int
	worker int
	env    env.Env
	policy policy.Policy
	device device.Device

	obs    env.Observation
	closed atomic.Bool
}

// NewSyncCollector returns a collector for one worker of a node.
func NewSyncCollector(node, worker int, e env.Env, p policy.Policy, d device.Device) *SyncCollector {
	return &SyncCollector{
		node:   node,
		worker: worker,
		env:    e,
		policy: p,
		device: d,
		obs:    e.Reset(),
	}
}

// Collect implements NodeCollector.
func (s *SyncCollector) Collect(ctx context.Context, frames int) ([]Frame, error) {
	if s.closed.Load() {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeInternal, "collector is shut down",
			map[string]any{"node": s.node, "worker": s.worker})
	}

	out := make([]Frame, 0, frames)
	for len(out) < frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		action := s.policy.Action(s.obs)
		next, reward, done := s.env.Step(action)
		out = append(out, Frame{
			Node:        s.node,
			Worker:      s.worker,
			Observation: s.obs,
			Action:      action,
			Reward:      reward,
			Done:        done,
			Device:      s.device,
		})

		if done {
			next = s.env.Reset()
		}
		s.obs = next
	}
	return out, nil
}

// Shutdown implements NodeCollector.
func (s *SyncCollector) Shutdown(_ context.Context) error {
	s.closed.Store(true)
	return nil
}
