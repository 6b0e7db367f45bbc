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
	"fmt"

	"golang.org/x/sync/errgroup"

	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

// MultiSyncCollector fans a node's share out to several workers, each with
// its own environment, and concatenates their frames in worker order.
type MultiSyncCollector struct {
	node    int
	workers []*SyncCollector
}

// NewMultiSyncCollector builds spec.Workers workers on spec.Devices.Device.
func NewMultiSyncCollector(spec NodeSpec) (*MultiSyncCollector, error) {
	if spec.Workers < 1 {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
			"multi-sync node collector needs at least one worker", map[string]any{"workers": spec.Workers})
	}
	m := &MultiSyncCollector{
		node:    spec.Node,
		workers: make([]*SyncCollector, 0, spec.Workers),
	}
	for w := 0; w < spec.Workers; w++ {
		m.workers = append(m.workers,
			NewSyncCollector(spec.Node, w, spec.Creator.New(), spec.Policy, spec.Devices.Device))
	}
	return m, nil
}

// Workers returns the number of workers.
func (m *MultiSyncCollector) Workers() int {
	return len(m.workers)
}

// Collect implements NodeCollector. frames must divide evenly by the number
// of workers.
func (m *MultiSyncCollector) Collect(ctx context.Context, frames int) ([]Frame, error) {
	n := len(m.workers)
	if frames%n != 0 {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
			"frames must divide evenly across workers", map[string]any{
				"node":    m.node,
				"frames":  frames,
				"workers": n,
			})
	}
	share := frames / n

	results := make([][]Frame, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range m.workers {
		g.Go(func() error {
			fs, err := w.Collect(gctx, share)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Frame, 0, frames)
	for _, fs := range results {
		out = append(out, fs...)
	}
	return out, nil
}

// Shutdown implements NodeCollector.
func (m *MultiSyncCollector) Shutdown(ctx context.Context) error {
	for _, w := range m.workers {
		if err := w.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
