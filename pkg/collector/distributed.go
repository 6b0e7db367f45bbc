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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
	"github.com/NVIDIA/distcollect/pkg/policy"
)

// Options configures a DistributedSync collector.
type Options struct {
	// Creators holds one environment creator per node.
	Creators []*env.Creator
	// Policy selects actions for every worker.
	Policy policy.Policy
	// WorkersPerCollector is the number of workers in each node.
	WorkersPerCollector int
	// FramesPerBatch is the size of every aggregated batch.
	FramesPerBatch int
	// TotalFrames is the frame budget. It is rounded up to a multiple of
	// FramesPerBatch.
	TotalFrames int
	// Kind selects the per-node strategy.
	Kind Kind
	// Assignment places nodes on devices.
	Assignment device.Assignment
	// StoringDevice is where aggregated batches are stored.
	StoringDevice device.Device
	// Backend is the communication backend name.
	Backend device.Backend
	// LaunchMode selects how nodes are started.
	LaunchMode LaunchMode
}

// NumNodes returns the number of nodes requested.
func (o Options) NumNodes() int {
	return len(o.Creators)
}

// Validate checks o for values the collector cannot run with.
func (o Options) Validate() error {
	invalid := func(msg string, kv map[string]any) error {
		return cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig, msg, kv)
	}

	nodes := o.NumNodes()
	switch {
	case nodes < 1:
		return invalid("at least one node is required", map[string]any{"nodes": nodes})
	case o.Policy == nil:
		return invalid("policy is required", nil)
	case o.WorkersPerCollector < 1:
		return invalid("workers per collector must be >= 1", map[string]any{"workers": o.WorkersPerCollector})
	case o.FramesPerBatch <= 0:
		return invalid("frames per batch must be > 0", map[string]any{"frames_per_batch": o.FramesPerBatch})
	case o.TotalFrames <= 0:
		return invalid("total frames must be > 0", map[string]any{"total_frames": o.TotalFrames})
	case !o.Kind.IsValid():
		return invalid("unknown collector kind", map[string]any{"kind": o.Kind})
	case o.Kind == KindSync && o.WorkersPerCollector != 1:
		return invalid("sync collector kind requires exactly one worker", map[string]any{"workers": o.WorkersPerCollector})
	case nodes > math.MaxInt/o.WorkersPerCollector:
		return invalid("nodes x workers overflows", map[string]any{
			"nodes":   nodes,
			"workers": o.WorkersPerCollector,
		})
	case o.FramesPerBatch%(nodes*o.WorkersPerCollector) != 0:
		return invalid("frames per batch must be divisible by nodes x workers", map[string]any{
			"frames_per_batch": o.FramesPerBatch,
			"nodes":            nodes,
			"workers":          o.WorkersPerCollector,
		})
	case !o.Assignment.Covers(nodes):
		return invalid("device assignment does not cover every node", map[string]any{
			"nodes":    nodes,
			"assigned": o.Assignment.Len(),
		})
	}

	for i, c := range o.Creators {
		if c == nil {
			return invalid("environment creator is nil", map[string]any{"node": i})
		}
	}
	if _, err := device.ParseDevice(string(o.StoringDevice)); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidConfig, "invalid storing device", err)
	}
	if !o.Backend.IsKnown() {
		return cerrors.NewWithContext(cerrors.ErrCodeUnsupported, "unknown backend",
			map[string]any{"backend": string(o.Backend)})
	}
	if o.LaunchMode != LaunchModeMP {
		return cerrors.NewWithContext(cerrors.ErrCodeUnsupported, "unsupported launch mode",
			map[string]any{
				"launcher":  string(o.LaunchMode),
				"supported": strings.Join(SupportedLaunchModes(), ","),
			})
	}
	return nil
}

// DistributedSync aggregates synchronous batches from several nodes.
type DistributedSync struct {
	opts        Options
	nodes       []NodeCollector
	perNode     int
	totalFrames int

	mu        sync.Mutex
	collected int
	batches   int
	closed    bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewDistributedSync validates opts and builds every node.
func NewDistributedSync(opts Options) (*DistributedSync, error) {
	return newDistributedSync(opts, newNodeCollector)
}

func newDistributedSync(opts Options, build nodeBuilder) (*DistributedSync, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	total := opts.TotalFrames
	if rem := total % opts.FramesPerBatch; rem != 0 {
		total += opts.FramesPerBatch - rem
		slog.Warn("total frames is not a multiple of frames per batch, rounding up",
			slog.Int("requested", opts.TotalFrames),
			slog.Int("total_frames", total),
			slog.Int("frames_per_batch", opts.FramesPerBatch))
	}

	d := &DistributedSync{
		opts:        opts,
		nodes:       make([]NodeCollector, 0, opts.NumNodes()),
		perNode:     opts.FramesPerBatch / opts.NumNodes(),
		totalFrames: total,
	}

	for i, creator := range opts.Creators {
		nd, err := opts.Assignment.For(i)
		if err != nil {
			d.shutdownNodes(context.Background())
			return nil, err
		}
		nc, err := build(opts.Kind, NodeSpec{
			Node:    i,
			Creator: creator,
			Policy:  opts.Policy,
			Workers: opts.WorkersPerCollector,
			Devices: nd,
		})
		if err != nil {
			d.shutdownNodes(context.Background())
			return nil, cerrors.WrapWithContext(cerrors.ErrCodeInternal, "failed to start node", err,
				map[string]any{"node": i})
		}
		d.nodes = append(d.nodes, nc)
		activeNodes.Inc()
		slog.Debug("node started",
			slog.Int("node", i),
			slog.String("kind", opts.Kind.String()),
			slog.String(string(nd.Key), nd.Device.String()),
			slog.String(nd.Key.Storing(), nd.StoringDevice.String()))
	}

	return d, nil
}

// TotalFrames implements Collector.
func (d *DistributedSync) TotalFrames() int {
	return d.totalFrames
}

// Collected returns the number of frames delivered so far.
func (d *DistributedSync) Collected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collected
}

// Next implements Collector. Calls must not overlap.
func (d *DistributedSync) Next(ctx context.Context) (*Batch, error) {
	d.mu.Lock()
	closed, collected, index := d.closed, d.collected, d.batches
	d.mu.Unlock()

	if closed {
		return nil, cerrors.New(cerrors.ErrCodeInternal, "collector is shut down")
	}
	if collected >= d.totalFrames {
		return nil, io.EOF
	}

	start := time.Now()
	results := make([][]Frame, len(d.nodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range d.nodes {
		g.Go(func() error {
			nodeStart := time.Now()
			fs, err := n.Collect(gctx, d.perNode)
			nodeCollectDuration.WithLabelValues(strconv.Itoa(i)).Observe(time.Since(nodeStart).Seconds())
			if err != nil {
				return cerrors.WrapWithContext(cerrors.ErrCodeInternal, "node collection failed", err,
					map[string]any{"node": i})
			}
			framesCollectedTotal.WithLabelValues(strconv.Itoa(i)).Add(float64(len(fs)))
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		batchesTotal.WithLabelValues("error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, cerrors.WrapWithContext(cerrors.ErrCodeCanceled, "collection interrupted", ctxErr,
				map[string]any{"batch": index})
		}
		return nil, err
	}
	batchDuration.WithLabelValues(d.opts.Kind.String()).Observe(time.Since(start).Seconds())
	batchesTotal.WithLabelValues("success").Inc()

	b := &Batch{
		Index:  index,
		Device: d.opts.StoringDevice,
		Frames: make([]Frame, 0, d.opts.FramesPerBatch),
	}
	for _, fs := range results {
		b.Frames = append(b.Frames, fs...)
	}

	d.mu.Lock()
	d.collected += b.Numel()
	d.batches++
	d.mu.Unlock()

	return b, nil
}

// Shutdown implements Collector. Only the first call shuts nodes down; later
// calls return the first result.
func (d *DistributedSync) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.shutdownErr = d.shutdownNodes(ctx)
	})
	return d.shutdownErr
}

func (d *DistributedSync) shutdownNodes(ctx context.Context) error {
	var errs []error
	for i, n := range d.nodes {
		if err := n.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", i, err))
		}
		activeNodes.Dec()
	}
	d.nodes = nil
	return errors.Join(errs...)
}
