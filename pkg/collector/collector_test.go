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
	"io"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
	"github.com/NVIDIA/distcollect/pkg/policy"
)

// countingEnv ends an episode every episodeLen steps.
type countingEnv struct {
	episodeLen int
	t          int
}

func (e *countingEnv) Reset() env.Observation {
	e.t = 0
	return env.Observation{0}
}

func (e *countingEnv) Step(_ int) (env.Observation, float64, bool) {
	e.t++
	return env.Observation{float64(e.t)}, 1, e.t >= e.episodeLen
}

func (e *countingEnv) ActionSpec() env.ActionSpec { return env.ActionSpec{N: 3} }

func countingCreator(episodeLen int) *env.Creator {
	return env.NewCreator("counting", func(_ *rand.Rand) env.Env {
		return &countingEnv{episodeLen: episodeLen}
	}, 0)
}

func testPolicy(t *testing.T) policy.Policy {
	t.Helper()
	p, err := policy.NewRandom(env.ActionSpec{N: 3}, 1)
	require.NoError(t, err)
	return p
}

func glooOptions(t *testing.T, nodes, workers, fpb, total int) Options {
	t.Helper()
	a, err := device.BuildAssignment(device.BackendGloo, nodes, workers)
	require.NoError(t, err)
	creators := make([]*env.Creator, nodes)
	for i := range creators {
		creators[i] = countingCreator(7)
	}
	return Options{
		Creators:            creators,
		Policy:              testPolicy(t),
		WorkersPerCollector: workers,
		FramesPerBatch:      fpb,
		TotalFrames:         total,
		Kind:                KindFor(workers),
		Assignment:          a,
		StoringDevice:       device.StoringDevice(device.BackendGloo),
		Backend:             device.BackendGloo,
		LaunchMode:          LaunchModeMP,
	}
}

func drain(t *testing.T, c Collector) []*Batch {
	t.Helper()
	var out []*Batch
	for {
		b, err := c.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, b)
	}
}

func TestKindFor(t *testing.T) {
	assert.Equal(t, KindSync, KindFor(1))
	assert.Equal(t, KindMultiSync, KindFor(2))
	assert.Equal(t, KindMultiSync, KindFor(8))
	assert.Equal(t, KindMultiSync, KindFor(0))
}

func TestSyncCollector_ResetsOnDone(t *testing.T) {
	s := NewSyncCollector(0, 0, &countingEnv{episodeLen: 3}, testPolicy(t), device.CPU)

	frames, err := s.Collect(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, frames, 7)

	var dones int
	for _, f := range frames {
		if f.Done {
			dones++
		}
		assert.Equal(t, device.CPU, f.Device)
	}
	assert.Equal(t, 2, dones)

	// The episode in progress continues into the next call.
	more, err := s.Collect(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, more[1].Done)
}

func TestSyncCollector_AfterShutdown(t *testing.T) {
	s := NewSyncCollector(0, 0, &countingEnv{episodeLen: 3}, testPolicy(t), device.CPU)
	require.NoError(t, s.Shutdown(context.Background()))
	_, err := s.Collect(context.Background(), 1)
	assert.Error(t, err)
}

func TestSyncCollector_Canceled(t *testing.T) {
	s := NewSyncCollector(0, 0, &countingEnv{episodeLen: 3}, testPolicy(t), device.CPU)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Collect(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMultiSyncCollector_SplitsAcrossWorkers(t *testing.T) {
	m, err := NewMultiSyncCollector(NodeSpec{
		Node:    2,
		Creator: countingCreator(5),
		Policy:  testPolicy(t),
		Workers: 4,
		Devices: device.NodeDevices{Key: device.KeyDevices, Device: device.CUDA(3), StoringDevice: device.CUDA(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, m.Workers())

	frames, err := m.Collect(context.Background(), 40)
	require.NoError(t, err)
	require.Len(t, frames, 40)
	for i, f := range frames {
		assert.Equal(t, i/10, f.Worker, "frames must be grouped in worker order")
		assert.Equal(t, 2, f.Node)
		assert.Equal(t, device.CUDA(3), f.Device)
	}

	_, err = m.Collect(context.Background(), 41)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidConfig))
}

func TestDistributedSync_BatchesUntilBudget(t *testing.T) {
	c, err := NewDistributedSync(glooOptions(t, 2, 1, 100, 300))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	assert.Equal(t, 300, c.TotalFrames())
	batches := drain(t, c)
	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, 100, b.Numel())
		assert.Equal(t, device.CPU, b.Device)
		assert.Equal(t, 0, b.Frames[0].Node)
		assert.Equal(t, 1, b.Frames[50].Node)
	}
	assert.Equal(t, 300, c.Collected())

	// Not restartable.
	_, err = c.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDistributedSync_MultiWorker(t *testing.T) {
	c, err := NewDistributedSync(glooOptions(t, 2, 4, 80, 160))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	batches := drain(t, c)
	require.Len(t, batches, 2)
	seen := map[[2]int]int{}
	for _, f := range batches[0].Frames {
		seen[[2]int{f.Node, f.Worker}]++
	}
	assert.Len(t, seen, 8)
	for k, n := range seen {
		assert.Equal(t, 10, n, "node/worker %v", k)
	}
}

func TestDistributedSync_RoundsTotalUp(t *testing.T) {
	c, err := NewDistributedSync(glooOptions(t, 1, 1, 100, 250))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	assert.Equal(t, 300, c.TotalFrames())
	assert.Len(t, drain(t, c), 3)
}

func TestDistributedSync_NCCLUsesFirstNodes(t *testing.T) {
	opts := glooOptions(t, 3, 1, 30, 30)
	a, err := device.BuildAssignment(device.BackendNCCL, 3, 1)
	require.NoError(t, err)
	opts.Assignment = a
	opts.Backend = device.BackendNCCL
	opts.StoringDevice = device.StoringDevice(device.BackendNCCL)

	c, err := NewDistributedSync(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	b, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, device.Device("cuda:0"), b.Device)
	devs := map[device.Device]bool{}
	for _, f := range b.Frames {
		devs[f.Device] = true
	}
	assert.Equal(t, map[device.Device]bool{"cuda:1": true, "cuda:2": true, "cuda:3": true}, devs)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		code   cerrors.ErrorCode
	}{
		{"no nodes", func(o *Options) { o.Creators = nil }, cerrors.ErrCodeInvalidConfig},
		{"nil policy", func(o *Options) { o.Policy = nil }, cerrors.ErrCodeInvalidConfig},
		{"zero workers", func(o *Options) { o.WorkersPerCollector = 0; o.Kind = KindMultiSync }, cerrors.ErrCodeInvalidConfig},
		{"zero batch", func(o *Options) { o.FramesPerBatch = 0 }, cerrors.ErrCodeInvalidConfig},
		{"zero total", func(o *Options) { o.TotalFrames = 0 }, cerrors.ErrCodeInvalidConfig},
		{"bad kind", func(o *Options) { o.Kind = "async" }, cerrors.ErrCodeInvalidConfig},
		{"sync with workers", func(o *Options) { o.WorkersPerCollector = 2 }, cerrors.ErrCodeInvalidConfig},
		{"indivisible", func(o *Options) { o.FramesPerBatch = 101 }, cerrors.ErrCodeInvalidConfig},
		{"nodes x workers overflow", func(o *Options) {
			o.WorkersPerCollector = math.MaxInt/2 + 1
			o.Kind = KindMultiSync
		}, cerrors.ErrCodeInvalidConfig},
		{"short assignment", func(o *Options) {
			o.Assignment = device.Assignment{Kind: device.PerNode, Nodes: o.Assignment.Nodes}
		}, cerrors.ErrCodeInvalidConfig},
		{"bad storing device", func(o *Options) { o.StoringDevice = "gpu0" }, cerrors.ErrCodeInvalidConfig},
		{"unknown backend", func(o *Options) { o.Backend = "tcp" }, cerrors.ErrCodeUnsupported},
		{"unknown launcher", func(o *Options) { o.LaunchMode = "submitit" }, cerrors.ErrCodeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := glooOptions(t, 2, 1, 100, 300)
			tt.mutate(&opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, tt.code), "got %v", err)
		})
	}

	assert.NoError(t, glooOptions(t, 2, 1, 100, 300).Validate())
}

func TestOptions_ValidateLaunchModeContext(t *testing.T) {
	opts := glooOptions(t, 2, 1, 100, 300)
	opts.LaunchMode = "submitit"

	var se *cerrors.StructuredError
	require.ErrorAs(t, opts.Validate(), &se)
	assert.Equal(t, cerrors.ErrCodeUnsupported, se.Code)
	assert.Equal(t, "submitit", se.Context["launcher"])
	assert.Equal(t, "mp", se.Context["supported"])
}

type stubNode struct {
	collect   func(ctx context.Context, frames int) ([]Frame, error)
	shutdowns atomic.Int32
}

func (s *stubNode) Collect(ctx context.Context, frames int) ([]Frame, error) {
	return s.collect(ctx, frames)
}

func (s *stubNode) Shutdown(_ context.Context) error {
	s.shutdowns.Add(1)
	return nil
}

func TestDistributedSync_NodeFailurePropagates(t *testing.T) {
	boom := errors.New("worker crashed")
	var stubs []*stubNode
	build := func(_ Kind, spec NodeSpec) (NodeCollector, error) {
		s := &stubNode{collect: func(ctx context.Context, n int) ([]Frame, error) {
			if spec.Node == 1 {
				return nil, boom
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		stubs = append(stubs, s)
		return s, nil
	}

	c, err := newDistributedSync(glooOptions(t, 2, 1, 100, 300), build)
	require.NoError(t, err)

	_, err = c.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInternal))

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	for _, s := range stubs {
		assert.Equal(t, int32(1), s.shutdowns.Load(), "each node shuts down exactly once")
	}

	_, err = c.Next(context.Background())
	assert.Error(t, err, "Next after Shutdown must fail")
}

func TestDistributedSync_Canceled(t *testing.T) {
	build := func(_ Kind, _ NodeSpec) (NodeCollector, error) {
		return &stubNode{collect: func(ctx context.Context, _ int) ([]Frame, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}, nil
	}
	c, err := newDistributedSync(glooOptions(t, 2, 1, 100, 300), build)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Next(ctx)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeCanceled), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDistributedSync_StartFailureShutsDownStartedNodes(t *testing.T) {
	var started []*stubNode
	build := func(_ Kind, spec NodeSpec) (NodeCollector, error) {
		if spec.Node == 1 {
			return nil, errors.New("no device")
		}
		s := &stubNode{}
		started = append(started, s)
		return s, nil
	}
	_, err := newDistributedSync(glooOptions(t, 2, 1, 100, 300), build)
	require.Error(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, int32(1), started[0].shutdowns.Load())
}

func TestDistributedSync_Metrics(t *testing.T) {
	batchesBefore := testutil.ToFloat64(batchesTotal.WithLabelValues("success"))
	nodesBefore := testutil.ToFloat64(activeNodes)

	c, err := NewDistributedSync(glooOptions(t, 2, 1, 10, 30))
	require.NoError(t, err)
	assert.Equal(t, nodesBefore+2, testutil.ToFloat64(activeNodes))

	drain(t, c)
	require.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, batchesBefore+3, testutil.ToFloat64(batchesTotal.WithLabelValues("success")))
	assert.Equal(t, nodesBefore, testutil.ToFloat64(activeNodes))
}

func TestBatch_Numel(t *testing.T) {
	var nilBatch *Batch
	assert.Equal(t, 0, nilBatch.Numel())
	b := &Batch{Frames: []Frame{{Done: true}, {}, {Done: true}}}
	assert.Equal(t, 3, b.Numel())
	assert.Equal(t, 2, b.Episodes())
}
