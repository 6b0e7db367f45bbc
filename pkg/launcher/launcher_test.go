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
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/distcollect/pkg/collector"
	"github.com/NVIDIA/distcollect/pkg/device"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
)

type fakeCollector struct {
	fpb, total int
	produced   int
	failAt     int
	block      bool
	shutdowns  int
}

func (c *fakeCollector) Next(ctx context.Context) (*collector.Batch, error) {
	if c.block {
		<-ctx.Done()
		return nil, cerrors.Wrap(cerrors.ErrCodeCanceled, "collection canceled", ctx.Err())
	}
	if c.produced >= c.total {
		return nil, io.EOF
	}
	if c.failAt > 0 && c.produced/c.fpb+1 == c.failAt {
		return nil, cerrors.New(cerrors.ErrCodeInternal, "node 1 failed")
	}
	b := &collector.Batch{Index: c.produced / c.fpb, Device: device.CPU, Frames: make([]collector.Frame, c.fpb)}
	c.produced += c.fpb
	return b, nil
}

func (c *fakeCollector) TotalFrames() int { return c.total }

func (c *fakeCollector) Shutdown(context.Context) error {
	c.shutdowns++
	return nil
}

type fakeFactory struct {
	calls     int
	opts      collector.Options
	collector *fakeCollector
	err       error
}

func (f *fakeFactory) NewCollector(opts collector.Options) (collector.Collector, error) {
	f.calls++
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	if f.collector == nil {
		f.collector = &fakeCollector{}
	}
	f.collector.fpb = opts.FramesPerBatch
	f.collector.total = opts.TotalFrames
	return f.collector, nil
}

type recordingReporter struct {
	total    int
	updates  []int
	finished int
}

func (r *recordingReporter) Start(total int) { r.total = total }
func (r *recordingReporter) Update(n int)    { r.updates = append(r.updates, n) }
func (r *recordingReporter) Finish()         { r.finished++ }

func noProbe(context.Context) (*device.Inventory, error) {
	return &device.Inventory{}, nil
}

func testConfig(backend device.Backend) Config {
	return Config{
		NumWorkers:     1,
		NumNodes:       2,
		FramesPerBatch: 100,
		TotalFrames:    300,
		Backend:        backend,
		Env:            "CartPole-v1",
		Seed:           7,
	}
}

func TestRunGlooSingleWorker(t *testing.T) {
	factory := &fakeFactory{}
	reporter := &recordingReporter{}
	l := New(testConfig(device.BackendGloo), WithFactory(factory), WithProgress(reporter))

	summary, err := l.Run(t.Context())
	require.NoError(t, err)
	require.NotNil(t, summary)

	require.Equal(t, 1, factory.calls)
	opts := factory.opts
	assert.Equal(t, device.Shared, opts.Assignment.Kind)
	require.NotNil(t, opts.Assignment.Common)
	assert.Equal(t, device.CPU, opts.Assignment.Common.Device)
	assert.Equal(t, device.CPU, opts.Assignment.Common.StoringDevice)
	assert.Equal(t, device.KeyDevice, opts.Assignment.Common.Key)
	assert.Equal(t, collector.KindSync, opts.Kind)
	assert.Equal(t, collector.LaunchModeMP, opts.LaunchMode)
	assert.Equal(t, device.CPU, opts.StoringDevice)
	assert.Equal(t, 1, opts.WorkersPerCollector)
	assert.Len(t, opts.Creators, 2)
	assert.Same(t, opts.Creators[0], opts.Creators[1])

	assert.Equal(t, 300, reporter.total)
	assert.Equal(t, []int{100, 100, 100}, reporter.updates)
	assert.Equal(t, 1, reporter.finished)
	assert.Equal(t, 1, factory.collector.shutdowns)

	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 300, summary.Frames)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, StateTerminated, summary.State)
	assert.Equal(t, StateTerminated, l.State())

	_, err = time.ParseDuration(summary.Duration)
	assert.NoError(t, err, "duration %q", summary.Duration)
}

func TestRunRejectsHugeCounts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.NumWorkers = 1 << 62 }},
		{"nodes", func(c *Config) { c.NumNodes = math.MaxInt }},
		{"nccl nodes", func(c *Config) { c.Backend = device.BackendNCCL; c.NumNodes = math.MaxInt - 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeFactory{}
			cfg := testConfig(device.BackendGloo)
			tt.mutate(&cfg)
			l := New(cfg, WithFactory(factory), WithAcceleratorProbe(noProbe))

			var err error
			require.NotPanics(t, func() { _, err = l.Run(t.Context()) })
			require.Error(t, err)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidConfig), "got %v", err)
			assert.Zero(t, factory.calls)
			assert.Equal(t, StateTerminated, l.State())
		})
	}
}

func TestRunUnsupportedBackend(t *testing.T) {
	for _, backend := range []device.Backend{"tcp", device.BackendMPI} {
		t.Run(string(backend), func(t *testing.T) {
			factory := &fakeFactory{}
			reporter := &recordingReporter{}
			l := New(testConfig(backend), WithFactory(factory), WithProgress(reporter))

			summary, err := l.Run(t.Context())
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeUnsupported))
			assert.Zero(t, factory.calls)
			assert.Empty(t, reporter.updates)
			assert.Zero(t, reporter.finished)
			assert.Equal(t, StateTerminated, l.State())
		})
	}
}

func TestRunNCCLPlan(t *testing.T) {
	factory := &fakeFactory{}
	cfg := testConfig(device.BackendNCCL)
	cfg.NumWorkers = 2
	probed := false
	probe := func(context.Context) (*device.Inventory, error) {
		probed = true
		return nil, errors.New("nvidia-smi exploded")
	}

	_, err := New(cfg, WithFactory(factory), WithAcceleratorProbe(probe)).Run(t.Context())
	require.NoError(t, err)
	assert.True(t, probed, "nccl runs should query accelerators")

	opts := factory.opts
	assert.Equal(t, device.PerNode, opts.Assignment.Kind)
	require.Len(t, opts.Assignment.Nodes, 3)
	for i, nd := range opts.Assignment.Nodes {
		assert.Equal(t, device.KeyDevices, nd.Key)
		assert.Equal(t, device.CUDA(i+1), nd.Device)
		assert.Equal(t, device.CUDA(i+1), nd.StoringDevice)
	}
	assert.Equal(t, device.CUDA(0), opts.StoringDevice)
	assert.Equal(t, collector.KindMultiSync, opts.Kind)
}

func TestRunShutsDownOnError(t *testing.T) {
	factory := &fakeFactory{collector: &fakeCollector{failAt: 2}}
	reporter := &recordingReporter{}
	l := New(testConfig(device.BackendGloo), WithFactory(factory), WithProgress(reporter))

	summary, err := l.Run(t.Context())
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInternal))
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, []int{100}, reporter.updates)
	assert.Equal(t, 1, reporter.finished)
	assert.Equal(t, 1, factory.collector.shutdowns)
	assert.Equal(t, StateTerminated, l.State())
}

func TestRunShutsDownOnCancel(t *testing.T) {
	factory := &fakeFactory{collector: &fakeCollector{block: true}}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New(testConfig(device.BackendGloo), WithFactory(factory)).Run(ctx)
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeCanceled))
	assert.Equal(t, 1, factory.collector.shutdowns)
}

func TestRunFactoryError(t *testing.T) {
	factory := &fakeFactory{err: cerrors.New(cerrors.ErrCodeInvalidConfig, "bad options")}
	reporter := &recordingReporter{}
	l := New(testConfig(device.BackendGloo), WithFactory(factory), WithProgress(reporter))

	_, err := l.Run(t.Context())
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidConfig))
	assert.Zero(t, reporter.finished)
	assert.Equal(t, StateTerminated, l.State())
}

func TestRunUnknownEnv(t *testing.T) {
	factory := &fakeFactory{}
	cfg := testConfig(device.BackendGloo)
	cfg.Env = "Pong-v5"

	_, err := New(cfg, WithFactory(factory)).Run(t.Context())
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidConfig))
	assert.Zero(t, factory.calls)
}

func TestRunNotReusable(t *testing.T) {
	l := New(testConfig(device.BackendGloo), WithFactory(&fakeFactory{}))
	_, err := l.Run(t.Context())
	require.NoError(t, err)

	_, err = l.Run(t.Context())
	require.Error(t, err)
}

func TestRunDefaultFactory(t *testing.T) {
	cfg := testConfig(device.BackendGloo)
	cfg.NumWorkers = 2
	reporter := &recordingReporter{}

	summary, err := New(cfg, WithProgress(reporter), WithAcceleratorProbe(noProbe)).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 300, summary.Frames)
	assert.Equal(t, []int{100, 100, 100}, reporter.updates)
}
