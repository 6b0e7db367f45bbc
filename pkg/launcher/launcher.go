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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NVIDIA/distcollect/pkg/collector"
	"github.com/NVIDIA/distcollect/pkg/defaults"
	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
	"github.com/NVIDIA/distcollect/pkg/policy"
	"github.com/NVIDIA/distcollect/pkg/progress"
)

// State is the lifecycle stage of a run.
type State string

const (
	StateConfiguring  State = "Configuring"
	StateCollecting   State = "Collecting"
	StateShuttingDown State = "ShuttingDown"
	StateTerminated   State = "Terminated"
)

// CollectorFactory creates the distributed collector for a run.
type CollectorFactory = collector.Factory

// AcceleratorProbe reports the accelerators present on the machine.
type AcceleratorProbe func(ctx context.Context) (*device.Inventory, error)

// Summary describes a finished run. Duration is rendered the way
// time.Duration.String does, rounded to milliseconds.
type Summary struct {
	RunID    string `json:"runId" yaml:"runId"`
	Batches  int    `json:"batches" yaml:"batches"`
	Frames   int    `json:"frames" yaml:"frames"`
	Episodes int    `json:"episodes" yaml:"episodes"`
	Duration string `json:"duration" yaml:"duration"`
	State    State  `json:"state" yaml:"state"`
	Plan     *Plan  `json:"plan" yaml:"plan"`
}

// Launcher runs one collection job. A Launcher is not reusable.
type Launcher struct {
	cfg      Config
	factory  CollectorFactory
	progress progress.Reporter
	probe    AcceleratorProbe
	timeout  time.Duration

	mu    sync.Mutex
	state State
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithFactory sets the collector factory.
func WithFactory(f CollectorFactory) Option {
	return func(l *Launcher) {
		l.factory = f
	}
}

// WithProgress sets the progress reporter.
func WithProgress(r progress.Reporter) Option {
	return func(l *Launcher) {
		l.progress = r
	}
}

// WithAcceleratorProbe replaces the nvidia-smi accelerator query.
func WithAcceleratorProbe(p AcceleratorProbe) Option {
	return func(l *Launcher) {
		l.probe = p
	}
}

// WithShutdownTimeout bounds collector shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(l *Launcher) {
		l.timeout = d
	}
}

// New returns a Launcher for cfg.
func New(cfg Config, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:      cfg,
		factory:  collector.NewDefaultFactory(),
		progress: progress.Nop{},
		probe:    device.DetectAccelerators,
		timeout:  defaults.ShutdownTimeout,
		state:    StateConfiguring,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle stage.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Launcher) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()
	slog.Debug("launcher state changed", "from", prev, "to", s)
}

// Run configures the collector, pulls batches until the frame budget is
// spent, and shuts the collector down. The returned Summary is non-nil
// whenever collection started, even if it later failed.
func (l *Launcher) Run(ctx context.Context) (summary *Summary, err error) {
	if s := l.State(); s != StateConfiguring {
		return nil, cerrors.NewWithContext(cerrors.ErrCodeInternal, "launcher already used",
			map[string]any{"state": string(s)})
	}

	start := time.Now()
	runID := uuid.NewString()

	plan, err := BuildPlan(l.cfg)
	if err != nil {
		l.setState(StateTerminated)
		return nil, err
	}

	log := slog.With("run_id", runID)
	for _, w := range l.cfg.Warnings() {
		log.Warn(w,
			"num_nodes", l.cfg.NumNodes,
			"num_workers", l.cfg.NumWorkers,
			"frames_per_batch", l.cfg.FramesPerBatch,
			"total_frames", l.cfg.TotalFrames)
	}
	if plan.Config.Backend == device.BackendNCCL {
		l.checkAccelerators(ctx, log, plan)
	}

	opts, err := l.collectorOptions(plan)
	if err != nil {
		l.setState(StateTerminated)
		return nil, err
	}

	c, err := l.factory.NewCollector(opts)
	if err != nil {
		l.setState(StateTerminated)
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	summary = &Summary{RunID: runID, Plan: plan}

	var once sync.Once
	shutdown := func() error {
		var serr error
		once.Do(func() {
			l.setState(StateShuttingDown)
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
			defer cancel()
			serr = c.Shutdown(sctx)
			l.setState(StateTerminated)
		})
		return serr
	}
	defer func() {
		if serr := shutdown(); serr != nil {
			log.Error("collector shutdown failed", "error", serr)
			err = errors.Join(err, fmt.Errorf("failed to shut down collector: %w", serr))
		}
		summary.Duration = time.Since(start).Round(time.Millisecond).String()
		summary.State = l.State()
	}()

	l.setState(StateCollecting)
	log.Info("collection started",
		"backend", plan.Config.Backend,
		"kind", plan.Kind,
		"nodes", plan.Config.NumNodes,
		"workers", plan.Config.NumWorkers,
		"total_frames", c.TotalFrames())

	l.progress.Start(c.TotalFrames())
	defer l.progress.Finish()

	for {
		batch, nerr := c.Next(ctx)
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			return summary, fmt.Errorf("collection failed after %d batches: %w", summary.Batches, nerr)
		}

		n := batch.Numel()
		summary.Batches++
		summary.Frames += n
		summary.Episodes += batch.Episodes()
		l.progress.Update(n)
		log.Debug("batch collected", "index", batch.Index, "frames", n, "device", batch.Device)
	}

	log.Info("collection finished",
		"batches", summary.Batches,
		"frames", summary.Frames,
		"episodes", summary.Episodes)

	return summary, nil
}

// collectorOptions builds the environment creators and policy for plan.
func (l *Launcher) collectorOptions(plan *Plan) (collector.Options, error) {
	creator, err := env.Lookup(plan.Config.Env, plan.Config.Seed)
	if err != nil {
		return collector.Options{}, cerrors.Wrap(cerrors.ErrCodeInvalidConfig, "failed to resolve environment", err)
	}

	pol, err := policy.NewRandom(creator.ActionSpec(), plan.Config.Seed)
	if err != nil {
		return collector.Options{}, cerrors.Wrap(cerrors.ErrCodeInvalidConfig, "failed to create policy", err)
	}

	creators := make([]*env.Creator, plan.Config.NumNodes)
	for i := range creators {
		creators[i] = creator
	}

	return collector.Options{
		Creators:            creators,
		Policy:              pol,
		WorkersPerCollector: plan.Config.NumWorkers,
		FramesPerBatch:      plan.Config.FramesPerBatch,
		TotalFrames:         plan.Config.TotalFrames,
		Kind:                plan.Kind,
		Assignment:          plan.Assignment,
		StoringDevice:       plan.StoringDevice,
		Backend:             plan.Config.Backend,
		LaunchMode:          plan.LaunchMode,
	}, nil
}

// checkAccelerators warns when the machine has fewer accelerators than the
// assignment references. It never fails the run.
func (l *Launcher) checkAccelerators(ctx context.Context, log *slog.Logger, plan *Plan) {
	if l.probe == nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, defaults.AcceleratorProbeTimeout)
	defer cancel()

	inv, err := l.probe(pctx)
	if err != nil {
		log.Warn("accelerator discovery failed", "error", err)
		return
	}
	if inv.Count() == 0 {
		log.Warn("no accelerators detected, device identifiers are advisory")
		return
	}
	if err := device.CheckCapacity(plan.Assignment, plan.Config.NumNodes, inv); err != nil {
		log.Warn("insufficient accelerators for device assignment", "error", err)
	}
}
