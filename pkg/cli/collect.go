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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/distcollect/pkg/defaults"
	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	"github.com/NVIDIA/distcollect/pkg/header"
	"github.com/NVIDIA/distcollect/pkg/launcher"
	"github.com/NVIDIA/distcollect/pkg/progress"
	"github.com/NVIDIA/distcollect/pkg/serializer"
	"github.com/NVIDIA/distcollect/pkg/server"
)

const (
	flagNumWorkers     = "num_workers"
	flagNumNodes       = "num_nodes"
	flagFramesPerBatch = "frames_per_batch"
	flagTotalFrames    = "total_frames"
	flagBackend        = "backend"
	flagEnv            = "env"
	flagSeed           = "seed"
	flagConfig         = "config"
	flagDryRun         = "dry-run"
	flagOutput         = "output"
	flagFormat         = "format"
	flagMetricsAddr    = "metrics-addr"
	flagNoProgress     = "no-progress"
	flagLogLevel       = "log-level"

	envPrefix = "DISTCOLLECT_"
)

// envVar returns the environment variable bound to a flag.
func envVar(flag string) string {
	return envPrefix + strings.ToUpper(strings.NewReplacer("-", "_").Replace(flag))
}

func collectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    flagNumWorkers,
			Aliases: []string{"num-workers"},
			Usage:   "Number of workers in each collector node",
			Value:   defaults.NumWorkers,
			Sources: cli.EnvVars(envVar(flagNumWorkers)),
		},
		&cli.IntFlag{
			Name:    flagNumNodes,
			Aliases: []string{"num-nodes"},
			Usage:   "Number of collector nodes (at most the number of accelerators minus one with nccl)",
			Value:   defaults.NumNodes,
			Sources: cli.EnvVars(envVar(flagNumNodes)),
		},
		&cli.IntFlag{
			Name:    flagFramesPerBatch,
			Aliases: []string{"frames-per-batch"},
			Usage:   "Frames in each batch (should be divisible by num_nodes x num_workers)",
			Value:   defaults.FramesPerBatch,
			Sources: cli.EnvVars(envVar(flagFramesPerBatch)),
		},
		&cli.IntFlag{
			Name:    flagTotalFrames,
			Aliases: []string{"total-frames"},
			Usage:   "Frame budget for the run (should be divisible by frames_per_batch)",
			Value:   defaults.TotalFrames,
			Sources: cli.EnvVars(envVar(flagTotalFrames)),
		},
		&cli.StringFlag{
			Name:    flagBackend,
			Usage:   fmt.Sprintf("Communication backend (supported values: %s)", strings.Join(device.SupportedBackends(), ", ")),
			Value:   defaults.Backend,
			Sources: cli.EnvVars(envVar(flagBackend)),
		},
		&cli.StringFlag{
			Name:    flagEnv,
			Usage:   fmt.Sprintf("Environment to collect from (registered: %s)", strings.Join(env.Registered(), ", ")),
			Value:   defaults.Env,
			Sources: cli.EnvVars(envVar(flagEnv)),
		},
		&cli.Int64Flag{
			Name:    flagSeed,
			Usage:   "Seed for environments and the policy",
			Sources: cli.EnvVars(envVar(flagSeed)),
		},
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "Run configuration file (yaml or json); flags override its values",
			Sources: cli.EnvVars(envVar(flagConfig)),
		},
		&cli.BoolFlag{
			Name:    flagDryRun,
			Usage:   "Print the derived collector plan and exit without collecting",
			Sources: cli.EnvVars(envVar(flagDryRun)),
		},
		&cli.StringFlag{
			Name:    flagOutput,
			Aliases: []string{"o"},
			Usage:   "Write the plan or run summary to this file (default: stdout)",
			Sources: cli.EnvVars(envVar(flagOutput)),
		},
		&cli.StringFlag{
			Name:    flagFormat,
			Aliases: []string{"t"},
			Usage:   fmt.Sprintf("Output format (supported values: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
			Value:   string(serializer.FormatYAML),
			Sources: cli.EnvVars(envVar(flagFormat)),
		},
		&cli.StringFlag{
			Name:    flagMetricsAddr,
			Usage:   "Serve Prometheus metrics and health probes on this address while collecting",
			Sources: cli.EnvVars(envVar(flagMetricsAddr)),
		},
		&cli.BoolFlag{
			Name:    flagNoProgress,
			Usage:   "Disable the progress bar",
			Sources: cli.EnvVars(envVar(flagNoProgress)),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Log level (debug, info, warn, error); defaults to $LOG_LEVEL or info",
			Sources: cli.EnvVars(envVar(flagLogLevel)),
		},
	}
}

func runCollect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}

	format, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool(flagDryRun) {
		plan, err := launcher.BuildPlan(cfg)
		if err != nil {
			return err
		}
		doc := header.NewDocument(header.KindPlan, version, plan)
		return writeOutput(ctx, format, cmd.String(flagOutput), doc)
	}

	var reporter progress.Reporter = progress.Nop{}
	if !cmd.Bool(flagNoProgress) {
		reporter = progress.NewBar(os.Stderr)
	}
	l := launcher.New(cfg, launcher.WithProgress(reporter))

	if addr := cmd.String(flagMetricsAddr); addr != "" {
		stop := startMetricsServer(ctx, addr, l)
		defer stop()
	}

	summary, err := l.Run(ctx)
	if err != nil {
		if summary != nil {
			slog.Error("collection ended early",
				"run_id", summary.RunID,
				"batches", summary.Batches,
				"frames", summary.Frames)
		}
		return err
	}

	slog.Info("run complete",
		"run_id", summary.RunID,
		"batches", summary.Batches,
		"frames", summary.Frames,
		"duration", summary.Duration)

	doc := header.NewDocument(header.KindSummary, version, summary,
		header.WithMetadata("runId", summary.RunID))
	return writeOutput(ctx, format, cmd.String(flagOutput), doc)
}

// startMetricsServer serves metrics in the background. The returned func
// stops the server and waits for it to exit.
func startMetricsServer(ctx context.Context, addr string, l *launcher.Launcher) func() {
	srv := server.New(
		server.WithAddress(addr),
		server.WithVersion(version),
		server.WithStatus(func() string { return string(l.State()) }),
	)

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(sctx); err != nil {
			slog.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func writeOutput(ctx context.Context, format serializer.Format, path string, v any) error {
	w, err := serializer.NewFileWriter(format, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			slog.Warn("failed to close output", "path", path, "error", cerr)
		}
	}()
	return w.Serialize(ctx, v)
}
