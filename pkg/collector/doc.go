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

// Package collector runs environments under a policy and returns batches of
// collected frames.
//
// # Overview
//
// A DistributedSync collector drives one node collector per node. Every call
// to Next is a synchronous barrier: each node collects its share of the batch
// concurrently, and the batch is returned only after all nodes finished. The
// sequence of batches is lazy, finite and cannot be restarted; Next returns
// io.EOF once the frame budget is spent.
//
//	c, err := collector.NewDistributedSync(opts)
//	if err != nil {
//	    return err
//	}
//	defer c.Shutdown(context.Background())
//
//	for {
//	    b, err := c.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(b.Numel())
//	}
//
// # Node Strategies
//
// The per-node collector is chosen by Kind when the collector is built:
//   - KindSync: a single worker stepping one environment.
//   - KindMultiSync: several workers, each with its own environment, splitting
//     the node's share evenly.
//
// # Launch Modes
//
// Only LaunchModeMP is supported. Nodes and workers run as goroutines within
// the launching process; devices are identifiers carried on the frames.
//
// # Metrics
//
// Collected frames, batches, batch latency and active nodes are exported as
// Prometheus metrics prefixed with distcollect_.
package collector
