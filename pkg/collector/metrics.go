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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distcollect_frames_collected_total",
			Help: "Total number of frames collected, by node",
		},
		[]string{"node"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "distcollect_batches_total",
			Help: "Total number of batch collection attempts",
		},
		[]string{"status"}, // success or error
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distcollect_batch_duration_seconds",
			Help:    "Time taken for all nodes to deliver one synchronous batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"kind"},
	)

	nodeCollectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "distcollect_node_collect_duration_seconds",
			Help:    "Time taken by a single node to collect its share of a batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"node"},
	)

	activeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "distcollect_active_nodes",
			Help: "Number of collector nodes currently running",
		},
	)
)
