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

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
)

// Frame is one environment transition.
type Frame struct {
	Node        int             `json:"node" yaml:"node"`
	Worker      int             `json:"worker" yaml:"worker"`
	Observation env.Observation `json:"observation" yaml:"observation"`
	Action      int             `json:"action" yaml:"action"`
	Reward      float64         `json:"reward" yaml:"reward"`
	Done        bool            `json:"done" yaml:"done"`
	Device      device.Device   `json:"device" yaml:"device"`
}

// Batch is an aggregated set of frames stored on a single device.
type Batch struct {
	Index  int           `json:"index" yaml:"index"`
	Device device.Device `json:"device" yaml:"device"`
	Frames []Frame       `json:"frames" yaml:"frames"`
}

// Numel returns the number of frames in b.
func (b *Batch) Numel() int {
	if b == nil {
		return 0
	}
	return len(b.Frames)
}

// Episodes returns the number of episodes that ended inside b.
func (b *Batch) Episodes() int {
	var n int
	for i := range b.Frames {
		if b.Frames[i].Done {
			n++
		}
	}
	return n
}

// Collector produces batches until its frame budget is spent.
type Collector interface {
	// Next blocks until the next batch is ready. It returns io.EOF once
	// TotalFrames frames have been produced.
	Next(ctx context.Context) (*Batch, error)
	// TotalFrames is the frame budget.
	TotalFrames() int
	// Shutdown releases nodes and workers. It is safe to call more than once.
	Shutdown(ctx context.Context) error
}

// NodeCollector is the per-node strategy run by a distributed collector.
type NodeCollector interface {
	// Collect steps the node's environments until frames transitions exist.
	Collect(ctx context.Context, frames int) ([]Frame, error)
	// Shutdown releases the node's workers.
	Shutdown(ctx context.Context) error
}

// Factory creates collectors. It lets callers substitute the collector in tests.
type Factory interface {
	NewCollector(opts Options) (Collector, error)
}

// DefaultFactory builds DistributedSync collectors.
type DefaultFactory struct{}

// NewDefaultFactory returns the production factory.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{}
}

// NewCollector implements Factory.
func (f *DefaultFactory) NewCollector(opts Options) (Collector, error) {
	return NewDistributedSync(opts)
}
