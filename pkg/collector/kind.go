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
	"fmt"

	"github.com/NVIDIA/distcollect/pkg/device"
	"github.com/NVIDIA/distcollect/pkg/env"
	cerrors "github.com/NVIDIA/distcollect/pkg/errors"
	"github.com/NVIDIA/distcollect/pkg/policy"
)

// Kind selects the per-node collector strategy.
type Kind string

const (
	// KindSync runs a single worker per node.
	KindSync Kind = "sync"
	// KindMultiSync runs several synchronised workers per node.
	KindMultiSync Kind = "multi-sync"
)

// KindFor returns KindSync for exactly one worker and KindMultiSync otherwise.
func KindFor(numWorkers int) Kind {
	if numWorkers == 1 {
		return KindSync
	}
	return KindMultiSync
}

// IsValid reports whether k names a known strategy.
func (k Kind) IsValid() bool {
	return k == KindSync || k == KindMultiSync
}

func (k Kind) String() string {
	return string(k)
}

// LaunchMode selects how nodes are started.
type LaunchMode string

// LaunchModeMP starts every node inside the launching process.
const LaunchModeMP LaunchMode = "mp"

// SupportedLaunchModes returns the launch modes NewDistributedSync accepts.
func SupportedLaunchModes() []string {
	return []string{string(LaunchModeMP)}
}

// NodeSpec describes one node to build.
type NodeSpec struct {
	Node    int
	Creator *env.Creator
	Policy  policy.Policy
	Workers int
	Devices device.NodeDevices
}

type nodeBuilder func(kind Kind, spec NodeSpec) (NodeCollector, error)

// newNodeCollector builds the strategy selected by kind.
func newNodeCollector(kind Kind, spec NodeSpec) (NodeCollector, error) {
	switch kind {
	case KindSync:
		if spec.Workers != 1 {
			return nil, cerrors.NewWithContext(cerrors.ErrCodeInvalidConfig,
				"sync node collector runs exactly one worker", map[string]any{"workers": spec.Workers})
		}
		return NewSyncCollector(spec.Node, 0, spec.Creator.New(), spec.Policy, spec.Devices.Device), nil
	case KindMultiSync:
		return NewMultiSyncCollector(spec)
	default:
		return nil, cerrors.New(cerrors.ErrCodeUnsupported, fmt.Sprintf("unknown collector kind %q", kind))
	}
}
