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

// Package policy provides action-selection policies for collector workers.
package policy

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/NVIDIA/distcollect/pkg/env"
)

// Policy maps an observation to an action.
type Policy interface {
	Action(obs env.Observation) int
}

// Random samples actions uniformly from an action spec and ignores the
// observation. It is safe for concurrent use.
type Random struct {
	spec env.ActionSpec

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a uniform policy over spec.
func NewRandom(spec env.ActionSpec, seed int64) (*Random, error) {
	if spec.N <= 0 {
		return nil, fmt.Errorf("action spec must have at least one action, got %d", spec.N)
	}
	return &Random{
		spec: spec,
		rng:  rand.New(rand.NewSource(seed)), //nolint:gosec // exploration, not security
	}, nil
}

// Spec returns the action spec the policy samples from.
func (p *Random) Spec() env.ActionSpec {
	return p.spec
}

// Action implements Policy.
func (p *Random) Action(_ env.Observation) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(p.spec.N)
}
