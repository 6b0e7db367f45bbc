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

// Package env defines the simulation environments stepped by collector workers.
//
// An Env is not safe for concurrent use; every worker owns its instance,
// obtained from a Creator. Creators are cheap to copy and build nothing until
// New is called:
//
//	c, err := env.Lookup("CartPole-v1", seed)
//	spec := c.ActionSpec() // builds one instance eagerly
//	e := c.New()           // one per worker
package env

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// Observation is a flat view of an environment state.
type Observation []float64

// ActionSpec describes a discrete action space {0, ..., N-1}.
type ActionSpec struct {
	N int `json:"n" yaml:"n"`
}

// Contains reports whether a is a valid action.
func (s ActionSpec) Contains(a int) bool {
	return a >= 0 && a < s.N
}

// Env is a resettable, steppable simulation.
type Env interface {
	// Reset starts a new episode and returns its first observation.
	Reset() Observation
	// Step applies action and returns the next observation, the reward and
	// whether the episode ended.
	Step(action int) (Observation, float64, bool)
	// ActionSpec describes the valid actions.
	ActionSpec() ActionSpec
}

// Constructor builds a fresh environment seeded by rng.
type Constructor func(rng *rand.Rand) Env

// Creator wraps a zero-argument environment constructor. Instances are built
// lazily by New; ActionSpec builds one instance eagerly to query it.
type Creator struct {
	name string
	ctor Constructor
	seed int64

	mu      sync.Mutex
	created int64
}

// NewCreator wraps ctor. Successive instances are seeded seed, seed+1, ...
func NewCreator(name string, ctor Constructor, seed int64) *Creator {
	return &Creator{name: name, ctor: ctor, seed: seed}
}

// Name returns the registered environment name.
func (c *Creator) Name() string {
	return c.name
}

// New builds a new environment instance.
func (c *Creator) New() Env {
	c.mu.Lock()
	seed := c.seed + c.created
	c.created++
	c.mu.Unlock()
	return c.ctor(rand.New(rand.NewSource(seed))) //nolint:gosec // simulation randomness
}

// Created returns how many instances New has built.
func (c *Creator) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.created)
}

// ActionSpec builds one instance and returns its action spec.
func (c *Creator) ActionSpec() ActionSpec {
	return c.New().ActionSpec()
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes ctor available under name. It panics on duplicates.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("env: duplicate registration of %q", name))
	}
	registry[name] = ctor
}

// Lookup returns a Creator for a registered environment, seeded with seed.
func Lookup(name string, seed int64) (*Creator, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown environment %q (registered: %v)", name, Registered())
	}
	return NewCreator(name, ctor, seed), nil
}

// Registered returns the sorted names of registered environments.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
