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

package env

import (
	"math"
	"math/rand"
)

// CartPoleName is the registry name of the cart-pole balancing task.
const CartPoleName = "CartPole-v1"

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	poleHalfLength = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * poleHalfLength
	forceMag       = 10.0
	tau            = 0.02

	xThreshold       = 2.4
	thetaThreshold   = 12.0 * math.Pi / 180.0
	cartPoleMaxSteps = 500
)

func init() {
	Register(CartPoleName, func(rng *rand.Rand) Env { return NewCartPole(rng) })
}

// CartPole balances a pole on a cart pushed left (0) or right (1).
type CartPole struct {
	x, xDot, theta, thetaDot float64

	steps int
	rng   *rand.Rand
}

// NewCartPole returns a reset cart-pole. A nil rng gets a fixed seed.
func NewCartPole(rng *rand.Rand) *CartPole {
	if rng == nil {
		rng = rand.New(rand.NewSource(0)) //nolint:gosec // simulation randomness
	}
	c := &CartPole{rng: rng}
	c.Reset()
	return c
}

// ActionSpec implements Env.
func (c *CartPole) ActionSpec() ActionSpec {
	return ActionSpec{N: 2}
}

// Reset implements Env.
func (c *CartPole) Reset() Observation {
	c.x = c.rng.Float64()*0.1 - 0.05
	c.xDot = c.rng.Float64()*0.1 - 0.05
	c.theta = c.rng.Float64()*0.1 - 0.05
	c.thetaDot = c.rng.Float64()*0.1 - 0.05
	c.steps = 0
	return c.observe()
}

// Step implements Env. Reward is 1 per surviving step and 0 on failure;
// reaching the step cap ends the episode with reward 1.
func (c *CartPole) Step(action int) (Observation, float64, bool) {
	force := forceMag
	if action == 0 {
		force = -forceMag
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)

	temp := (force + poleMassLength*c.thetaDot*c.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) /
		(poleHalfLength * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	c.x += tau * c.xDot
	c.xDot += tau * xAcc
	c.theta += tau * c.thetaDot
	c.thetaDot += tau * thetaAcc
	c.steps++

	failed := c.x < -xThreshold || c.x > xThreshold ||
		c.theta < -thetaThreshold || c.theta > thetaThreshold
	done := failed || c.steps >= cartPoleMaxSteps

	reward := 1.0
	if failed && c.steps < cartPoleMaxSteps {
		reward = 0.0
	}
	return c.observe(), reward, done
}

func (c *CartPole) observe() Observation {
	return Observation{c.x, c.xDot, c.theta, c.thetaDot}
}
