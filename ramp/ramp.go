// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ramp generates stepper motor speed ramps in real time.
//
// Given an acceleration, a target speed and a target step to stop at,
// a Generator produces the delays between steps that accelerate the
// motor, cruise at the target speed and decelerate to a stop exactly at
// the target step. The delays are computed incrementally using the
// algorithm from "Generate stepper-motor speed profiles in real time"
// by David Austin, so that each step costs a single integer division.
//
// Speeds, accelerations and delays are fixed-point numbers with
// 8 fractional bits (the stored value is the real value multiplied by 256).
// Delays are expressed in timer ticks.
//
// A Generator does no locking and no allocation, and is
// intended to be called from a single timer handler.
package ramp

import (
	"errors"
	"fmt"
)

// TicksPerUpdate is a rough estimate of the timer ticks needed to
// compute the next delay. Target speeds with shorter delays are rejected.
const TicksPerUpdate = 10

var (
	// ErrInvalidArgument is returned for any configuration that is out of range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooSlow is returned when a delay does not fit into 16.8 format.
	ErrTooSlow = fmt.Errorf("%w: too slow", ErrInvalidArgument)
	// ErrTooFast is returned when a delay is shorter than TicksPerUpdate.
	ErrTooFast = fmt.Errorf("%w: too fast", ErrInvalidArgument)
)

// Generator holds the state of a single ramp.
type Generator struct {
	ticks       uint32 // Timer ticks per second
	firstDelay  uint32 // Delay of the first step, in 16.16 format
	targetStep  uint32 // Step to stop at
	targetDelay uint32 // Delay at target speed, in 16.16 format

	current     uint32 // Current step
	n           uint32 // Ramp index, steps taken to reach the current speed
	delay       uint32 // Recurrence delay, in 16.16 format
	rest        uint32 // Remainder carried between recurrence divisions
	cruiseDelay uint32 // Delay while cruising, in 16.16 format
	phase       Phase
}

// New creates a Generator for a timer running at ticksPerSecond.
// The acceleration and target speed must be set before the generator
// is able to move.
func New(ticksPerSecond uint32) (*Generator, error) {
	if ticksPerSecond == 0 {
		return nil, ErrInvalidArgument
	}
	return &Generator{ticks: ticksPerSecond}, nil
}

// SetAcceleration sets the acceleration in steps per second per second (24.8 format).
// The seed delay is derived using an integer square root, so it
// is best to set the acceleration once rather than on every move.
func (g *Generator) SetAcceleration(acceleration uint32) error {
	if acceleration == 0 {
		return ErrInvalidArgument
	}
	// c0 = F*sqrt(2/a)*0.676 = F*sqrt(2*676*676/a)/1000
	// The acceleration is in 24.8 format, and the result of the square root
	// is wanted in 24.8 format, so 2*676*676 is shifted 40 bits
	// (24 for the result and 16 for the acceleration) before dividing.
	// 0.676 corrects the error of the first step of the recurrence.
	c0long := ((2 * 676 * 676) << 40) / uint64(acceleration)
	c0 := (uint64(g.ticks) * Sqrt64(c0long) / 1000) >> 8
	if c0>>24 != 0 {
		// The timer only holds 16 bits of integral ticks.
		return ErrTooSlow
	}
	if c0 <= TicksPerUpdate<<8 {
		// Too short a first step for the timer to service.
		return ErrTooFast
	}
	g.firstDelay = uint32(c0) << 8
	return nil
}

// SetTargetStep sets the step at which the motor must come to a stop.
// Steps only count upwards; a target at or below the current step
// makes a running motor decelerate and stop as soon as it can.
func (g *Generator) SetTargetStep(step uint32) {
	g.targetStep = step
}

// SetTargetSpeed sets the cruise speed in steps per second (24.8 format).
// The motor only reaches this speed if the target step is far enough
// away to allow the acceleration and deceleration.
func (g *Generator) SetTargetSpeed(speed uint32) error {
	d, err := TargetDelay(g.ticks, speed)
	if err != nil {
		return err
	}
	g.targetDelay = d << 8
	return nil
}

// TargetDelay validates a target speed (24.8 format) against the timer
// rate and returns the matching delay in ticks (24.8 format).
func TargetDelay(ticksPerSecond, speed uint32) (uint32, error) {
	if speed == 0 || ticksPerSecond == 0 {
		return 0, ErrTooSlow
	}
	d := (uint64(ticksPerSecond) << 16) / uint64(speed)
	if d>>24 != 0 {
		return 0, ErrTooSlow
	}
	if d <= TicksPerUpdate<<8 {
		return 0, ErrTooFast
	}
	return uint32(d), nil
}

// Reset restarts the step count at 0. It has no effect while moving.
func (g *Generator) Reset() {
	if g.phase == Stopped {
		g.current = 0
		g.targetStep = 0
	}
}

// Next advances the ramp by one step and returns the delay (24.8 format,
// in ticks) to wait before issuing the step. When the target step has been
// reached and the motor is stopped, Next returns 0 and false.
func (g *Generator) Next() (uint32, bool) {
	st := g.current
	// An unconfigured generator never leaves the stopped state.
	if (st >= g.targetStep && g.n <= 1) || g.firstDelay == 0 || g.targetDelay == 0 {
		g.stop()
		return 0, false
	}
	// Leave the cruise if the target speed was changed.
	if g.phase == Cruising && g.cruiseDelay != g.targetDelay {
		g.phase = Accelerating
	}
	g.current++
	if g.n == 0 {
		// First step from rest, take the slower of the seed and target delay.
		g.delay = g.firstDelay
		if g.delay <= g.targetDelay {
			g.delay = g.targetDelay
			g.cruise(g.targetDelay)
		} else {
			g.phase = Accelerating
		}
		g.n = 1
		g.rest = 0
		return g.delay >> 8, true
	}
	// The step at which the motor would stop if the deceleration started now.
	est := st + g.n
	switch {
	case est == g.targetStep:
		// One step early; hold the delay and decelerate from the next step.
		if g.phase != Cruising {
			g.cruise(g.delay)
		}
	case est > g.targetStep:
		g.phase = Decelerating
		g.slowdown()
	case g.phase == Cruising:
	case g.delay < g.targetDelay:
		// Too fast, slow down to the new cruise speed.
		g.phase = Decelerating
		g.slowdown()
		if g.delay >= g.targetDelay {
			g.cruise(g.targetDelay)
		}
	case g.delay > g.targetDelay:
		g.phase = Accelerating
		g.speedup()
		if g.delay <= g.targetDelay {
			g.cruise(g.targetDelay)
		}
	default:
		g.cruise(g.targetDelay)
	}
	return g.active() >> 8, true
}

// speedup applies one accelerating step of the recurrence.
func (g *Generator) speedup() {
	denom := 4*uint64(g.n) + 1
	num := 2*uint64(g.delay) + uint64(g.rest)
	q := num / denom
	g.rest = uint32(num - q*denom)
	g.delay -= uint32(q)
	g.n++
}

// slowdown applies one decelerating step of the recurrence.
func (g *Generator) slowdown() {
	if g.n <= 1 {
		// No previous delay to refine, go straight to the floor.
		if g.targetDelay > g.delay {
			g.delay = g.targetDelay
		}
		g.rest = 0
		return
	}
	g.n--
	denom := 4*uint64(g.n) - 1
	num := 2*uint64(g.delay) + uint64(g.rest)
	q := num / denom
	g.rest = uint32(num - q*denom)
	d := uint64(g.delay) + q
	if d > maxDelay {
		d = maxDelay
	}
	g.delay = uint32(d)
}

const maxDelay = 1<<32 - 1

func (g *Generator) cruise(d uint32) {
	g.phase = Cruising
	g.cruiseDelay = d
}

func (g *Generator) stop() {
	g.n = 0
	g.delay = 0
	g.rest = 0
	g.cruiseDelay = 0
	g.phase = Stopped
}

// active returns the delay in use (16.16 format).
func (g *Generator) active() uint32 {
	if g.phase == Cruising {
		return g.cruiseDelay
	}
	return g.delay
}

// CurrentStep returns the number of steps taken.
func (g *Generator) CurrentStep() uint32 {
	return g.current
}

// TargetStep returns the step the motor will stop at.
func (g *Generator) TargetStep() uint32 {
	return g.targetStep
}

// CurrentSpeed returns the estimated current speed in steps per second (24.8 format).
func (g *Generator) CurrentSpeed() uint32 {
	d := g.active() >> 8
	if d == 0 {
		return 0
	}
	return uint32((uint64(g.ticks) << 16) / uint64(d))
}

// CurrentDelay returns the delay returned by the last step (24.8 format),
// or 0 when stopped.
func (g *Generator) CurrentDelay() uint32 {
	return g.active() >> 8
}

// Phase returns the current phase of the ramp.
func (g *Generator) Phase() Phase {
	return g.phase
}
