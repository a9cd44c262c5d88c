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

// Axis position tracking

package axis

import (
	"log"
	"sync"
)

// Mover is the interface to the motor driving the axis.
type Mover interface {
	Step(rpm float64, steps int) error
	SetSpeed(rpm float64) error
	Stop()
	Wait()
	GetStep() int64
}

// Axis represents a single motor driven axis.
// Positions are absolute step counts relative to the home position,
// which is initially where the motor was when the axis was created.
// Moves are queued to the Mover, which ramps the motor up to speed
// and back down to a stop for each move.
// The target is the position the axis will be at once all queued
// moves have completed.
type Axis struct {
	Name   string     // Name of this axis
	mover  Mover      // Mover to move the axis
	mu     sync.Mutex // Guards speed, target and home
	speed  float64    // Cruise speed in RPM
	target int64      // Position after queued moves
	home   int64      // Mover step count at the home position
	Moves  int        // Number of moves requested
	Stops  int        // Number of stops
}

// NewAxis creates and initialises an Axis.
func NewAxis(name string, mover Mover, speed float64) *Axis {
	a := &Axis{Name: name, mover: mover, speed: speed}
	a.home = mover.GetStep()
	log.Printf("%s: speed %g RPM, home at step %d", a.Name, speed, a.home)
	return a
}

// Position returns the current position of the axis.
func (a *Axis) Position() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mover.GetStep() - a.home
}

// Target returns the position of the axis once all moves have completed.
func (a *Axis) Target() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// SetSpeed sets the cruise speed for new moves, and changes the
// speed of any move in progress.
func (a *Axis) SetSpeed(rpm float64) error {
	if err := a.mover.SetSpeed(rpm); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.speed = rpm
	return nil
}

// MoveTo queues a move to the absolute position.
func (a *Axis) MoveTo(pos int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.move(pos - a.target)
}

// Move queues a move relative to the target position.
func (a *Axis) Move(steps int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.move(steps)
}

func (a *Axis) move(steps int64) error {
	if steps == 0 {
		return nil
	}
	if err := a.mover.Step(a.speed, int(steps)); err != nil {
		return err
	}
	a.Moves++
	a.target += steps
	log.Printf("%s: move %d steps to %d", a.Name, steps, a.target)
	return nil
}

// Wait waits for all moves to complete.
func (a *Axis) Wait() {
	a.mover.Wait()
}

// Stop brings the axis to a controlled stop and discards any
// queued moves. The target becomes the position the axis stopped at.
func (a *Axis) Stop() {
	a.mover.Stop()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Stops++
	a.target = a.mover.GetStep() - a.home
	log.Printf("%s: stopped at %d", a.Name, a.target)
}

// SetHome marks the current position as the home (0) position.
func (a *Axis) SetHome() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.home = a.mover.GetStep()
	a.target = 0
	log.Printf("%s: home set at step %d", a.Name, a.home)
}
