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

package io

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aamcrae/stepgen/ramp"
	"github.com/pkg/errors"
)

const stepperQueueSize = 20 // Size of queue for requests

// MaxSteps is the largest number of steps in a single move.
const MaxSteps = math.MaxUint32

type msg struct {
	speed uint32 // Steps per second (24.8 format)
	steps int
	sync  chan bool
}

// driver sets the outputs that move the motor.
type driver interface {
	// output sets the outputs for sequence index after a step in direction dir.
	// A dir of 0 energises the motor without stepping.
	output(index, dir int)
	release()
}

// Stepper represents a stepper motor.
// All actual stepping is done in a background goroutine, so requests can be queued.
// Each move accelerates, cruises and decelerates using a ramp generator,
// so the motor starts and stops smoothly.
// The current step number is maintained as an absolute number, referenced from
// 0 when the stepper is first initialised. This can be a negative or positive number,
// depending on the movement.
type Stepper struct {
	drv      driver
	rev      int           // Number of steps per revolution.
	ticks    uint32        // Ramp generator ticks per second
	mu       sync.Mutex    // Guards gen
	gen      *ramp.Generator
	mChan    chan msg       // channel for message requests
	stopChan chan chan bool // channel for stop requests.
	index    int            // Index to step sequence
	on       bool           // true if motor drivers on
	current  int64          // Current step number as an absolute number
}

// Half step sequence of outputs.
var sequence = [][]int{
	[]int{1, 0, 0, 0},
	[]int{1, 1, 0, 0},
	[]int{0, 1, 0, 0},
	[]int{0, 1, 1, 0},
	[]int{0, 0, 1, 0},
	[]int{0, 0, 1, 1},
	[]int{0, 0, 0, 1},
	[]int{1, 0, 0, 1},
}

type halfStep struct {
	pins [4]Setter
}

func (h *halfStep) output(index, dir int) {
	seq := sequence[index&7]
	for i, p := range h.pins {
		p.Set(seq[i])
	}
}

func (h *halfStep) release() {
	for _, p := range h.pins {
		p.Set(0)
	}
}

// NewStepper creates and initialises a Stepper, representing
// a stepper motor controlled by 4 GPIO pins using a half step sequence.
// rev is the number of half-steps per revolution, used to convert RPM
// to step rates. ticks is the rate of the ramp timer, and accel is the
// acceleration in steps per second per second.
func NewStepper(rev int, ticks uint32, accel float64, pin1, pin2, pin3, pin4 Setter) (*Stepper, error) {
	return newStepper(&halfStep{pins: [4]Setter{pin1, pin2, pin3, pin4}}, rev, ticks, accel)
}

func newStepper(drv driver, rev int, ticks uint32, accel float64) (*Stepper, error) {
	if rev <= 0 {
		return nil, errors.Errorf("%d: invalid steps per revolution", rev)
	}
	gen, err := ramp.New(ticks)
	if err != nil {
		return nil, errors.Wrapf(err, "ticks %d", ticks)
	}
	if err := gen.SetAcceleration(ramp.ToFixed(accel)); err != nil {
		return nil, errors.Wrapf(err, "acceleration %g", accel)
	}
	s := &Stepper{
		drv:      drv,
		rev:      rev,
		ticks:    ticks,
		gen:      gen,
		mChan:    make(chan msg, stepperQueueSize),
		stopChan: make(chan chan bool),
	}
	go s.handler()
	return s, nil
}

// Close stops the motor and frees any resources.
func (s *Stepper) Close() {
	s.Stop()
	close(s.mChan)
	close(s.stopChan)
}

// State returns the current sequence index, so that the current state
// of the motor can be saved and then restored in a new instance.
// This allows the exact state of the motor to be restored
// across process restarts so that the maximum accuracy can be guaranteed.
func (s *Stepper) State() int {
	return s.index
}

// Restore initialises the sequence index to this value.
func (s *Stepper) Restore(i int) {
	s.index = i & 7
}

// GetStep returns the current step number, which is an accumulative
// signed value representing the steps moved, with 0 as the starting location.
func (s *Stepper) GetStep() int64 {
	return atomic.LoadInt64(&s.current)
}

// Phase returns the ramp phase of the current move.
func (s *Stepper) Phase() ramp.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.Phase()
}

// Speed returns the current speed in RPM.
func (s *Stepper) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ramp.FromFixed(s.gen.CurrentSpeed()) * 60 / float64(s.rev)
}

// Off turns off the GPIOs to remove the power from the motor.
func (s *Stepper) Off() {
	if s.on {
		s.Wait()
		s.drv.release()
		s.on = false
	}
}

// Stop decelerates the motor to a stop, and flushes all queued requests.
// Stop returns once the motor has stopped.
func (s *Stepper) Stop() {
	done := make(chan bool)
	s.stopChan <- done
	<-done
}

// Step queues a request to step the motor at the RPM selected for the
// number of steps.
// If steps is positive, then the motor is run clockwise, otherwise ccw.
// A number of requests can be queued.
func (s *Stepper) Step(rpm float64, steps int) error {
	speed, err := s.rate(rpm)
	if err != nil {
		return err
	}
	if int64(steps) > MaxSteps || int64(steps) < -MaxSteps {
		return errors.Wrapf(ramp.ErrInvalidArgument, "%d steps", steps)
	}
	if steps != 0 {
		if !s.on {
			s.drv.output(s.index, 0)
			s.on = true
		}
		s.mChan <- msg{speed: speed, steps: steps}
	}
	return nil
}

// SetSpeed changes the speed of the current move. The motor accelerates
// or decelerates to the new speed.
func (s *Stepper) SetSpeed(rpm float64) error {
	speed, err := s.rate(rpm)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.SetTargetSpeed(speed)
}

// rate converts RPM to a validated step rate.
func (s *Stepper) rate(rpm float64) (uint32, error) {
	speed := ramp.ToFixed(rpm * float64(s.rev) / 60)
	if _, err := ramp.TargetDelay(s.ticks, speed); err != nil {
		return 0, errors.Wrapf(err, "speed %g RPM", rpm)
	}
	return speed, nil
}

// Wait waits for all requests to complete
func (s *Stepper) Wait() {
	c := make(chan bool)
	s.mChan <- msg{sync: c}
	<-c
}

// goroutine handler
// Listens on message channel, and runs the motor.
func (s *Stepper) handler() {
	for {
		select {
		case m, ok := <-s.mChan:
			if !ok {
				return
			}
			// Request to step the motor
			if m.steps != 0 {
				if s.step(m) {
					return
				}
			}
			if m.sync != nil {
				// If sync channel is present, signal it.
				close(m.sync)
			}
		case done, ok := <-s.stopChan:
			if !ok {
				return
			}
			// Already stopped, so flush all requests
			signal(append(s.flush(), done))
		}
	}
}

// step runs the ramp generator to move the motor the requested
// number of steps. A negative value moves the motor
// counter-clockwise, positive moves the motor clockwise.
// A stop request decelerates the motor to a stop.
// Returns true if the stop channel has been closed.
func (s *Stepper) step(m msg) bool {
	inc := 1
	steps := m.steps
	if steps < 0 {
		// Counter-clockwise
		inc = -1
		steps = -steps
	}
	s.mu.Lock()
	s.gen.Reset()
	err := s.gen.SetTargetSpeed(m.speed)
	if err == nil {
		s.gen.SetTargetStep(uint32(steps))
	}
	s.mu.Unlock()
	if err != nil {
		log.Printf("step: speed %d rejected, move of %d steps dropped: %v", m.speed, m.steps, err)
		return false
	}
	// Requests waiting for the motor to stop.
	var pending []chan bool
	defer func() {
		signal(pending)
	}()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		d, ok := s.gen.Next()
		s.mu.Unlock()
		if !ok {
			return false
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.duration(d))
	wait:
		for {
			select {
			case done, ok := <-s.stopChan:
				if !ok {
					// channel is closed, so kill handler.
					return true
				}
				// Request to stop: brake and flush all requests.
				s.mu.Lock()
				s.gen.SetTargetStep(0)
				s.mu.Unlock()
				pending = append(pending, s.flush()...)
				pending = append(pending, done)
			case <-timer.C:
				break wait
			}
		}
		s.index = (s.index + inc) & 7
		s.drv.output(s.index, inc)
		atomic.AddInt64(&s.current, int64(inc))
	}
}

// duration converts a ramp delay (24.8 format ticks) to a duration.
func (s *Stepper) duration(d uint32) time.Duration {
	return time.Duration(uint64(d) * uint64(time.Second) / (uint64(s.ticks) << 8))
}

// Flush all remaining actions from message channel, returning
// the sync channels of any waiting requests.
func (s *Stepper) flush() []chan bool {
	var waiting []chan bool
	for {
		select {
		case m, ok := <-s.mChan:
			if !ok {
				return waiting
			}
			if m.sync != nil {
				waiting = append(waiting, m.sync)
			}
		default:
			return waiting
		}
	}
}

func signal(l []chan bool) {
	for _, c := range l {
		close(c)
	}
}
