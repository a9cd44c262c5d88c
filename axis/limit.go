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

// Limit switch driver.

package axis

import (
	"log"
	"sync"
	"time"

	"github.com/aamcrae/stepgen/io"
)

// Stopper provides an interface to stop a moving axis.
type Stopper interface {
	Stop()
}

// Debounce is the minimum time between accepted input changes.
var Debounce = 5 * time.Millisecond

// Limit is a limit switch driver.
// The input is read as edge triggered values, and when the switch
// closes the axis is brought to a controlled stop. Since the motor
// decelerates, the axis will travel a short distance past the switch.
type Limit struct {
	Name    string
	input   io.Getter // I/O from switch hardware
	stopper Stopper
	invert  bool // Invert input signal
	mu      sync.Mutex
	active  bool
	trips   int
	last    time.Time
	done    chan struct{}
	stopMu  sync.Mutex // Held while stopping the axis
	closed  bool       // Guarded by stopMu
}

// NewLimit creates a new Limit and starts watching the input.
func NewLimit(name string, input io.Getter, stopper Stopper, invert bool) *Limit {
	l := &Limit{Name: name, input: input, stopper: stopper, invert: invert, done: make(chan struct{})}
	go l.driver()
	return l
}

// Active returns true if the switch is currently closed.
func (l *Limit) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Trips returns the number of times the switch has stopped the axis.
func (l *Limit) Trips() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trips
}

// Done returns a channel that is closed when the input can no longer be read.
func (l *Limit) Done() <-chan struct{} {
	return l.done
}

// Close detaches the switch from the axis. Once Close returns, no
// further stop requests are made, and any stop in progress has completed.
func (l *Limit) Close() {
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	l.closed = true
}

// driver is the main goroutine for servicing the switch.
// Transitions that follow the previous one too closely are discarded
// as switch bounce. When the switch closes, the axis is stopped.
func (l *Limit) driver() {
	defer close(l.done)
	for {
		v, err := l.input.Get()
		if err != nil {
			log.Printf("%s: limit input: %v", l.Name, err)
			return
		}
		if l.invert {
			v ^= 1
		}
		now := time.Now()
		l.mu.Lock()
		bounce := !l.last.IsZero() && now.Sub(l.last) < Debounce
		l.last = now
		closed := v == 1 && !l.active && !bounce
		if !bounce {
			l.active = v == 1
		}
		if closed {
			l.trips++
		}
		l.mu.Unlock()
		if closed {
			l.stop()
		}
	}
}

func (l *Limit) stop() {
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	if l.closed {
		return
	}
	log.Printf("%s: limit switch closed, stopping", l.Name)
	l.stopper.Stop()
}
