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

// stepDir drives a step/direction controller such as an A4988 or DRV8825.
// Each step is a single pulse on the step pin; the direction pin
// is only written when the direction changes.
type stepDir struct {
	step, dir Setter
	enable    Setter // Optional, active low
	lastDir   int
}

// NewStepDir creates a Stepper for a step/direction motor controller.
// rev is the number of (micro)steps per revolution.
// enable may be nil if the enable input of the controller is not connected.
func NewStepDir(rev int, ticks uint32, accel float64, step, dir, enable Setter) (*Stepper, error) {
	return newStepper(&stepDir{step: step, dir: dir, enable: enable}, rev, ticks, accel)
}

func (sd *stepDir) output(index, dir int) {
	if dir == 0 {
		if sd.enable != nil {
			sd.enable.Set(0)
		}
		return
	}
	if dir != sd.lastDir {
		v := 0
		if dir < 0 {
			v = 1
		}
		sd.dir.Set(v)
		sd.lastDir = dir
	}
	sd.step.Set(1)
	sd.step.Set(0)
}

func (sd *stepDir) release() {
	if sd.enable != nil {
		sd.enable.Set(1)
	}
}
