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

package axis

import (
	"github.com/aamcrae/stepgen/ramp"
	"github.com/pkg/errors"
)

// Sample is a single step of a generated ramp profile.
type Sample struct {
	Step  uint32     // Step number, starting at 1
	Delay uint32     // Delay before this step (24.8 format ticks)
	Speed uint32     // Speed at this step (24.8 format steps per second)
	Phase ramp.Phase // Phase that produced the delay
}

// Profile runs a ramp generator offline using the axis parameters,
// and returns the delays for a move of target steps.
// If stopAt is non-zero, a stop is requested once that many
// steps have been generated, and the profile shows the motor braking.
func Profile(cfg *AxisConfig, target, stopAt uint32) ([]Sample, error) {
	g, err := ramp.New(cfg.Ticks)
	if err != nil {
		return nil, errors.Wrapf(err, "ticks %d", cfg.Ticks)
	}
	if err := g.SetAcceleration(ramp.ToFixed(cfg.Accel)); err != nil {
		return nil, errors.Wrapf(err, "acceleration %g", cfg.Accel)
	}
	if err := g.SetTargetSpeed(cfg.StepRate()); err != nil {
		return nil, errors.Wrapf(err, "speed %g", cfg.Speed)
	}
	g.SetTargetStep(target)
	var samples []Sample
	for {
		if stopAt != 0 && g.CurrentStep() == stopAt {
			g.SetTargetStep(0)
		}
		d, ok := g.Next()
		if !ok {
			return samples, nil
		}
		samples = append(samples, Sample{
			Step:  g.CurrentStep(),
			Delay: d,
			Speed: g.CurrentSpeed(),
			Phase: g.Phase(),
		})
	}
}
