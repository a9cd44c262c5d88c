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
	"strconv"
	"strings"

	"github.com/aamcrae/config"
	"github.com/aamcrae/stepgen/io"
	"github.com/aamcrae/stepgen/ramp"
	"github.com/pkg/errors"
)

// DefaultTicks is the ramp timer rate used when none is configured.
const DefaultTicks = 1000000

// Configuration data for an axis, read from a configuration file.
type AxisConfig struct {
	Name    string
	Gpio    []int   // Half-step outputs, or step, dir and optional enable
	StepDir bool    // Gpio is a step/dir controller
	Steps   int     // Steps per revolution
	Ticks   uint32  // Ramp timer ticks per second
	Accel   float64 // Steps per second per second
	Speed   float64 // Cruise speed in RPM
	Limit   int     // Limit switch GPIO, or -1
	Invert  bool    // Invert limit switch input
}

// Config reads and validates an AxisConfig from a config file section.
// Sample config:
//  [name]                   # name of axis e.g x, y, carriage
//  stepper=4,17,27,22       # GPIOs for a 4 wire stepper motor
//  stepdir=5,6,13           # or GPIOs for step, dir and enable of a controller
//  steps=4096               # Steps in a revolution
//  ticks=1000000            # Ramp timer rate (optional)
//  acceleration=2000        # Acceleration in steps/sec/sec
//  speed=12.5               # Cruise speed in RPM
//  limit=21                 # GPIO for limit switch (optional)
//  invert=1                 # Limit switch is active low (optional)
func Config(conf *config.Config, name string) (*AxisConfig, error) {
	s := conf.GetSection(name)
	if s == nil {
		return nil, errors.Errorf("no config for %s", name)
	}
	// Helpers for parsing the section.
	has := func(key string) bool {
		return len(s.Get(key)) > 0
	}
	parseOne := func(key, format string, v interface{}) error {
		n, err := s.Parse(key, format, v)
		if err != nil {
			return errors.Wrap(err, key)
		}
		if n != 1 {
			return errors.Errorf("%s: argument count", key)
		}
		return nil
	}
	// Comma separated values are split into tokens by the config parser.
	intList := func(key string) ([]int, error) {
		e := s.Get(key)
		if len(e) == 0 {
			return nil, errors.Errorf("%s: missing", key)
		}
		if len(e) > 1 {
			return nil, errors.Errorf("%s: duplicate entry", key)
		}
		var l []int
		for _, f := range e[0].Tokens {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, errors.Wrap(err, key)
			}
			l = append(l, v)
		}
		return l, nil
	}
	a := &AxisConfig{Name: name, Ticks: DefaultTicks, Limit: -1}
	var err error
	if has("stepdir") {
		a.StepDir = true
		a.Gpio, err = intList("stepdir")
		if err == nil && (len(a.Gpio) < 2 || len(a.Gpio) > 3) {
			err = errors.New("stepdir: expected step,dir[,enable]")
		}
	} else {
		a.Gpio, err = intList("stepper")
		if err == nil && len(a.Gpio) != 4 {
			err = errors.New("stepper: expected 4 GPIOs")
		}
	}
	if err != nil {
		return nil, err
	}
	if err := parseOne("steps", "%d", &a.Steps); err != nil {
		return nil, err
	}
	if a.Steps <= 0 {
		return nil, errors.Errorf("steps: %d is invalid", a.Steps)
	}
	if has("ticks") {
		if err := parseOne("ticks", "%d", &a.Ticks); err != nil {
			return nil, err
		}
	}
	if err := parseOne("acceleration", "%f", &a.Accel); err != nil {
		return nil, err
	}
	if err := parseOne("speed", "%f", &a.Speed); err != nil {
		return nil, err
	}
	if has("limit") {
		if err := parseOne("limit", "%d", &a.Limit); err != nil {
			return nil, err
		}
	}
	if has("invert") {
		var inv int
		if err := parseOne("invert", "%d", &inv); err != nil {
			return nil, err
		}
		a.Invert = inv != 0
	}
	if err := a.Validate(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return a, nil
}

// Validate checks that the ramp parameters can be represented by
// the ramp generator.
func (a *AxisConfig) Validate() error {
	g, err := ramp.New(a.Ticks)
	if err != nil {
		return errors.Wrapf(err, "ticks %d", a.Ticks)
	}
	if err := g.SetAcceleration(ramp.ToFixed(a.Accel)); err != nil {
		return errors.Wrapf(err, "acceleration %g", a.Accel)
	}
	if err := g.SetTargetSpeed(a.StepRate()); err != nil {
		return errors.Wrapf(err, "speed %g", a.Speed)
	}
	return nil
}

// StepRate returns the cruise speed in steps per second (24.8 format).
func (a *AxisConfig) StepRate() uint32 {
	return ramp.ToFixed(a.Speed * float64(a.Steps) / 60)
}

// Motor combines the I/O, stepper, and limit switch for an axis.
// A motor config is parsed from a configuration file.
type Motor struct {
	Stepper *io.Stepper
	Axis    *Axis
	Limit   *Limit
	Config  *AxisConfig
	pins    []*io.Gpio
}

// NewMotor initialises the I/O, Stepper, Axis and Limit from the
// axis configuration.
func NewMotor(ac *AxisConfig) (*Motor, error) {
	m := &Motor{Config: ac}
	var out []io.Setter
	for _, v := range ac.Gpio {
		p, err := io.OutputPin(v)
		if err != nil {
			m.Close()
			return nil, errors.Wrapf(err, "pin %d", v)
		}
		m.pins = append(m.pins, p)
		out = append(out, p)
	}
	var err error
	if ac.StepDir {
		var enable io.Setter
		if len(out) == 3 {
			enable = out[2]
		}
		m.Stepper, err = io.NewStepDir(ac.Steps, ac.Ticks, ac.Accel, out[0], out[1], enable)
	} else {
		m.Stepper, err = io.NewStepper(ac.Steps, ac.Ticks, ac.Accel, out[0], out[1], out[2], out[3])
	}
	if err != nil {
		m.Close()
		return nil, errors.Wrap(err, ac.Name)
	}
	m.Axis = NewAxis(ac.Name, m.Stepper, ac.Speed)
	if ac.Limit >= 0 {
		in, err := io.InputPin(ac.Limit, io.BOTH)
		if err != nil {
			m.Close()
			return nil, errors.Wrapf(err, "limit %d", ac.Limit)
		}
		m.pins = append(m.pins, in)
		m.Limit = NewLimit(ac.Name, in, m.Axis, ac.Invert)
	}
	return m, nil
}

// Close shuts down the motor and releases the resources.
func (m *Motor) Close() {
	// Shut down the limit input first so that it cannot stop a closed stepper.
	if m.Limit != nil {
		m.Limit.Close()
	}
	if m.Stepper != nil {
		m.Stepper.Off()
		m.Stepper.Close()
	}
	for _, p := range m.pins {
		p.Close()
	}
}
