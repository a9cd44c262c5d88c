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
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aamcrae/config"
	"github.com/aamcrae/stepgen/ramp"
)

const testConf = `
[x]
stepper=4,17,27,22
steps=4096
acceleration=2000
speed=12.5
limit=21
invert=1

[y]
stepdir=5,6,13
steps=200
ticks=500000
acceleration=800
speed=120

[badpins]
stepper=4,17,27
steps=200
acceleration=800
speed=120

[badstepdir]
stepdir=5
steps=200
acceleration=800
speed=120

[badaccel]
stepper=4,17,27,22
steps=200
acceleration=0
speed=120

[badspeed]
stepdir=5,6
steps=200
acceleration=800
speed=1000000
`

func parseTestConfig(t *testing.T) *config.Config {
	t.Helper()
	f := filepath.Join(t.TempDir(), "axis.conf")
	if err := ioutil.WriteFile(f, []byte(testConf), 0644); err != nil {
		t.Fatalf("%s: %v", f, err)
	}
	conf, err := config.ParseFile(f)
	if err != nil {
		t.Fatalf("%s: %v", f, err)
	}
	return conf
}

func TestConfig(t *testing.T) {
	conf := parseTestConfig(t)
	x, err := Config(conf, "x")
	if err != nil {
		t.Fatalf("x: %v", err)
	}
	if x.StepDir || len(x.Gpio) != 4 || x.Gpio[3] != 22 {
		t.Errorf("x: gpio %v, stepdir %v", x.Gpio, x.StepDir)
	}
	if x.Steps != 4096 || x.Ticks != DefaultTicks || x.Accel != 2000 || x.Speed != 12.5 {
		t.Errorf("x: unexpected config %+v", x)
	}
	if x.Limit != 21 || !x.Invert {
		t.Errorf("x: limit %d, invert %v", x.Limit, x.Invert)
	}
	y, err := Config(conf, "y")
	if err != nil {
		t.Fatalf("y: %v", err)
	}
	if !y.StepDir || len(y.Gpio) != 3 || y.Ticks != 500000 || y.Limit != -1 || y.Invert {
		t.Errorf("y: unexpected config %+v", y)
	}
	if r := y.StepRate(); r != 400<<8 {
		t.Errorf("y: step rate %d, want %d", r, 400<<8)
	}
}

func TestConfigErrors(t *testing.T) {
	conf := parseTestConfig(t)
	tests := []struct {
		name string
		msg  string
		err  error
	}{
		{"badpins", "stepper: expected 4 GPIOs", nil},
		{"badstepdir", "stepdir: expected step,dir[,enable]", nil},
		{"badaccel", "acceleration", ramp.ErrInvalidArgument},
		{"badspeed", "speed", ramp.ErrTooFast},
		{"missing", "no config for missing", nil},
	}
	for _, tc := range tests {
		_, err := Config(conf, tc.name)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.msg) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.msg, err)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}
