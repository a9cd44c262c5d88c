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
// Program to demonstrate how to watch edge triggered inputs.
// The stepper is run until the input changes, and is then
// brought to a controlled stop.

package main

import (
	"flag"
	"log"

	"github.com/aamcrae/stepgen/io"
)

var gpio = flag.Int("gpio", 21, "GPIO pin for input")
var step = flag.Int("step", 5, "GPIO pin for stepper controller step")
var dir = flag.Int("dir", 6, "GPIO pin for stepper controller direction")
var rpm = flag.Float64("rpm", 60, "RPM")
var accel = flag.Float64("accel", 400, "Acceleration in steps/sec/sec")

func main() {
	flag.Parse()
	p, err := io.Pin(*gpio)
	if err != nil {
		log.Fatalf("Pin %d: %v", *gpio, err)
	}
	err = p.Edge(io.BOTH)
	if err != nil {
		log.Fatalf("Pin %d: edge BOTH: %v", *gpio, err)
	}
	defer p.Close()
	sp, err := io.OutputPin(*step)
	if err != nil {
		log.Fatalf("Pin %d: %v", *step, err)
	}
	defer sp.Close()
	dp, err := io.OutputPin(*dir)
	if err != nil {
		log.Fatalf("Pin %d: %v", *dir, err)
	}
	defer dp.Close()
	s, err := io.NewStepDir(200, 1000000, *accel, sp, dp, nil)
	if err != nil {
		log.Fatalf("Stepper: %v", err)
	}
	defer s.Close()
	if err := s.Step(*rpm, 1000000); err != nil {
		log.Fatalf("Step: %v", err)
	}
	v, err := p.Get()
	if err != nil {
		log.Fatalf("Pin %d: Get: %v", *gpio, err)
	}
	log.Printf("pin %d = %d, stopping at step %d\n", *gpio, v, s.GetStep())
	s.Stop()
	log.Printf("stopped at step %d\n", s.GetStep())
}
