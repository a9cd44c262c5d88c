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
// Ramp profile simulator.
// Runs the ramp generator offline and prints the delay of each step
// (rounded to whole ticks) one per line. When a stop is requested
// a "Stopping" line is printed.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aamcrae/stepgen/axis"
	"github.com/aamcrae/stepgen/ramp"
	"github.com/fogleman/gg"
)

var accel = flag.Float64("accel", 1000, "Acceleration in steps/sec/sec")
var rpm = flag.Float64("rpm", 240, "Cruise speed in RPM")
var steps = flag.Int("steps", 200, "Steps per revolution")
var ticks = flag.Uint("ticks", axis.DefaultTicks, "Timer ticks per second")
var target = flag.Uint("target", 1000, "Number of steps to move")
var stopAt = flag.Uint("stop", 0, "Request a stop at this step (0 for none)")
var output = flag.String("png", "", "Write a plot of the profile to this PNG file")
var port = flag.Int("port", 0, "If set, serve profile plots on this port")
var summary = flag.Bool("summary", false, "Print a summary instead of each delay")

func main() {
	flag.Parse()
	ac := &axis.AxisConfig{
		Name:  "sim",
		Steps: *steps,
		Ticks: uint32(*ticks),
		Accel: *accel,
		Speed: *rpm,
		Limit: -1,
	}
	if err := ac.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	samples, err := axis.Profile(ac, uint32(*target), uint32(*stopAt))
	if err != nil {
		log.Fatalf("Profile: %v", err)
	}
	if *summary {
		printSummary(samples)
	} else {
		printDelays(samples)
	}
	if len(*output) > 0 {
		if err := writePlot(*output, samples); err != nil {
			log.Fatalf("%s: %v", *output, err)
		}
	}
	if *port != 0 {
		log.Fatal(axis.ProfileServer(*port, map[string]*axis.AxisConfig{ac.Name: ac}))
	}
}

func printDelays(samples []axis.Sample) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for i, s := range samples {
		if *stopAt != 0 && i == int(*stopAt) {
			fmt.Fprintln(w, "Stopping")
		}
		fmt.Fprintln(w, ramp.Ticks(s.Delay))
	}
	if *stopAt != 0 && len(samples) == int(*stopAt) {
		fmt.Fprintln(w, "Stopping")
	}
}

func printSummary(samples []axis.Sample) {
	counts := make(map[ramp.Phase]int)
	var total uint64
	for _, s := range samples {
		counts[s.Phase]++
		total += uint64(ramp.Ticks(s.Delay))
	}
	fmt.Printf("%d steps, %d ticks (%.3f seconds)\n", len(samples), total, float64(total)/float64(*ticks))
	for _, p := range []ramp.Phase{ramp.Accelerating, ramp.Cruising, ramp.Decelerating} {
		fmt.Printf("%-13s %d steps\n", p.String()+":", counts[p])
	}
}

func writePlot(name string, samples []axis.Sample) error {
	return gg.SavePNG(name, axis.Plot(samples, 800, 400))
}
