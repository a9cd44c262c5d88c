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
// Stepper motor controller program.
// Axes are read from a configuration file, and each is moved
// using an accelerating and decelerating ramp.

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/aamcrae/config"
	"github.com/aamcrae/stepgen/axis"
	"github.com/pkg/errors"
)

var configFile = flag.String("config", "stepgen.conf", "Configuration file")
var moves = flag.String("move", "", "Moves to make, e.g x=100,y=-50")
var home = flag.String("home", "", "Axes to home against their limit switch, e.g x,y")
var homeSteps = flag.Int64("homesteps", -10000, "Maximum steps to travel when homing")
var port = flag.Int("port", 0, "If set, serve ramp profile plots on this port")

type move struct {
	name  string
	steps int64
}

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	ml, err := parseMoves(*moves)
	if err != nil {
		log.Fatalf("move: %v", err)
	}
	var homing []string
	if len(*home) > 0 {
		homing = strings.Split(*home, ",")
	}
	cfgs := make(map[string]*axis.AxisConfig)
	motors := make(map[string]*axis.Motor)
	defer func() {
		for _, m := range motors {
			m.Close()
		}
	}()
	names := homing
	for _, m := range ml {
		names = append(names, m.name)
	}
	for _, name := range names {
		if _, ok := motors[name]; ok {
			continue
		}
		ac, err := axis.Config(conf, name)
		if err != nil {
			log.Fatalf("%s: %v", *configFile, err)
		}
		cfgs[name] = ac
		m, err := axis.NewMotor(ac)
		if err != nil {
			log.Fatalf("%s: %v", name, err)
		}
		motors[name] = m
	}
	if *port != 0 {
		go func() {
			log.Fatal(axis.ProfileServer(*port, cfgs))
		}()
	}
	// Stop all axes on interrupt.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		log.Printf("Interrupted, stopping")
		for _, m := range motors {
			m.Axis.Stop()
		}
	}()
	for _, name := range homing {
		m := motors[name]
		if m.Limit == nil {
			log.Fatalf("%s: no limit switch configured", name)
		}
		if err := axis.Home(m.Axis, m.Limit, *homeSteps); err != nil {
			log.Fatalf("%v", err)
		}
	}
	for _, mv := range ml {
		if err := motors[mv.name].Axis.Move(mv.steps); err != nil {
			log.Fatalf("%s: %v", mv.name, err)
		}
	}
	for name, m := range motors {
		m.Axis.Wait()
		log.Printf("%s: at position %d", name, m.Axis.Position())
	}
	if *port != 0 {
		select {}
	}
}

// parseMoves parses a list of moves of the form name=steps,name=steps
func parseMoves(s string) ([]move, error) {
	var ml []move
	if len(s) == 0 {
		return ml, nil
	}
	for _, f := range strings.Split(s, ",") {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 || len(kv[0]) == 0 {
			return nil, errors.Errorf("%s: expected name=steps", f)
		}
		v, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, kv[0])
		}
		ml = append(ml, move{kv[0], v})
	}
	return ml, nil
}
