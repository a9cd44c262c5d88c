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
// Jog utility, for moving an axis by hand

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aamcrae/config"
	"github.com/aamcrae/stepgen/axis"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("axis", "", "Axis to move e.g x, y, carriage")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	ac, err := axis.Config(conf, *section)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	m, err := axis.NewMotor(ac)
	if err != nil {
		log.Fatalf("Motor: %s %v", *section, err)
	}
	defer m.Close()
	a := m.Axis
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("Position %d, speed %.2f RPM (%s)\n", a.Position(), m.Stepper.Speed(), m.Stepper.Phase())
		fmt.Print("Enter steps or command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		f := strings.Fields(text)
		if len(f) == 0 {
			continue
		}
		var v float64
		var steps int64
		switch f[0] {
		case "help":
			fmt.Println("  help - print help")
			fmt.Println("  [-]NNN - move steps")
			fmt.Println("  g NNN - go to position")
			fmt.Println("  s RPM - set speed")
			fmt.Println("  h - set current position as home")
			fmt.Println("  H - move to limit switch and set home")
			fmt.Println("  off - turn off motor")
			fmt.Println("  q - quit")
		case "q":
			return
		case "h":
			a.SetHome()
		case "H":
			if m.Limit == nil {
				fmt.Println("No limit switch configured")
			} else if err := axis.Home(a, m.Limit, -int64(ac.Steps)*10); err != nil {
				fmt.Printf("Homing failed: %v\n", err)
			}
		case "off":
			m.Stepper.Off()
		case "g":
			if len(f) != 2 {
				fmt.Println("Usage: g position")
			} else if _, err := fmt.Sscanf(f[1], "%d", &steps); err != nil {
				fmt.Printf("%s: %v\n", f[1], err)
			} else if err := a.MoveTo(steps); err != nil {
				fmt.Printf("Move: %v\n", err)
			} else {
				a.Wait()
			}
		case "s":
			if len(f) != 2 {
				fmt.Println("Usage: s rpm")
			} else if _, err := fmt.Sscanf(f[1], "%f", &v); err != nil {
				fmt.Printf("%s: %v\n", f[1], err)
			} else if err := a.SetSpeed(v); err != nil {
				fmt.Printf("Speed: %v\n", err)
			}
		default:
			n, err := fmt.Sscanf(f[0], "%d", &steps)
			if err != nil || n != 1 {
				fmt.Printf("Unrecognised input\n")
			} else {
				fmt.Printf("Moving %d steps\n", steps)
				if err := a.Move(steps); err != nil {
					fmt.Printf("Move: %v\n", err)
				}
				a.Wait()
			}
		}
	}
}
