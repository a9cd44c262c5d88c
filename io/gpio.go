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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

const (
	gpioBaseDir      = "/sys/class/gpio/"
	gpioExportFile   = gpioBaseDir + "export"
	gpioUnexportFile = gpioBaseDir + "unexport"
)

var directions = map[int]string{IN: "in", OUT: "out"}

var edges = map[int]string{NONE: "none", RISING: "rising", FALLING: "falling", BOTH: "both"}

// Gpio represents one sysfs GPIO pin.
type Gpio struct {
	number    int
	base      string
	value     *os.File
	buf       []byte
	direction int
	edge      int
	pollfd    []unix.PollFd
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
func OutputPin(gpio int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	if err := g.Direction(OUT); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// InputPin opens a GPIO pin as an input, with edge detection enabled so
// that Get blocks until the input changes.
func InputPin(gpio, edge int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	if err := g.Edge(edge); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(gpio int) (*Gpio, error) {
	g := &Gpio{number: gpio, buf: make([]byte, 1)}
	g.base = fmt.Sprintf("%sgpio%d", gpioBaseDir, gpio)
	vName := g.base + "/value"
	if err := export(vName, gpioExportFile, gpio); err != nil {
		return nil, err
	}
	err := g.Direction(IN)
	if err == nil {
		err = g.Edge(NONE)
	}
	if err == nil {
		g.value, err = os.OpenFile(vName, os.O_RDWR, 0600)
	}
	if err != nil {
		unexport(gpioUnexportFile, gpio)
		return nil, err
	}
	g.pollfd = []unix.PollFd{{Fd: int32(g.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	return g, nil
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	s, ok := directions[d]
	if !ok {
		return errors.Errorf("gpio%d: unknown direction %d", g.number, d)
	}
	if err := writeFile(g.base+"/direction", s); err != nil {
		return errors.Wrapf(err, "gpio%d: direction", g.number)
	}
	g.direction = d
	return nil
}

// Edge sets the edge detection on the GPIO pin.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return errors.Errorf("gpio%d: not set as an input pin", g.number)
	}
	s, ok := edges[e]
	if !ok {
		return errors.Errorf("gpio%d: unknown edge %d", g.number, e)
	}
	if err := writeFile(g.base+"/edge", s); err != nil {
		return errors.Wrapf(err, "gpio%d: edge", g.number)
	}
	g.edge = e
	return nil
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return errors.Errorf("gpio%d: is not output", g.number)
	}
	if v != 0 && v != 1 {
		return errors.Errorf("gpio%d: illegal value %d", g.number, v)
	}
	g.buf[0] = '0' + byte(v)
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get returns the current value of the GPIO pin. If edge detection
// is enabled, Get waits for the next edge before reading the value.
func (g *Gpio) Get() (int, error) {
	if g.edge != NONE {
		g.pollfd[0].Revents = 0
		// With no timeout, poll should always return an event.
		if _, err := unix.Poll(g.pollfd, -1); err != nil {
			return 0, errors.Wrapf(err, "gpio%d: poll", g.number)
		}
	}
	if _, err := g.value.ReadAt(g.buf, 0); err != nil {
		return 0, err
	}
	switch g.buf[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, errors.Errorf("gpio%d: unknown value %q", g.number, g.buf)
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	if g.value != nil {
		g.value.Close()
	}
	unexport(gpioUnexportFile, g.number)
}
