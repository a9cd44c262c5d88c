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

package ramp

import (
	"errors"
	"reflect"
	"testing"
)

const frequency = 1_000_000 // Tests assume timer ticking at 1us (1MHz)

func newGen(t *testing.T, target, microsteps uint32) *Generator {
	t.Helper()
	g, err := New(frequency)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.SetTargetStep(target)
	if err := g.SetAcceleration((1000 * microsteps) << 8); err != nil {
		t.Fatalf("SetAcceleration: %v", err)
	}
	if err := g.SetTargetSpeed((800 * microsteps) << 8); err != nil {
		t.Fatalf("SetTargetSpeed: %v", err)
	}
	return g
}

// run steps the generator until it stops, returning the delays rounded to ticks.
func run(g *Generator) []uint32 {
	var out []uint32
	for {
		d, ok := g.Next()
		if !ok {
			return out
		}
		out = append(out, Ticks(d))
	}
}

func TestRegression(t *testing.T) {
	g := newGen(t, 1000, 1)
	for i := 0; i < 99; i++ {
		g.Next()
	}
	if s := g.CurrentStep(); s != 99 {
		t.Errorf("current step: expected 99, got %d", s)
	}
	if v := g.CurrentSpeed(); v != 113621 {
		t.Errorf("current speed: expected 113621, got %d", v)
	}
	d, ok := g.Next()
	if !ok {
		t.Fatalf("generator stopped at step %d", g.CurrentStep())
	}
	if Ticks(d) != 2242 {
		t.Errorf("delay for step 100: expected 2242, got %d", Ticks(d))
	}
}

func TestProfile(t *testing.T) {
	g := newGen(t, 1000, 1)
	counts := map[Phase]int{}
	var total uint64
	var first, min uint32
	for {
		d, ok := g.Next()
		if !ok {
			break
		}
		counts[g.Phase()]++
		total += uint64(Ticks(d))
		if first == 0 {
			first = Ticks(d)
		}
		if min == 0 || Ticks(d) < min {
			min = Ticks(d)
		}
	}
	if g.CurrentStep() != 1000 {
		t.Errorf("stopped at step %d, expected 1000", g.CurrentStep())
	}
	expected := map[Phase]int{Accelerating: 320, Cruising: 360, Decelerating: 320}
	if !reflect.DeepEqual(counts, expected) {
		t.Errorf("phase step counts: expected %v, got %v", expected, counts)
	}
	if first != 30232 {
		t.Errorf("first delay: expected 30232, got %d", first)
	}
	if min != 1250 {
		t.Errorf("cruise delay: expected 1250, got %d", min)
	}
	if total != 2019832 {
		t.Errorf("total ticks: expected 2019832, got %d", total)
	}
}

func TestShape(t *testing.T) {
	targets := []uint32{1, 2, 3, 4, 5, 10, 99, 100, 333, 640, 641, 642, 1000, 5000}
	for _, micro := range []uint32{1, 2, 16} {
		for _, target := range targets {
			g := newGen(t, target, micro)
			maxSpeed := (800 * micro) << 8
			var prev uint32
			prevPhase := Stopped
			for {
				_, ok := g.Next()
				if !ok {
					break
				}
				if g.CurrentStep() > target {
					t.Fatalf("target %d/%d: overshoot to step %d", target, micro, g.CurrentStep())
				}
				sp := g.CurrentSpeed()
				if sp > maxSpeed {
					t.Errorf("target %d/%d: step %d speed %d exceeds %d", target, micro, g.CurrentStep(), sp, maxSpeed)
				}
				ph := g.Phase()
				if ph == prevPhase {
					switch ph {
					case Accelerating:
						if sp <= prev {
							t.Errorf("target %d/%d: step %d speed %d not increasing (%d)", target, micro, g.CurrentStep(), sp, prev)
						}
					case Cruising:
						if sp != prev {
							t.Errorf("target %d/%d: step %d cruise speed changed %d -> %d", target, micro, g.CurrentStep(), prev, sp)
						}
					case Decelerating:
						if sp >= prev {
							t.Errorf("target %d/%d: step %d speed %d not decreasing (%d)", target, micro, g.CurrentStep(), sp, prev)
						}
					}
				}
				prev, prevPhase = sp, ph
			}
			if g.CurrentStep() != target {
				t.Errorf("target %d/%d: stopped at step %d", target, micro, g.CurrentStep())
			}
			if g.CurrentSpeed() != 0 || g.Phase() != Stopped {
				t.Errorf("target %d/%d: not at rest (speed %d, %s)", target, micro, g.CurrentSpeed(), g.Phase())
			}
		}
	}
}

func TestShortRamps(t *testing.T) {
	tests := []struct {
		target uint32
		want   []uint32
	}{
		{1, []uint32{30232}},
		{2, []uint32{30232, 30232}},
		{3, []uint32{30232, 18139, 30232}},
		{5, []uint32{30232, 18139, 14108, 18139, 30232}},
	}
	for _, tc := range tests {
		got := run(newGen(t, tc.target, 1))
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("target %d: expected %v, got %v", tc.target, tc.want, got)
		}
	}
}

func TestZeroLength(t *testing.T) {
	g := newGen(t, 0, 1)
	for i := 0; i < 3; i++ {
		d, ok := g.Next()
		if ok || d != 0 {
			t.Fatalf("call %d: expected terminal result, got %d, %v", i, d, ok)
		}
	}
	if g.CurrentStep() != 0 || g.CurrentDelay() != 0 || g.Phase() != Stopped {
		t.Errorf("state changed: step %d delay %d phase %s", g.CurrentStep(), g.CurrentDelay(), g.Phase())
	}
}

func TestIdempotentAtRest(t *testing.T) {
	g := newGen(t, 100, 1)
	run(g)
	for i := 0; i < 5; i++ {
		d, ok := g.Next()
		if ok || d != 0 {
			t.Fatalf("expected terminal result, got %d, %v", d, ok)
		}
		if g.CurrentStep() != 100 {
			t.Fatalf("step changed to %d", g.CurrentStep())
		}
	}
}

func TestStopMidRamp(t *testing.T) {
	g := newGen(t, 1000, 1)
	for i := 0; i < 250; i++ {
		g.Next()
	}
	if g.Phase() != Accelerating {
		t.Fatalf("expected accelerating at step 250, got %s", g.Phase())
	}
	g.SetTargetStep(0)
	d, ok := g.Next()
	if !ok {
		t.Fatalf("stopped without decelerating")
	}
	if g.Phase() != Decelerating {
		t.Errorf("expected decelerating, got %s", g.Phase())
	}
	if Ticks(d) != 1419 {
		t.Errorf("first braking delay: expected 1419, got %d", Ticks(d))
	}
	prev := d
	for {
		d, ok := g.Next()
		if !ok {
			break
		}
		if d <= prev {
			t.Fatalf("step %d: delay %d not increasing while braking", g.CurrentStep(), d)
		}
		prev = d
	}
	if g.CurrentStep() != 499 {
		t.Errorf("braking: expected stop at 499, got %d", g.CurrentStep())
	}
}

func TestStopInsideBrakingDistance(t *testing.T) {
	g := newGen(t, 1000, 1)
	for i := 0; i < 100; i++ {
		g.Next()
	}
	// The new target leaves exactly enough room to brake.
	stop := g.CurrentStep() + 100
	g.SetTargetStep(stop)
	run(g)
	if g.CurrentStep() != stop {
		t.Errorf("expected stop at %d, got %d", stop, g.CurrentStep())
	}
}

func TestLowerSpeed(t *testing.T) {
	g := newGen(t, 2000, 1)
	for i := 0; i < 500; i++ {
		g.Next()
	}
	if g.Phase() != Cruising || Ticks(g.CurrentDelay()) != 1250 {
		t.Fatalf("expected cruising at 1250, got %s at %d", g.Phase(), Ticks(g.CurrentDelay()))
	}
	if err := g.SetTargetSpeed(400 << 8); err != nil {
		t.Fatalf("SetTargetSpeed: %v", err)
	}
	d, _ := g.Next()
	if g.Phase() != Decelerating || Ticks(d) != 1251 {
		t.Errorf("expected decelerating at 1251, got %s at %d", g.Phase(), Ticks(d))
	}
	for g.Phase() != Cruising {
		if _, ok := g.Next(); !ok {
			t.Fatalf("stopped instead of cruising")
		}
	}
	if g.CurrentStep() != 741 {
		t.Errorf("expected new cruise from step 741, got %d", g.CurrentStep())
	}
	if Ticks(g.CurrentDelay()) != 2500 || g.CurrentSpeed() != 400<<8 {
		t.Errorf("new cruise: delay %d speed %d", Ticks(g.CurrentDelay()), g.CurrentSpeed())
	}
	run(g)
	if g.CurrentStep() != 2000 {
		t.Errorf("expected stop at 2000, got %d", g.CurrentStep())
	}
}

func TestRaiseSpeed(t *testing.T) {
	g := newGen(t, 3000, 1)
	for i := 0; i < 700; i++ {
		g.Next()
	}
	if g.Phase() != Cruising {
		t.Fatalf("expected cruising, got %s", g.Phase())
	}
	if err := g.SetTargetSpeed(1600 << 8); err != nil {
		t.Fatalf("SetTargetSpeed: %v", err)
	}
	g.Next()
	if g.Phase() != Accelerating {
		t.Errorf("expected accelerating, got %s", g.Phase())
	}
	for g.Phase() != Cruising {
		g.Next()
	}
	if g.CurrentStep() != 1660 || Ticks(g.CurrentDelay()) != 625 {
		t.Errorf("expected cruise at 625 from step 1660, got %d from %d", Ticks(g.CurrentDelay()), g.CurrentStep())
	}
	run(g)
	if g.CurrentStep() != 3000 {
		t.Errorf("expected stop at 3000, got %d", g.CurrentStep())
	}
}

func TestConfigErrors(t *testing.T) {
	if _, err := New(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New(0): expected invalid argument, got %v", err)
	}
	g := newGen(t, 1000, 1)
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"zero acceleration", g.SetAcceleration(0), ErrInvalidArgument},
		{"slow acceleration", g.SetAcceleration(1 << 8), ErrTooSlow},
		{"zero speed", g.SetTargetSpeed(0), ErrTooSlow},
		{"slow speed", g.SetTargetSpeed(1 << 8), ErrTooSlow},
		{"fast speed", g.SetTargetSpeed(1_000_000 << 8), ErrTooFast},
	}
	for _, tc := range tests {
		if !errors.Is(tc.err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, tc.err)
		}
		if !errors.Is(tc.err, ErrInvalidArgument) {
			t.Errorf("%s: %v is not an invalid argument", tc.name, tc.err)
		}
	}
	// A seed delay the timer cannot service.
	for _, tc := range []struct {
		ticks, accel uint32
	}{
		{1000, 0xFFFFFFFF},
		{1, 1000 << 8},
	} {
		slow, err := New(tc.ticks)
		if err != nil {
			t.Fatalf("New(%d): %v", tc.ticks, err)
		}
		if err := slow.SetAcceleration(tc.accel); !errors.Is(err, ErrTooFast) || !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%d Hz, acceleration %d: expected too fast, got %v", tc.ticks, tc.accel, err)
		}
	}
	// Rejected settings must leave the ramp untouched.
	for i := 0; i < 99; i++ {
		g.Next()
	}
	if v := g.CurrentSpeed(); v != 113621 {
		t.Errorf("current speed after rejected settings: expected 113621, got %d", v)
	}
}

func TestTargetDelay(t *testing.T) {
	d, err := TargetDelay(frequency, 800<<8)
	if err != nil {
		t.Fatalf("TargetDelay: %v", err)
	}
	if Ticks(d) != 1250 {
		t.Errorf("expected 1250 ticks, got %d", Ticks(d))
	}
	if _, err := TargetDelay(0, 800<<8); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero ticks: expected invalid argument, got %v", err)
	}
}

func TestReset(t *testing.T) {
	g := newGen(t, 10, 1)
	run(g)
	g.Reset()
	if g.CurrentStep() != 0 || g.TargetStep() != 0 {
		t.Fatalf("reset: step %d target %d", g.CurrentStep(), g.TargetStep())
	}
	g.SetTargetStep(5)
	got := run(g)
	want := []uint32{30232, 18139, 14108, 18139, 30232}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after reset: expected %v, got %v", want, got)
	}
	// Reset while moving is ignored.
	g.SetTargetStep(100)
	g.Next()
	g.Reset()
	if g.CurrentStep() != 6 {
		t.Errorf("reset while moving: step %d", g.CurrentStep())
	}
}

func TestSpeedCappedBySeed(t *testing.T) {
	g, err := New(frequency)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.SetTargetStep(4)
	if err := g.SetAcceleration(1000 << 8); err != nil {
		t.Fatalf("SetAcceleration: %v", err)
	}
	// 20 steps/s is slower than the first step of the ramp.
	if err := g.SetTargetSpeed(20 << 8); err != nil {
		t.Fatalf("SetTargetSpeed: %v", err)
	}
	got := run(g)
	want := []uint32{50000, 50000, 50000, 50000}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUnconfigured(t *testing.T) {
	g, err := New(frequency)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.SetTargetStep(5)
	for i := 0; i < 3; i++ {
		if d, ok := g.Next(); ok || d != 0 {
			t.Fatalf("Next without acceleration or speed: got (%d, %v)", d, ok)
		}
	}
	if err := g.SetAcceleration(1000 << 8); err != nil {
		t.Fatalf("SetAcceleration: %v", err)
	}
	if d, ok := g.Next(); ok || d != 0 {
		t.Fatalf("Next without speed: got (%d, %v)", d, ok)
	}
	if g.CurrentStep() != 0 || g.Phase() != Stopped {
		t.Errorf("unconfigured generator moved: step %d, %s", g.CurrentStep(), g.Phase())
	}
	if err := g.SetTargetSpeed(800 << 8); err != nil {
		t.Fatalf("SetTargetSpeed: %v", err)
	}
	if n := len(run(g)); n != 5 {
		t.Errorf("expected 5 steps once configured, got %d", n)
	}
}
