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
	"math"
)

// FracBits is the number of fractional bits in fixed-point values.
const FracBits = 8

// ToFixed converts a real value to 24.8 fixed point, rounding to the
// nearest 1/256. Negative values convert to 0 and values that are too
// large saturate.
func ToFixed(v float64) uint32 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	f := math.Round(v * (1 << FracBits))
	if f >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(f)
}

// FromFixed converts a 24.8 fixed point value to a real value.
func FromFixed(v uint32) float64 {
	return float64(v) / (1 << FracBits)
}

// Ticks rounds a 24.8 delay to the nearest whole timer tick.
func Ticks(delay uint32) uint32 {
	return uint32((uint64(delay) + (1 << (FracBits - 1))) >> FracBits)
}

// Sqrt64 returns the square root of x, rounded to the nearest integer.
func Sqrt64(x uint64) uint64 {
	var r uint64
	q := uint64(1) << 62 // Highest possible result bit
	for q != 0 {
		if r+q <= x {
			x -= r + q
			r >>= 1
			r += q
		} else {
			r >>= 1
		}
		q >>= 2
	}
	if r < x {
		r++
	}
	return r
}
