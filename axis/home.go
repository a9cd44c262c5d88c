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

// Homing against a limit switch

package axis

import (
	"log"

	"github.com/pkg/errors"
)

// Home moves the axis towards the limit switch, travelling at most
// maxSteps (negative to search in the counter-clockwise direction).
// When the switch closes the axis stops, and the position it stops
// at becomes the home position.
func Home(a *Axis, l *Limit, maxSteps int64) error {
	log.Printf("%s: Starting homing", a.Name)
	if !l.Active() {
		if err := a.Move(maxSteps); err != nil {
			return err
		}
		a.Wait()
		if !l.Active() {
			return errors.Errorf("%s: limit switch not found within %d steps", a.Name, maxSteps)
		}
	}
	a.SetHome()
	log.Printf("%s: Homing complete", a.Name)
	return nil
}
