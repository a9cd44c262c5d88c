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

// HTTP server for ramp profile plots
package axis

import (
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/aamcrae/stepgen/ramp"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

const margin = 20

// Largest move that will be profiled for a web request.
const maxProfileSteps = 100000

// Plot draws the speed of each sample against the step number.
// The line is coloured by the phase of the ramp.
func Plot(samples []Sample, width, height int) image.Image {
	c := gg.NewContext(width, height)
	c.SetRGB(1, 1, 1)
	c.Clear()
	// Axes
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(1)
	c.DrawLine(margin, margin, margin, float64(height-margin))
	c.DrawLine(margin, float64(height-margin), float64(width-margin), float64(height-margin))
	c.Stroke()
	if len(samples) == 0 {
		return c.Image()
	}
	var top uint32
	for _, s := range samples {
		if s.Speed > top {
			top = s.Speed
		}
	}
	if top == 0 {
		top = 1
	}
	xScale := float64(width-2*margin) / float64(len(samples))
	yScale := float64(height-2*margin) / float64(top)
	px, py := float64(margin), float64(height-margin)
	c.SetLineWidth(2)
	// At most one segment per pixel.
	pw := width - 2*margin
	if pw < 1 {
		pw = 1
	}
	stride := len(samples)/pw + 1
	for i := stride - 1; i < len(samples); i += stride {
		s := samples[i]
		x := float64(margin) + float64(i+1)*xScale
		y := float64(height-margin) - float64(s.Speed)*yScale
		setPhaseColour(c, s.Phase)
		c.DrawLine(px, py, x, y)
		c.Stroke()
		px, py = x, y
	}
	c.SetRGB(0, 0, 0)
	c.DrawString(fmt.Sprintf("%d steps, max %.1f steps/sec", len(samples), ramp.FromFixed(top)), margin+5, margin)
	return c.Image()
}

func setPhaseColour(c *gg.Context, p ramp.Phase) {
	switch p {
	case ramp.Accelerating:
		c.SetRGB(0, 0.6, 0)
	case ramp.Cruising:
		c.SetRGB(0, 0, 1)
	case ramp.Decelerating:
		c.SetRGB(1, 0, 0)
	default:
		c.SetRGB(0.5, 0.5, 0.5)
	}
}

// Handler returns a http.Handler that serves profile plots of the
// configured axes, as /profile/<name>.png?target=N&stop=M
func Handler(cfgs map[string]*AxisConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/profile/")
		if name == r.URL.Path || !strings.HasSuffix(name, ".png") {
			http.NotFound(w, r)
			return
		}
		ac, ok := cfgs[strings.TrimSuffix(name, ".png")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		target, err := queryInt(r, "target", 1000)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if target > maxProfileSteps {
			http.Error(w, fmt.Sprintf("target: limited to %d steps", maxProfileSteps), http.StatusBadRequest)
			return
		}
		stop, err := queryInt(r, "stop", 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		samples, err := Profile(ac, target, stop)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c := gg.NewContextForImage(Plot(samples, 800, 400))
		w.Header().Set("Content-Type", "image/png")
		if err := c.EncodePNG(w); err != nil {
			log.Printf("Error writing image: %v\n", err)
		}
	})
}

func queryInt(r *http.Request, key string, def uint32) (uint32, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, key)
	}
	return uint32(v), nil
}

// ProfileServer serves profile plots on the port.
func ProfileServer(port int, cfgs map[string]*AxisConfig) error {
	http.Handle("/profile/", Handler(cfgs))
	url := fmt.Sprintf(":%d", port)
	log.Printf("Starting server on %s", url)
	server := &http.Server{Addr: url}
	return server.ListenAndServe()
}
