// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package render

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// padding is the share of the extent's width added around every side.
const padding = 0.05

// frame projects lon/lat onto a pixel box, keeping degrees square and
// centring the content.
type frame struct {
	bound  orb.Bound
	scale  float64
	ox, oy float64
}

func newFrame(b orb.Bound, x, y, w, h float64) frame {
	pad := (b.Max[0] - b.Min[0]) * padding
	b.Min = orb.Point{b.Min[0] - pad, b.Min[1] - pad}
	b.Max = orb.Point{b.Max[0] + pad, b.Max[1] + pad}
	for i := range 2 {
		if b.Max[i]-b.Min[i] <= 0 {
			b.Min[i] -= 0.5
			b.Max[i] += 0.5
		}
	}

	bw, bh := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	scale := math.Min(w/bw, h/bh)
	return frame{
		bound: b,
		scale: scale,
		ox:    x + (w-bw*scale)/2,
		oy:    y + (h-bh*scale)/2,
	}
}

func (f frame) project(p orb.Point) (x, y float64) {
	return f.ox + (p[0]-f.bound.Min[0])*f.scale, f.oy + (f.bound.Max[1]-p[1])*f.scale
}

// box returns the pixel rectangle covered by the padded extent.
func (f frame) box() (x, y, w, h float64) {
	return f.ox, f.oy, (f.bound.Max[0] - f.bound.Min[0]) * f.scale, (f.bound.Max[1] - f.bound.Min[1]) * f.scale
}

// ticks returns round values in [lo, hi], about n of them.
func ticks(lo, hi float64, n int) []float64 {
	if !(hi > lo) || n < 1 {
		return nil
	}
	step := niceStep((hi - lo) / float64(n))
	var out []float64
	for v := math.Ceil(lo/step) * step; v <= hi+step*1e-9; v += step {
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 2.5, 5} {
		if raw <= m*mag {
			return m * mag
		}
	}
	return 10 * mag
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
