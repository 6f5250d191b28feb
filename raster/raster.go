// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package raster reads and writes single-band GeoTIFF grids and maps between
// pixel and lon/lat coordinates.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrNoOverlap is returned by Mask when the shape does not overlap the raster.
var ErrNoOverlap = errors.New("raster: shape does not overlap raster")

// Transform is an affine pixel-to-world transform in GDAL order:
//
//	x = T[0] + col*T[1] + row*T[2]
//	y = T[3] + col*T[4] + row*T[5]
type Transform [6]float64

// Apply maps fractional pixel coordinates to world coordinates.
func (t Transform) Apply(col, row float64) orb.Point {
	return orb.Point{
		t[0] + col*t[1] + row*t[2],
		t[3] + col*t[4] + row*t[5],
	}
}

// Invert maps world coordinates back to fractional pixel coordinates.
func (t Transform) Invert(p orb.Point) (col, row float64, err error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("raster: singular transform %v", t)
	}
	dx, dy := p.X()-t[0], p.Y()-t[3]
	col = (dx*t[5] - dy*t[2]) / det
	row = (dy*t[1] - dx*t[4]) / det
	return col, row, nil
}

// Window is a half-open pixel rectangle [Col0, Col1) x [Row0, Row1).
type Window struct {
	Col0, Row0, Col1, Row1 int
}

// Empty reports whether the window holds no pixels.
func (w Window) Empty() bool {
	return w.Col1 <= w.Col0 || w.Row1 <= w.Row0
}

// Width returns the number of columns in the window.
func (w Window) Width() int { return max(w.Col1-w.Col0, 0) }

// Height returns the number of rows in the window.
func (w Window) Height() int { return max(w.Row1-w.Row0, 0) }

// Raster is a single-band grid of values stored row-major.
type Raster struct {
	Width, Height int
	Transform     Transform
	NoData        float64
	HasNoData     bool
	Data          []float64
}

// New returns a raster of the given size filled with zeros.
func New(width, height int, t Transform) *Raster {
	return &Raster{
		Width:     width,
		Height:    height,
		Transform: t,
		Data:      make([]float64, width*height),
	}
}

// At returns the raw value at (col, row). It panics when out of range.
func (r *Raster) At(col, row int) float64 {
	return r.Data[row*r.Width+col]
}

// Set stores v at (col, row). It panics when out of range.
func (r *Raster) Set(col, row int, v float64) {
	r.Data[row*r.Width+col] = v
}

// Value returns the value at (col, row) and whether it is valid: inside the
// grid, not NaN and not equal to the nodata value.
func (r *Raster) Value(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}
	v := r.At(col, row)
	if !r.valid(v) {
		return 0, false
	}
	return v, true
}

func (r *Raster) valid(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return !r.HasNoData || v != r.NoData
}

// PixelCenter returns the world coordinates of the centre of a pixel.
func (r *Raster) PixelCenter(col, row int) orb.Point {
	return r.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
}

// ToPixel returns the pixel containing p, and false when p is off the grid.
func (r *Raster) ToPixel(p orb.Point) (col, row int, ok bool) {
	fc, fr, err := r.Transform.Invert(p)
	if err != nil {
		return 0, 0, false
	}
	col, row = int(math.Floor(fc)), int(math.Floor(fr))
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, 0, false
	}
	return col, row, true
}

// Bound returns the world extent of the grid.
func (r *Raster) Bound() orb.Bound {
	b := orb.Bound{Min: r.Transform.Apply(0, 0), Max: r.Transform.Apply(0, 0)}
	b = b.Extend(r.Transform.Apply(float64(r.Width), 0))
	b = b.Extend(r.Transform.Apply(0, float64(r.Height)))
	return b.Extend(r.Transform.Apply(float64(r.Width), float64(r.Height)))
}

// Window returns the pixels whose cells intersect b, clipped to the grid.
func (r *Raster) Window(b orb.Bound) Window {
	corners := []orb.Point{b.Min, {b.Max.X(), b.Min.Y()}, {b.Min.X(), b.Max.Y()}, b.Max}
	minC, minR := math.Inf(1), math.Inf(1)
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for _, p := range corners {
		c, rr, err := r.Transform.Invert(p)
		if err != nil {
			return Window{}
		}
		minC, maxC = math.Min(minC, c), math.Max(maxC, c)
		minR, maxR = math.Min(minR, rr), math.Max(maxR, rr)
	}
	return Window{
		Col0: clamp(int(math.Floor(minC)), 0, r.Width),
		Row0: clamp(int(math.Floor(minR)), 0, r.Height),
		Col1: clamp(int(math.Ceil(maxC)), 0, r.Width),
		Row1: clamp(int(math.Ceil(maxR)), 0, r.Height),
	}
}

// Range returns the minimum and maximum valid values, and false when the
// raster holds no valid value.
func (r *Raster) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range r.Data {
		if !r.valid(v) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// Cover calls fn for every pixel inside w whose centre lies in mp.
func (r *Raster) Cover(mp orb.MultiPolygon, w Window, fn func(col, row int)) {
	b := mp.Bound()
	for row := w.Row0; row < w.Row1; row++ {
		for col := w.Col0; col < w.Col1; col++ {
			c := r.PixelCenter(col, row)
			if !b.Contains(c) || !planar.MultiPolygonContains(mp, c) {
				continue
			}
			fn(col, row)
		}
	}
}

// Mask returns a copy of r in which every pixel whose centre lies outside mp
// is set to nodata (NaN when r has none). With crop the result is cut down to
// the window of mp's bound.
func (r *Raster) Mask(mp orb.MultiPolygon, crop bool) (*Raster, error) {
	w := r.Window(mp.Bound())
	if w.Empty() {
		return nil, ErrNoOverlap
	}
	if !crop {
		w = Window{Col1: r.Width, Row1: r.Height}
	}

	fill := math.NaN()
	if r.HasNoData {
		fill = r.NoData
	}
	out := New(w.Width(), w.Height(), r.Transform)
	origin := r.Transform.Apply(float64(w.Col0), float64(w.Row0))
	out.Transform[0], out.Transform[3] = origin.X(), origin.Y()
	out.NoData, out.HasNoData = fill, true
	for i := range out.Data {
		out.Data[i] = fill
	}

	inside := 0
	r.Cover(mp, w, func(col, row int) {
		out.Set(col-w.Col0, row-w.Row0, r.At(col, row))
		inside++
	})
	if inside == 0 {
		return nil, ErrNoOverlap
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
