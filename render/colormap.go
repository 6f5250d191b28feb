// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package render draws wind rasters and analysed cells as PNG figures and
// interactive SVG/HTML maps.
package render

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Gradient is a sorted list of colour keypoints with positions in [0, 1].
type Gradient []struct {
	Col colorful.Color
	Pos float64
}

// At returns the Lab blend of the keypoints around t. Values outside [0, 1]
// are clamped.
func (g Gradient) At(t float64) colorful.Color {
	if t <= g[0].Pos || math.IsNaN(t) {
		return g[0].Col
	}
	if t >= g[len(g)-1].Pos {
		return g[len(g)-1].Col
	}
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			t := (t - c1.Pos) / (c2.Pos - c1.Pos)
			return c1.Col.BlendLab(c2.Col, t).Clamped()
		}
	}
	return g[len(g)-1].Col
}

// evenly spaces hex colours over [0, 1].
func evenly(hexes ...string) Gradient {
	g := make(Gradient, len(hexes))
	for i, h := range hexes {
		g[i].Col = mustParseHex(h)
		g[i].Pos = float64(i) / float64(len(hexes)-1)
	}
	return g
}

func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("render: " + err.Error())
	}
	return c
}

var (
	// Viridis colours the wind raster.
	Viridis = evenly("#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
		"#28ae80", "#5ec962", "#addc30", "#fde725")

	// YlOrRd colours cells in the interactive map.
	YlOrRd = evenly("#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c",
		"#fc4e2a", "#e31a1c", "#bd0026", "#800026")
)

// Scale maps values in [Lo, Hi] onto a gradient.
type Scale struct {
	Lo, Hi   float64
	Gradient Gradient
}

// Color returns the colour of v. A degenerate range maps everything to the
// middle of the gradient.
func (s Scale) Color(v float64) colorful.Color {
	t := 0.5
	if s.Hi > s.Lo {
		t = (v - s.Lo) / (s.Hi - s.Lo)
	}
	return s.Gradient.At(t)
}
