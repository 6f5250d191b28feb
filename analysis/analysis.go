// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package analysis classifies cells by mean wind speed and summarises the
// distribution of wind speeds over a tessellation.
package analysis

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Cell is a tessellation cell with its wind statistics.
type Cell struct {
	ID       int
	Site     orb.Point
	Geometry orb.MultiPolygon
	// Area is the geodesic area in square kilometres.
	Area float64

	WindMean float64
	WindStd  float64
	// Pixels is the number of raster pixels behind the statistics.
	Pixels int
	// Neighbors holds the IDs of adjacent cells.
	Neighbors []int
}

// Category is a half-open speed range (Lo, Hi] in m/s.
type Category struct {
	Label  string
	Lo, Hi float64
}

// Categories are the wind speed classes in ascending order.
var Categories = []Category{
	{"<3", 0, 3},
	{"3-4", 3, 4},
	{"4-5", 4, 5},
	{"5-6", 5, 6},
	{"6-7", 6, 7},
	{"7-8", 7, 8},
	{"8-9", 8, 9},
	{"9-10", 9, 10},
	{">10", 10, math.Inf(1)},
}

// Categorize returns the label of the category holding v. Values that are
// NaN or not positive have no category.
func Categorize(v float64) (string, bool) {
	for _, c := range Categories {
		if v > c.Lo && v <= c.Hi {
			return c.Label, true
		}
	}
	return "", false
}

// IsHigh reports whether a mean wind speed exceeds minSpeed. NaN never does.
func IsHigh(mean, minSpeed float64) bool {
	return mean > minSpeed
}

// HighPotential returns the records whose mean wind speed exceeds minSpeed,
// keeping their order.
func HighPotential(cells []Cell, minSpeed float64) []Cell {
	var out []Cell
	for _, c := range cells {
		if IsHigh(c.WindMean, minSpeed) {
			out = append(out, c)
		}
	}
	return out
}

// Bin is the share of cells in one category.
type Bin struct {
	Label      string
	Count      int
	Percentage float64
}

// Summary describes the distribution of mean wind speeds.
type Summary struct {
	Total      int
	High       int
	Percentage float64
	MinSpeed   float64

	// Statistics of WindMean over cells that have one. Std is the sample
	// standard deviation.
	Min, Max, Mean, Median, Std float64

	// Distribution lists every category in order, including empty ones.
	Distribution []Bin
}

// Summarize computes the summary of cells for threshold minSpeed. Percentages
// are relative to all cells, including those without statistics.
func Summarize(cells []Cell, minSpeed float64) Summary {
	s := Summary{Total: len(cells), MinSpeed: minSpeed}
	counts := make(map[string]int, len(Categories))

	var values []float64
	for _, c := range cells {
		if IsHigh(c.WindMean, minSpeed) {
			s.High++
		}
		if label, ok := Categorize(c.WindMean); ok {
			counts[label]++
		}
		if !math.IsNaN(c.WindMean) {
			values = append(values, c.WindMean)
		}
	}
	s.Percentage = percent(s.High, s.Total)

	nan := math.NaN()
	s.Min, s.Max, s.Mean, s.Median, s.Std = nan, nan, nan, nan, nan
	if len(values) > 0 {
		s.Min = floats.Min(values)
		s.Max = floats.Max(values)
		s.Mean = stat.Mean(values, nil)
		s.Median = median(values)
	}
	if len(values) > 1 {
		s.Std = stat.StdDev(values, nil)
	}

	s.Distribution = make([]Bin, len(Categories))
	for i, c := range Categories {
		n := counts[c.Label]
		s.Distribution[i] = Bin{Label: c.Label, Count: n, Percentage: percent(n, s.Total)}
	}
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// median averages the two middle values of an even-sized sample.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
