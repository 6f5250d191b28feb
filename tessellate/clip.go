// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package tessellate

import (
	"cmp"
	"math"
	"slices"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// Intersect returns the part of cell inside region. The region is first cut
// down to the cell's bound, then intersected exactly. An empty result means
// the cell lies outside the region. Neither argument is modified.
func Intersect(cell orb.Ring, region orb.MultiPolygon) orb.MultiPolygon {
	b := cell.Bound()
	if !b.Intersects(region.Bound()) {
		return nil
	}
	local := clip.MultiPolygon(b, region.Clone())
	if len(local) == 0 {
		return nil
	}

	return split(toGeom(orb.MultiPolygon{{cell}}).Intersection(toGeom(local)))
}

// Union merges the polygons of mp so that overlapping features cover their
// shared area once. The result is a new multipolygon.
func Union(mp orb.MultiPolygon) orb.MultiPolygon {
	var acc geom.Polygonal
	for _, poly := range mp {
		p := toGeom(orb.MultiPolygon{poly})
		if len(p) == 0 {
			continue
		}
		if acc == nil {
			acc = p
			continue
		}
		acc = acc.Union(p)
	}
	if acc == nil {
		return nil
	}
	return split(acc)
}

func split(p geom.Polygonal) orb.MultiPolygon {
	if p == nil {
		return nil
	}
	var out orb.MultiPolygon
	for _, poly := range p.Polygons() {
		out = append(out, fromGeom(poly)...)
	}
	return out
}

// toGeom flattens every ring into one even-odd polygon.
func toGeom(mp orb.MultiPolygon) geom.Polygon {
	var out geom.Polygon
	for _, poly := range mp {
		for _, ring := range poly {
			n := len(ring)
			if n > 1 && ring.Closed() {
				n--
			}
			if n < 3 {
				continue
			}
			path := make(geom.Path, n)
			for i, p := range ring[:n] {
				path[i] = geom.Point{X: p.X(), Y: p.Y()}
			}
			out = append(out, path)
		}
	}
	return out
}

// fromGeom splits an even-odd polygon into outer rings with their holes.
// A path nested in an even number of other paths is an outer ring; an odd
// one is a hole of the smallest outer ring around it.
func fromGeom(p geom.Polygon) orb.MultiPolygon {
	rings := make([]orb.Ring, 0, len(p))
	for _, path := range p {
		if len(path) < 3 {
			continue
		}
		r := make(orb.Ring, 0, len(path)+1)
		for _, pt := range path {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		r = append(r, r[0])
		if planar.Area(r) == 0 {
			continue
		}
		rings = append(rings, r)
	}

	depth := make([]int, len(rings))
	for i, r := range rings {
		for j, other := range rings {
			if i != j && planar.RingContains(other, r[0]) {
				depth[i]++
			}
		}
	}

	type outer struct {
		idx  int
		area float64
	}
	var outers []outer
	for i, r := range rings {
		if depth[i]%2 == 0 {
			outers = append(outers, outer{i, math.Abs(planar.Area(r))})
		}
	}
	slices.SortFunc(outers, func(a, b outer) int { return cmp.Compare(a.area, b.area) })

	polys := make(map[int]orb.Polygon, len(outers))
	for _, o := range outers {
		polys[o.idx] = orb.Polygon{orient(rings[o.idx], orb.CCW)}
	}
	for i, r := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		for _, o := range outers {
			if planar.RingContains(rings[o.idx], r[0]) {
				polys[o.idx] = append(polys[o.idx], orient(r, orb.CW))
				break
			}
		}
	}

	out := make(orb.MultiPolygon, 0, len(outers))
	for i := range rings {
		if poly, ok := polys[i]; ok {
			out = append(out, poly)
		}
	}
	return out
}

func orient(r orb.Ring, o orb.Orientation) orb.Ring {
	if r.Orientation() != o {
		r.Reverse()
	}
	return r
}
