// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package s2voronoi grows Voronoi cells on the unit sphere as the dual of a
// spherical Delaunay triangulation. Cells are the raw, unclipped tiles that
// tessellate later cuts to a boundary.
package s2voronoi

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Cell is a read-only view of one cell of a Diagram. Cell i belongs to
// Diagram.Sites[i]; the view stays valid until the diagram is relaxed.
type Cell struct {
	idx int
	d   *Diagram
}

// SiteIndex is the position of the cell's site in Diagram.Sites.
func (c Cell) SiteIndex() int {
	return c.idx
}

// Site is the generating point of the cell.
func (c Cell) Site() s2.Point {
	return c.d.Sites[c.idx]
}

// NumVertices equals NumNeighbors: every edge has one vertex and one neighbor.
func (c Cell) NumVertices() int {
	return c.d.CellOffsets[c.idx+1] - c.d.CellOffsets[c.idx]
}

// VertexIndices indexes Diagram.Vertices, counter-clockwise seen from outside
// the sphere. The slice aliases the diagram.
func (c Cell) VertexIndices() []int {
	return c.d.CellVertices[c.d.CellOffsets[c.idx]:c.d.CellOffsets[c.idx+1]]
}

// Vertex returns the i-th corner of the cell.
func (c Cell) Vertex(i int) (s2.Point, error) {
	start := c.d.CellOffsets[c.idx]
	end := c.d.CellOffsets[c.idx+1]
	if i < 0 || i >= end-start {
		return s2.Point{}, fmt.Errorf("s2voronoi: cell %d has no vertex %d", c.idx, i)
	}
	return c.d.Vertices[c.d.CellVertices[start+i]], nil
}

// Vertices copies the cell corners in counter-clockwise order.
func (c Cell) Vertices() s2.PointVector {
	idx := c.VertexIndices()
	out := make(s2.PointVector, len(idx))
	for i, v := range idx {
		out[i] = c.d.Vertices[v]
	}
	return out
}

// NumNeighbors returns the number of cells sharing an edge with c.
func (c Cell) NumNeighbors() int {
	return c.d.CellOffsets[c.idx+1] - c.d.CellOffsets[c.idx]
}

// NeighborIndices lists adjacent cells counter-clockwise. The slice aliases
// the diagram.
func (c Cell) NeighborIndices() []int {
	return c.d.CellNeighbors[c.d.CellOffsets[c.idx]:c.d.CellOffsets[c.idx+1]]
}

// Neighbor returns the i-th adjacent cell.
func (c Cell) Neighbor(i int) (Cell, error) {
	start := c.d.CellOffsets[c.idx]
	end := c.d.CellOffsets[c.idx+1]
	if i < 0 || i >= end-start {
		return Cell{}, fmt.Errorf("s2voronoi: cell %d has no neighbor %d", c.idx, i)
	}
	nc, err := c.d.Cell(c.d.CellNeighbors[start+i])
	if err != nil {
		return Cell{}, err
	}
	return nc, nil
}

// Centroid returns the normalized true centroid of the cell, computed as the
// area-weighted sum of a triangle fan around the first vertex.
func (c Cell) Centroid() s2.Point {
	verts := c.Vertices()
	var sum r3.Vector
	for i := 1; i+1 < len(verts); i++ {
		sum = sum.Add(s2.TrueCentroid(verts[0], verts[i], verts[i+1]).Vector)
	}
	if sum.Norm() == 0 {
		return c.Site()
	}
	return s2.Point{Vector: sum.Normalize()}
}

// LatLngs returns the cell's vertices as lat/lng pairs in counter-clockwise
// order. Longitudes are unwrapped to lie within 180 degrees of the site's
// longitude, so cells straddling the antimeridian stay contiguous.
func (c Cell) LatLngs() []s2.LatLng {
	siteLng := s2.LatLngFromPoint(c.Site()).Lng.Radians()
	verts := c.Vertices()
	out := make([]s2.LatLng, len(verts))
	for i, v := range verts {
		ll := s2.LatLngFromPoint(v)
		lng := ll.Lng.Radians()
		for lng-siteLng > math.Pi {
			lng -= 2 * math.Pi
		}
		for siteLng-lng > math.Pi {
			lng += 2 * math.Pi
		}
		out[i] = s2.LatLng{Lat: ll.Lat, Lng: s1.Angle(lng)}
	}
	return out
}
