// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package s2delaunay computes Delaunay triangulations of points on the unit
// sphere as the convex hull of the points in R3.
package s2delaunay

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/markus-wa/quickhull-go/v2"
)

const (
	defaultEps = 1e-12
)

// Triangulation is a Delaunay triangulation of a set of sphere points.
type Triangulation struct {
	Vertices  s2.PointVector
	Triangles [][3]int

	// NOTE: Sorted CCW per vertex (looking out of the sphere).
	IncidentTriangleIndices []int
	IncidentTriangleOffsets []int
}

// NumVertices returns the number of triangulated vertices.
func (t *Triangulation) NumVertices() int {
	return len(t.Vertices)
}

// IncidentTriangles returns the indices of the triangles sharing vertex vIdx,
// in counter-clockwise order around the vertex.
func (t *Triangulation) IncidentTriangles(vIdx int) ([]int, error) {
	if vIdx < 0 || vIdx+1 >= len(t.IncidentTriangleOffsets) {
		return nil, fmt.Errorf("IncidentTriangles: index %d out of range [0 %d)",
			vIdx, len(t.IncidentTriangleOffsets)-1)
	}
	start := t.IncidentTriangleOffsets[vIdx]
	end := t.IncidentTriangleOffsets[vIdx+1]
	return t.IncidentTriangleIndices[start:end], nil
}

// TriangleVertices returns the three corner points of triangle tIdx.
func (t *Triangulation) TriangleVertices(tIdx int) (s2.Point, s2.Point, s2.Point, error) {
	if tIdx < 0 || tIdx >= len(t.Triangles) {
		return s2.Point{}, s2.Point{}, s2.Point{},
			fmt.Errorf("TriangleVertices: index %d out of range [0 %d)", tIdx, len(t.Triangles))
	}
	tri := t.Triangles[tIdx]
	return t.Vertices[tri[0]], t.Vertices[tri[1]], t.Vertices[tri[2]], nil
}

// Neighbors returns the vertices connected to vIdx by a triangulation edge,
// in counter-clockwise order.
func (t *Triangulation) Neighbors(vIdx int) ([]int, error) {
	it, err := t.IncidentTriangles(vIdx)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(it))
	for i, tIdx := range it {
		out[i] = NextVertex(t.Triangles[tIdx], vIdx)
	}
	return out, nil
}

type TriangulationOptions struct {
	Eps float64
}

type Option func(*TriangulationOptions) error

// WithEps sets the hull tolerance. It must be positive.
func WithEps(eps float64) Option {
	return func(o *TriangulationOptions) error {
		if eps <= 0 {
			return fmt.Errorf("WithEps: eps must be positive, got %v", eps)
		}
		o.Eps = eps
		return nil
	}
}

// NewTriangulation triangulates vertices. All vertices must lie on the unit
// sphere and at least four are required.
func NewTriangulation(vertices s2.PointVector, setters ...Option) (*Triangulation, error) {
	opts := TriangulationOptions{
		Eps: defaultEps,
	}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}

	numVertices := len(vertices)
	if numVertices < 4 {
		return nil,
			errors.New("s2delaunay: insufficient vertices for triangulation (minimum 4 required)")
	}
	numTriangles := 2 * (numVertices - 2)
	t := &Triangulation{
		Vertices:                vertices,
		Triangles:               make([][3]int, numTriangles),
		IncidentTriangleIndices: make([]int, numTriangles*3),
		IncidentTriangleOffsets: make([]int, numVertices+1),
	}

	r3vertices := make([]r3.Vector, numVertices)
	for i, p := range vertices {
		r3vertices[i] = p.Vector
	}
	qh := new(quickhull.QuickHull)
	ch := qh.ConvexHull(r3vertices, true, true, opts.Eps)
	if len(ch.Indices) != numTriangles*3 {
		return nil, fmt.Errorf("s2delaunay: hull has %d indices, want %d (duplicate or coplanar vertices?)",
			len(ch.Indices), numTriangles*3)
	}

	for _, idx := range ch.Indices {
		t.IncidentTriangleOffsets[idx+1]++
	}
	for i := range numVertices {
		t.IncidentTriangleOffsets[i+1] += t.IncidentTriangleOffsets[i]
	}

	nxt := make([]int, numVertices)
	copy(nxt, t.IncidentTriangleOffsets[:numVertices])
	for i := range numTriangles {
		base := i * 3
		for j := range 3 {
			v := ch.Indices[base+j]
			t.Triangles[i][j] = v
			t.IncidentTriangleIndices[nxt[v]] = i
			nxt[v]++
		}
		sortTriangleVerticesCCW(&t.Triangles[i], t.Vertices)
	}

	for i := range numVertices {
		start, end := t.IncidentTriangleOffsets[i], t.IncidentTriangleOffsets[i+1]
		if end-start < 3 {
			return nil, fmt.Errorf("s2delaunay: vertex %d has %d incident triangles, want >= 3", i, end-start)
		}
		sortIncidentTriangleIndicesCCW(i, t.IncidentTriangleIndices[start:end], t.Triangles)
	}

	return t, nil
}

func sortTriangleVerticesCCW(tri *[3]int, v s2.PointVector) {
	p0, p1, p2 := v[tri[0]], v[tri[1]], v[tri[2]]
	norm := p1.Sub(p0.Vector).Cross(p2.Sub(p0.Vector))
	if norm.Dot(p0.Vector) < 0 {
		tri[1], tri[2] = tri[2], tri[1]
	}
}

// sortIncidentTriangleIndicesCCW chains the fan around vIdx: the triangle
// after (vIdx, a, b) is the one starting with edge (vIdx, b).
func sortIncidentTriangleIndicesCCW(vIdx int, incidentTris []int, tris [][3]int) {
	n := len(incidentTris)
	for i := 1; i < n; i++ {
		shared := PrevVertex(tris[incidentTris[i-1]], vIdx)
		for j := i; j < n; j++ {
			if NextVertex(tris[incidentTris[j]], vIdx) == shared {
				incidentTris[i], incidentTris[j] = incidentTris[j], incidentTris[i]
				break
			}
		}
	}
}

// PrevVertex returns the vertex preceding vIdx in triangle t.
func PrevVertex(t [3]int, vIdx int) int {
	switch vIdx {
	case t[0]:
		return t[2]
	case t[1]:
		return t[0]
	case t[2]:
		return t[1]
	}
	panic("PrevVertex: vIdx not in triangle")
}

// NextVertex returns the vertex following vIdx in triangle t.
func NextVertex(t [3]int, vIdx int) int {
	switch vIdx {
	case t[0]:
		return t[1]
	case t[1]:
		return t[2]
	case t[2]:
		return t[0]
	}
	panic("NextVertex: vIdx not in triangle")
}
