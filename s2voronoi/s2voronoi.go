// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package s2voronoi

import (
	"fmt"

	"github.com/2dChan/windpotential/s2delaunay"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

const (
	defaultEps = 1e-12
)

// Diagram is a Voronoi diagram of sites on the unit sphere.
type Diagram struct {
	Sites    s2.PointVector
	Vertices s2.PointVector

	// CellVertices and CellNeighbors are CSR lists addressed by CellOffsets,
	// each run counter-clockwise seen from outside the sphere.
	CellVertices  []int
	CellNeighbors []int
	CellOffsets   []int

	opts DiagramOptions
}

type DiagramOptions struct {
	Eps float64
}

type Option func(*DiagramOptions) error

// WithEps sets the tolerance passed to the underlying triangulation.
func WithEps(eps float64) Option {
	return func(o *DiagramOptions) error {
		if eps <= 0 {
			return fmt.Errorf("WithEps: eps must be positive, got %v", eps)
		}
		o.Eps = eps
		return nil
	}
}

// NewDiagram computes the Voronoi diagram of sites as the dual of their
// Delaunay triangulation. Cell i belongs to sites[i].
func NewDiagram(sites s2.PointVector, setters ...Option) (*Diagram, error) {
	opts := DiagramOptions{Eps: defaultEps}
	for _, set := range setters {
		if err := set(&opts); err != nil {
			return nil, err
		}
	}

	dt, err := s2delaunay.NewTriangulation(sites, s2delaunay.WithEps(opts.Eps))
	if err != nil {
		return nil, err
	}

	numTriangles := len(dt.Triangles)
	numNeighbors := len(dt.IncidentTriangleIndices)
	d := &Diagram{
		Sites:         dt.Vertices,
		Vertices:      make(s2.PointVector, numTriangles),
		CellVertices:  dt.IncidentTriangleIndices,
		CellNeighbors: make([]int, numNeighbors),
		CellOffsets:   dt.IncidentTriangleOffsets,
		opts:          opts,
	}

	for i, tri := range dt.Triangles {
		p0, p1, p2 := dt.Vertices[tri[0]], dt.Vertices[tri[1]], dt.Vertices[tri[2]]
		d.Vertices[i] = s2.Point{Vector: triangleCircumcenter(p0, p1, p2).Normalize()}
	}

	for vIdx := range dt.Vertices {
		offset := dt.IncidentTriangleOffsets[vIdx]
		neighbors, err := dt.Neighbors(vIdx)
		if err != nil {
			return nil, err
		}
		copy(d.CellNeighbors[offset:], neighbors)
	}

	return d, nil
}

// NumCells returns the number of cells, equal to the number of sites.
func (d *Diagram) NumCells() int {
	return len(d.Sites)
}

// Cell returns a view of the cell of site i.
func (d *Diagram) Cell(i int) (Cell, error) {
	if i < 0 || i >= len(d.Sites) {
		return Cell{}, fmt.Errorf("s2voronoi: no cell %d in a diagram of %d sites", i, len(d.Sites))
	}
	return Cell{idx: i, d: d}, nil
}

// RelaxSites performs steps rounds of Lloyd relaxation: every site for
// which movable returns true moves to the true centroid of its cell and the
// diagram is rebuilt. A nil movable moves every site. movable sees the
// diagram of the current round.
func (d *Diagram) RelaxSites(steps int, movable func(i int) bool) error {
	if steps < 0 {
		return fmt.Errorf("s2voronoi: relax steps must be non-negative, got %d", steps)
	}
	for range steps {
		sites := make(s2.PointVector, len(d.Sites))
		for i := range d.Sites {
			if movable != nil && !movable(i) {
				sites[i] = d.Sites[i]
				continue
			}
			c, _ := d.Cell(i)
			sites[i] = c.Centroid()
		}

		nd, err := NewDiagram(sites, WithEps(d.opts.Eps))
		if err != nil {
			return fmt.Errorf("s2voronoi: relax: %w", err)
		}
		*d = *nd
	}
	return nil
}

func triangleCircumcenter(p1, p2, p3 s2.Point) r3.Vector {
	n := p1.Sub(p2.Vector).Cross(p2.Sub(p3.Vector))
	// Keep the pole on the triangle's side of the sphere.
	if n.Dot(p1.Add(p2.Vector).Add(p3.Vector)) < 0 {
		return n.Mul(-1)
	}
	return n
}
