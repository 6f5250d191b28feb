// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package tessellate partitions a lon/lat region into Voronoi cells grown
// from randomly sampled sites and clipped to the region boundary.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/2dChan/windpotential/s2voronoi"
	"github.com/2dChan/windpotential/sampling"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

const (
	defaultPoints     = 100
	defaultSeed       = 42
	defaultGuardCount = 16
	defaultEps        = 1e-12

	// Guard sites sit on a cap this many times wider than the region.
	guardScale = 3
	// Largest guard radius that keeps the ring clear of the antipode guard.
	maxGuardRadius = 170 * s1.Degree
	minRadius      = 1e-9
)

// ErrEmptyRegion is returned for a region without area.
var ErrEmptyRegion = errors.New("tessellate: empty region")

// Options controls how a region is tessellated.
type Options struct {
	// Points is the number of sites sampled inside the region.
	Points int
	// Seed makes sampling reproducible.
	Seed int64
	// RelaxSteps is the number of Lloyd relaxation rounds.
	RelaxSteps int
	// MaxAttempts caps rejection sampling; 0 picks a budget from Points.
	MaxAttempts int
	// GuardCount is the number of guard sites around the region.
	GuardCount int
	// Eps is the convex hull tolerance.
	Eps float64
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Points:     defaultPoints,
		Seed:       defaultSeed,
		GuardCount: defaultGuardCount,
		Eps:        defaultEps,
	}
}

func (o Options) validate() error {
	switch {
	case o.Points < 1:
		return fmt.Errorf("tessellate: points must be positive, got %d", o.Points)
	case o.RelaxSteps < 0:
		return fmt.Errorf("tessellate: relax steps must be non-negative, got %d", o.RelaxSteps)
	case o.GuardCount < 3:
		return fmt.Errorf("tessellate: need at least 3 guard sites, got %d", o.GuardCount)
	case o.Eps <= 0:
		return fmt.Errorf("tessellate: eps must be positive, got %v", o.Eps)
	}
	return nil
}

// Cell is one clipped Voronoi cell.
type Cell struct {
	// ID is the index of the cell's site in the sample.
	ID       int
	Site     orb.Point
	Geometry orb.MultiPolygon
	// Area is the geodesic area in square kilometres.
	Area float64
	// Neighbors lists the IDs of kept cells whose spherical cells share an
	// edge with this one, counter-clockwise.
	Neighbors []int
}

// Tessellation is the result of Build.
type Tessellation struct {
	Cells []Cell
	// Sites holds every sampled site, including those whose cell was dropped.
	Sites []orb.Point
	// TopUp is the number of sites drawn from the bound after rejection
	// sampling ran out of attempts.
	TopUp int
	// Dropped is the number of cells left empty by clipping.
	Dropped int
}

// Build samples opts.Points sites inside region, grows their spherical
// Voronoi cells and clips each cell to the region. Overlapping features of
// region are merged first; region itself is left untouched.
func Build(region orb.MultiPolygon, opts Options) (*Tessellation, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	region = Union(region)
	b := region.Bound()
	if len(region) == 0 || b.Left() == b.Right() || b.Bottom() == b.Top() {
		return nil, ErrEmptyRegion
	}

	t := &Tessellation{}
	sites, err := sampling.InPolygon(opts.Points, region, opts.Seed, opts.MaxAttempts)
	if errors.Is(err, sampling.ErrSampleBudget) {
		t.TopUp = opts.Points - len(sites)
		sites = append(sites, sampling.UniformInBound(t.TopUp, b, opts.Seed+1)...)
	} else if err != nil {
		return nil, err
	}

	n := len(sites)
	all := append(sampling.ToSphere(sites), guards(b, opts.GuardCount)...)
	d, err := s2voronoi.NewDiagram(all, s2voronoi.WithEps(opts.Eps))
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	// Guards stay put; a site follows its cell centroid only while the
	// centroid is inside the region.
	err = d.RelaxSites(opts.RelaxSteps, func(i int) bool {
		if i >= n {
			return false
		}
		c, err := d.Cell(i)
		if err != nil {
			return false
		}
		return planar.MultiPolygonContains(region, sampling.FromSphere(c.Centroid()))
	})
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	if err := t.clip(d, n, region); err != nil {
		return nil, err
	}
	return t, nil
}

// clip intersects the cells of the first n sites of d with region.
func (t *Tessellation) clip(d *s2voronoi.Diagram, n int, region orb.MultiPolygon) error {
	t.Sites = make([]orb.Point, n)
	kept := make([]bool, n)
	adjacent := make([][]int, n)
	for i := range n {
		c, err := d.Cell(i)
		if err != nil {
			return fmt.Errorf("tessellate: %w", err)
		}
		t.Sites[i] = sampling.FromSphere(c.Site())

		clipped := Intersect(lonLatRing(c), region)
		if len(clipped) == 0 {
			t.Dropped++
			continue
		}
		kept[i] = true
		for j := range c.NumNeighbors() {
			nc, err := c.Neighbor(j)
			if err != nil {
				return fmt.Errorf("tessellate: %w", err)
			}
			if k := nc.SiteIndex(); k < n {
				adjacent[i] = append(adjacent[i], k)
			}
		}
		t.Cells = append(t.Cells, Cell{
			ID:       i,
			Site:     t.Sites[i],
			Geometry: clipped,
			Area:     geo.Area(clipped) / 1e6,
		})
	}

	for i := range t.Cells {
		for _, k := range adjacent[t.Cells[i].ID] {
			if kept[k] {
				t.Cells[i].Neighbors = append(t.Cells[i].Neighbors, k)
			}
		}
	}
	return nil
}

// guards returns a ring of sites around the cap that holds the region bound,
// plus the cap's antipode.
func guards(b orb.Bound, cnt int) s2.PointVector {
	c := b.Center()
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat(), c.Lon()))

	corners := []orb.Point{b.Min, b.Max, {b.Min.X(), b.Max.Y()}, {b.Max.X(), b.Min.Y()}}
	radius := s1.Angle(minRadius)
	for _, p := range sampling.ToSphere(corners) {
		radius = max(radius, center.Distance(p))
	}
	radius = min(radius*guardScale, maxGuardRadius)
	return sampling.GuardRing(center, radius, cnt)
}

// lonLatRing converts a spherical cell into a closed lon/lat ring in degrees.
func lonLatRing(c s2voronoi.Cell) orb.Ring {
	lls := c.LatLngs()
	r := make(orb.Ring, 0, len(lls)+1)
	for _, ll := range lls {
		r = append(r, orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	return append(r, r[0])
}

// TotalArea returns the summed geodesic area of the cells in square
// kilometres.
func (t *Tessellation) TotalArea() float64 {
	var sum float64
	for _, c := range t.Cells {
		sum += c.Area
	}
	return sum
}
