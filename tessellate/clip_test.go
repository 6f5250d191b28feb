// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package tessellate

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func TestIntersect(t *testing.T) {
	withHole := orb.MultiPolygon{{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {4, 6}, {6, 6}, {6, 4}, {4, 4}},
	}}

	tests := []struct {
		name      string
		cell      orb.Ring
		region    orb.MultiPolygon
		wantArea  float64
		wantPolys int
		wantHoles int
	}{
		{
			"inside",
			orb.Ring{{105.5, 15.5}, {106, 15.5}, {106, 16}, {105.5, 16}, {105.5, 15.5}},
			square, 0.25, 1, 0,
		},
		{
			"overlapping edge",
			orb.Ring{{106, 16}, {108, 16}, {108, 18}, {106, 18}, {106, 16}},
			square, 1, 1, 0,
		},
		{
			"outside",
			orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
			square, 0, 0, 0,
		},
		{
			"concave corner",
			// Wraps the inner corner of the L.
			orb.Ring{{105, 11}, {108, 11}, {108, 13}, {105, 13}, {105, 11}},
			lShape, 4, 1, 0,
		},
		{
			"cell around hole",
			orb.Ring{{3, 3}, {7, 3}, {7, 7}, {3, 7}, {3, 3}},
			withHole, 12, 1, 1,
		},
		{
			"two islands",
			orb.Ring{{100.5, 20.5}, {103.5, 20.5}, {103.5, 22}, {100.5, 22}, {100.5, 20.5}},
			twoIslands, 0.5, 2, 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(tt.cell, tt.region)
			if len(got) != tt.wantPolys {
				t.Fatalf("len(Intersect()) = %d, want %d", len(got), tt.wantPolys)
			}
			if area := planar.Area(got); math.Abs(area-tt.wantArea) > 1e-9 {
				t.Errorf("Area(Intersect()) = %v, want %v", area, tt.wantArea)
			}
			holes := 0
			for _, p := range got {
				holes += len(p) - 1
				if p[0].Orientation() != orb.CCW {
					t.Errorf("outer ring orientation = %v, want CCW", p[0].Orientation())
				}
			}
			if holes != tt.wantHoles {
				t.Errorf("holes = %d, want %d", holes, tt.wantHoles)
			}
		})
	}
}

func TestIntersect_LeavesArgumentsUnchanged(t *testing.T) {
	// The region reaches well past the cell so the bound pre-clip cuts it.
	region := orb.MultiPolygon{{
		{{100, 10}, {110, 10}, {110, 20}, {100, 20}, {100, 10}},
		{{104, 14}, {104, 16}, {106, 16}, {106, 14}, {104, 14}},
	}}
	cell := orb.Ring{{103, 13}, {107, 13}, {107, 17}, {103, 17}, {103, 13}}
	wantRegion, wantCell := region.Clone(), cell.Clone()

	if got := Intersect(cell, region); len(got) == 0 {
		t.Fatalf("Intersect() is empty, want a cell with a hole")
	}
	if diff := cmp.Diff(wantRegion, region); diff != "" {
		t.Errorf("Intersect() modified region (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantCell, cell); diff != "" {
		t.Errorf("Intersect() modified cell (-want +got):\n%s", diff)
	}
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name      string
		mp        orb.MultiPolygon
		wantArea  float64
		wantPolys int
	}{
		{"empty", nil, 0, 0},
		{"single", square, 4, 1},
		{"disjoint", twoIslands, 2, 2},
		{
			"overlapping",
			orb.MultiPolygon{
				{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
				{{{1, 1}, {3, 1}, {3, 3}, {1, 3}, {1, 1}}},
			},
			7, 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.mp.Clone()
			got := Union(tt.mp)
			if len(got) != tt.wantPolys {
				t.Fatalf("len(Union()) = %d, want %d", len(got), tt.wantPolys)
			}
			if area := planar.Area(got); math.Abs(area-tt.wantArea) > 1e-9 {
				t.Errorf("Area(Union()) = %v, want %v", area, tt.wantArea)
			}
			if diff := cmp.Diff(want, tt.mp); diff != "" {
				t.Errorf("Union() modified its input (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromGeom_Nesting(t *testing.T) {
	// Outer square, a hole inside it and an island inside the hole.
	p := geom.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		{{2, 2}, {8, 2}, {8, 8}, {2, 8}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}},
	}
	got := fromGeom(p)
	if len(got) != 2 {
		t.Fatalf("len(fromGeom()) = %d, want 2", len(got))
	}
	for _, poly := range got {
		switch len(poly) {
		case 2:
			if a := math.Abs(planar.Area(poly[0])); a != 100 {
				t.Errorf("outer with hole area = %v, want 100", a)
			}
		case 1:
			if a := math.Abs(planar.Area(poly[0])); a != 4 {
				t.Errorf("island area = %v, want 4", a)
			}
		default:
			t.Errorf("polygon with %d rings, want 1 or 2", len(poly))
		}
	}
	if a := planar.Area(got); math.Abs(a-68) > 1e-9 {
		t.Errorf("Area(fromGeom()) = %v, want 68", a)
	}
}
