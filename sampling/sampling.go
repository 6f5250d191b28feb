// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package sampling generates reproducible seed sites for Voronoi
// tessellations, on the whole sphere or inside a lon/lat region.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrSampleBudget is returned when rejection sampling runs out of attempts
// before collecting the requested number of points.
var ErrSampleBudget = errors.New("sampling: attempt budget exhausted")

const attemptsPerPoint = 200

// UniformInBound draws cnt lon/lat points uniformly from b.
func UniformInBound(cnt int, b orb.Bound, seed int64) []orb.Point {
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	pts := make([]orb.Point, cnt)
	for i := range cnt {
		pts[i] = uniform(random, b)
	}
	return pts
}

// InPolygon draws cnt points uniformly from the interior of mp by rejection
// sampling within its bound. At most maxAttempts candidates are drawn
// (attemptsPerPoint*cnt when maxAttempts <= 0). When the budget runs out the
// points accepted so far are returned together with ErrSampleBudget.
func InPolygon(cnt int, mp orb.MultiPolygon, seed int64, maxAttempts int) ([]orb.Point, error) {
	if cnt <= 0 {
		return nil, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = attemptsPerPoint * cnt
	}

	b := mp.Bound()
	//nolint:gosec
	random := rand.New(rand.NewSource(seed))
	pts := make([]orb.Point, 0, cnt)
	for attempt := 0; attempt < maxAttempts && len(pts) < cnt; attempt++ {
		p := uniform(random, b)
		if planar.MultiPolygonContains(mp, p) {
			pts = append(pts, p)
		}
	}
	if len(pts) < cnt {
		return pts, fmt.Errorf("%w: accepted %d of %d points in %d attempts",
			ErrSampleBudget, len(pts), cnt, maxAttempts)
	}
	return pts, nil
}

// GuardRing returns cnt points evenly spaced on the small circle of the given
// angular radius around center, followed by the antipode of center.
func GuardRing(center s2.Point, radius s1.Angle, cnt int) s2.PointVector {
	u := center.Ortho()
	v := center.Cross(u)
	sinR, cosR := math.Sin(radius.Radians()), math.Cos(radius.Radians())

	ring := make(s2.PointVector, 0, cnt+1)
	for i := range cnt {
		theta := 2 * math.Pi * float64(i) / float64(cnt)
		dir := u.Mul(math.Cos(theta)).Add(v.Mul(math.Sin(theta)))
		q := center.Mul(cosR).Add(dir.Mul(sinR))
		ring = append(ring, s2.Point{Vector: q.Normalize()})
	}
	ring = append(ring, s2.Point{Vector: center.Mul(-1)})
	return ring
}

// ToSphere converts lon/lat points in degrees to unit sphere points.
func ToSphere(pts []orb.Point) s2.PointVector {
	out := make(s2.PointVector, len(pts))
	for i, p := range pts {
		out[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon()))
	}
	return out
}

// FromSphere converts a unit sphere point to lon/lat degrees.
func FromSphere(p s2.Point) orb.Point {
	ll := s2.LatLngFromPoint(p)
	return orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()}
}

func uniform(random *rand.Rand, b orb.Bound) orb.Point {
	return orb.Point{
		b.Min.X() + random.Float64()*(b.Max.X()-b.Min.X()),
		b.Min.Y() + random.Float64()*(b.Max.Y()-b.Min.Y()),
	}
}
