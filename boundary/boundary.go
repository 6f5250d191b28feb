// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package boundary loads administrative boundaries (a country outline or a
// set of provinces) from GeoJSON and selects regions by name.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrNoPolygons is returned when a GeoJSON document has no polygonal features.
	ErrNoPolygons = errors.New("boundary: no polygon features")
	// ErrRegionNotFound is returned by Select when no region name matches.
	ErrRegionNotFound = errors.New("boundary: region not found")
)

// nameKeys are the feature properties tried, in order, for a region name.
var nameKeys = []string{"name", "NAME_1", "Name"}

// Region is a named polygonal area.
type Region struct {
	Name       string
	Geometry   orb.MultiPolygon
	Properties geojson.Properties

	// IsCountry marks the whole-boundary region, as opposed to a province
	// picked from a collection.
	IsCountry bool
}

// Bound returns the lon/lat bounding box of the region.
func (r *Region) Bound() orb.Bound {
	return r.Geometry.Bound()
}

// Centroid returns the planar area centroid of the region.
func (r *Region) Centroid() orb.Point {
	c, _ := planar.CentroidArea(r.Geometry)
	return c
}

// Area returns the planar area of the region in square degrees.
func (r *Region) Area() float64 {
	return planar.Area(r.Geometry)
}

// Slug returns the lowercase, underscore-separated name used in file names.
func (r *Region) Slug() string {
	return Slug(r.Name)
}

// Slug lowercases name and replaces spaces with underscores.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// Collection is an ordered set of regions loaded from one file.
type Collection struct {
	Regions []*Region
}

// Load reads a GeoJSON boundary file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("boundary: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("boundary: parse %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a GeoJSON FeatureCollection, Feature or bare geometry.
// Non-polygonal features are skipped.
func Parse(data []byte) (*Collection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		features = []*geojson.Feature{f}
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		features = []*geojson.Feature{geojson.NewFeature(g.Geometry())}
	}

	c := &Collection{}
	for i, f := range features {
		mp, ok := toMultiPolygon(f.Geometry)
		if !ok || len(mp) == 0 {
			continue
		}
		c.Regions = append(c.Regions, &Region{
			Name:       featureName(f.Properties, i),
			Geometry:   mp,
			Properties: f.Properties,
		})
	}
	if len(c.Regions) == 0 {
		return nil, ErrNoPolygons
	}
	return c, nil
}

// Names returns the region names sorted alphabetically.
func (c *Collection) Names() []string {
	names := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

// Union merges every region into one country-level region.
func (c *Collection) Union(name string) *Region {
	var mp orb.MultiPolygon
	for _, r := range c.Regions {
		mp = append(mp, r.Geometry...)
	}
	return &Region{Name: name, Geometry: mp, IsCountry: true}
}

// Select finds a region by name. A case-insensitive exact match wins;
// otherwise regions whose name contains the query are considered. When more
// than one region matches, the first is returned together with the names of
// all matches.
func (c *Collection) Select(name string) (*Region, []string, error) {
	query := strings.ToLower(strings.TrimSpace(name))

	var matches []*Region
	for _, r := range c.Regions {
		if strings.ToLower(r.Name) == query {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		for _, r := range c.Regions {
			if strings.Contains(strings.ToLower(r.Name), query) {
				matches = append(matches, r)
			}
		}
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%w: %q (available: %s)",
			ErrRegionNotFound, name, strings.Join(c.Names(), ", "))
	}

	names := make([]string, len(matches))
	for i, r := range matches {
		names[i] = r.Name
	}
	return matches[0], names, nil
}

func featureName(props geojson.Properties, i int) string {
	for _, key := range nameKeys {
		if s, ok := props[key].(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("Feature %d", i)
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, true
	case orb.MultiPolygon:
		return g, true
	case orb.Collection:
		var mp orb.MultiPolygon
		for _, sub := range g {
			if part, ok := toMultiPolygon(sub); ok {
				mp = append(mp, part...)
			}
		}
		return mp, len(mp) > 0
	case orb.Bound:
		return orb.MultiPolygon{g.ToPolygon()}, true
	}
	return nil, false
}
