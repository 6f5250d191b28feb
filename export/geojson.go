// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package export

import (
	"io"
	"math"

	"github.com/2dChan/windpotential/analysis"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts cells into GeoJSON features carrying name,
// wind_mean, wind_std, category, high and area_km2 properties. NaN
// statistics become null.
func FeatureCollection(cells []analysis.Cell, minSpeed float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		f := geojson.NewFeature(c.Geometry)
		f.ID = c.ID
		f.Properties["name"] = c.ID
		f.Properties["wind_mean"] = nullable(c.WindMean)
		f.Properties["wind_std"] = nullable(c.WindStd)
		f.Properties["high"] = analysis.IsHigh(c.WindMean, minSpeed)
		f.Properties["area_km2"] = c.Area
		if label, ok := analysis.Categorize(c.WindMean); ok {
			f.Properties["category"] = label
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes cells as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, cells []analysis.Cell, minSpeed float64) error {
	data, err := FeatureCollection(cells, minSpeed).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
