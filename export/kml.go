// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package export

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/2dChan/windpotential/analysis"
	"github.com/paulmach/orb"
	"github.com/twpayne/go-kml"
)

var (
	styleCell = kml.SharedStyle("cell",
		kml.LineStyle(kml.Color(color.NRGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}), kml.Width(1)),
		kml.PolyStyle(kml.Color(color.NRGBA{R: 0xff, G: 0xa5, A: 0x4d})),
	)
	styleHigh = kml.SharedStyle("high",
		kml.LineStyle(kml.Color(color.NRGBA{R: 0xff, A: 0xff}), kml.Width(2)),
		kml.PolyStyle(kml.Color(color.NRGBA{R: 0xff, G: 0xa5, A: 0x99})),
	)
)

// WriteKML writes cells as KML placemarks named by cell ID, with wind_mean
// and wind_std as extended data. Cells above minSpeed get the "high" style.
func WriteKML(w io.Writer, name string, cells []analysis.Cell, minSpeed float64) error {
	children := []kml.Element{kml.Name(name), styleCell, styleHigh}
	for _, c := range cells {
		children = append(children, placemark(c, minSpeed))
	}
	root := kml.KML(kml.Document(children...))

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("export: kml: %w", err)
	}
	return enc.Close()
}

func placemark(c analysis.Cell, minSpeed float64) kml.Element {
	style := styleCell
	if analysis.IsHigh(c.WindMean, minSpeed) {
		style = styleHigh
	}
	polys := make([]kml.Element, 0, len(c.Geometry))
	for _, poly := range c.Geometry {
		if len(poly) == 0 {
			continue
		}
		bounds := []kml.Element{kml.OuterBoundaryIs(ring(poly[0]))}
		for _, hole := range poly[1:] {
			bounds = append(bounds, kml.InnerBoundaryIs(ring(hole)))
		}
		polys = append(polys, kml.Polygon(bounds...))
	}
	return kml.Placemark(
		kml.Name(strconv.Itoa(c.ID)),
		kml.StyleURL(style.URL()),
		kml.ExtendedData(
			data("wind_mean", formatFloat(c.WindMean)),
			data("wind_std", formatFloat(c.WindStd)),
		),
		kml.MultiGeometry(polys...),
	)
}

func data(name, value string) kml.Element {
	d := kml.Data(kml.Value(value))
	d.Attr = append(d.Attr, xml.Attr{Name: xml.Name{Local: "name"}, Value: name})
	return d
}

func ring(r orb.Ring) kml.Element {
	coords := make([]kml.Coordinate, len(r))
	for i, p := range r {
		coords[i] = kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
	}
	return kml.LinearRing(kml.Coordinates(coords...))
}
