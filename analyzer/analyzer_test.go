// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package analyzer

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2dChan/windpotential/boundary"
	"github.com/2dChan/windpotential/internal/observability"
	"github.com/2dChan/windpotential/raster"
	"github.com/2dChan/windpotential/render"
	"github.com/2dChan/windpotential/tessellate"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countryJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Vietnam"},"geometry":{"type":"Polygon",
"coordinates":[[[105,15],[106,15],[106,16],[105,16],[105,15]]]}}]}`

const provincesJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Kon Tum"},"geometry":{"type":"Polygon",
"coordinates":[[[105.5,15],[106,15],[106,16],[105.5,16],[105.5,15]]]}},
{"type":"Feature","properties":{"name":"Gia Lai"},"geometry":{"type":"Polygon",
"coordinates":[[[105,15],[105.5,15],[105.5,16],[105,16],[105,15]]]}}]}`

type fixture struct {
	dir                       string
	boundary, wind, provinces string
}

// newFixture writes a 1x1 degree country, two provinces splitting it at
// lon 105.5 and a 40x40 raster whose speed grows from 4 m/s in the west to
// 7.9 m/s in the east.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:       dir,
		boundary:  filepath.Join(dir, "vietnam.geojson"),
		wind:      filepath.Join(dir, "wind.tif"),
		provinces: filepath.Join(dir, "provinces.geojson"),
	}
	require.NoError(t, os.WriteFile(f.boundary, []byte(countryJSON), 0o600))
	require.NoError(t, os.WriteFile(f.provinces, []byte(provincesJSON), 0o600))

	r := raster.New(40, 40, raster.Transform{105, 0.025, 0, 16, 0, -0.025})
	for row := range 40 {
		for col := range 40 {
			r.Set(col, row, 4+float64(col)*0.1)
		}
	}
	require.NoError(t, raster.Create(f.wind, r))
	return f
}

func newAnalyzer(t *testing.T, opts ...Option) (*Analyzer, fixture) {
	t.Helper()
	f := newFixture(t)
	a := New(opts...)
	require.NoError(t, a.LoadData(f.boundary, f.wind))
	return a, f
}

func tessOptions(points int) tessellate.Options {
	opts := tessellate.DefaultOptions()
	opts.Points = points
	return opts
}

func TestAnalyzer_Prerequisites(t *testing.T) {
	a := New()
	ctx := context.Background()
	dir := t.TempDir()

	assert.ErrorIs(t, a.SelectRegion(""), ErrNoData)
	assert.ErrorIs(t, a.SelectRegion("Gia Lai"), ErrNoProvinces)
	_, err := a.ListRegions()
	assert.ErrorIs(t, err, ErrNoProvinces)
	assert.ErrorIs(t, a.CreateVoronoiPolygons(tessOptions(10)), ErrNoData)
	assert.ErrorIs(t, a.CalculateWindStatistics(ctx), ErrNoCells)
	_, err = a.FilterHighPotential(6)
	assert.ErrorIs(t, err, ErrNoStatistics)
	_, err = a.Summary(6)
	assert.ErrorIs(t, err, ErrNoStatistics)
	_, err = a.SaveResults(dir, "run", 6)
	assert.ErrorIs(t, err, ErrNoCells)
	_, err = a.ExportDetailedStatistics(dir, "run", 6)
	assert.ErrorIs(t, err, ErrNoStatistics)
	assert.ErrorIs(t, a.ExportMaskedRaster(filepath.Join(dir, "w.tif")), ErrNoData)
	assert.ErrorIs(t, a.VisualizeWindData(filepath.Join(dir, "w.png")), ErrNoData)
	assert.ErrorIs(t, a.VisualizeHighPotential(filepath.Join(dir, "h.png"), 6), ErrNoStatistics)
	assert.ErrorIs(t, a.CreateInteractiveVisualization(filepath.Join(dir, "m.html"), 6), ErrNoStatistics)
	assert.ErrorIs(t, a.CheckReadiness(ctx), ErrNoStatistics)

	_, ok := a.CellAt(105.5, 15.5)
	assert.False(t, ok)
	_, ok = a.WindAt(105.5, 15.5)
	assert.False(t, ok)
	assert.Empty(t, a.Cells())
	assert.Nil(t, a.Region())
}

func TestAnalyzer_LoadDataErrors(t *testing.T) {
	f := newFixture(t)
	a := New()
	require.Error(t, a.LoadData(filepath.Join(f.dir, "missing.geojson"), f.wind))
	require.Error(t, a.LoadData(f.boundary, filepath.Join(f.dir, "missing.tif")))
	assert.Nil(t, a.Region())
}

func TestAnalyzer_Pipeline(t *testing.T) {
	metrics, _ := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	a, f := newAnalyzer(t, WithMetrics(metrics), WithClock(clock))
	ctx := context.Background()

	region := a.Region()
	require.NotNil(t, region)
	assert.True(t, region.IsCountry)
	assert.Equal(t, CountryName, region.Name)

	require.NoError(t, a.CreateVoronoiPolygons(tessOptions(20)))
	cells := a.Cells()
	require.NotEmpty(t, cells)
	for _, c := range cells {
		assert.True(t, math.IsNaN(c.WindMean))
	}
	assert.ErrorIs(t, a.CheckReadiness(ctx), ErrNoStatistics)

	require.NoError(t, a.CalculateWindStatistics(ctx))
	require.NoError(t, a.CheckReadiness(ctx))

	cells = a.Cells()
	var pixels int
	for _, c := range cells {
		if c.Pixels == 0 {
			continue
		}
		assert.GreaterOrEqual(t, c.WindMean, 4.0)
		assert.LessOrEqual(t, c.WindMean, 7.9)
		assert.GreaterOrEqual(t, c.WindStd, 0.0)
		pixels += c.Pixels
	}
	// Every pixel centre lies in exactly one cell of the square.
	assert.Equal(t, 40*40, pixels)

	high, err := a.FilterHighPotential(6)
	require.NoError(t, err)
	require.NotEmpty(t, high)
	assert.Less(t, len(high), len(cells))
	for _, c := range high {
		assert.Greater(t, c.WindMean, 6.0)
	}

	s, err := a.Summary(6)
	require.NoError(t, err)
	assert.Equal(t, len(cells), s.Total)
	assert.Equal(t, len(high), s.High)

	out := filepath.Join(f.dir, "results")
	p, err := a.SaveResults(out, "run", 6)
	require.NoError(t, err)
	for _, path := range []string{p.AllKML, p.HighKML, p.StatisticsCSV, p.CellsGeoJSON} {
		assert.FileExists(t, path)
	}
	assert.Equal(t, filepath.Join(out, "run_6.0ms.kml"), p.HighKML)

	p, err = a.ExportDetailedStatistics(out, "run", 6)
	require.NoError(t, err)
	summary, err := os.ReadFile(p.SummaryTXT)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "VIETNAM")
	assert.Contains(t, string(summary), "2026-03-01T09:30:00Z")
	assert.FileExists(t, p.DetailedCSV)

	require.NoError(t, a.ExportMaskedRaster(p.MaskedRaster))
	require.NoError(t, a.VisualizeWindData(p.WindPNG))
	require.NoError(t, a.VisualizeHighPotential(p.HighPNG, 6))
	require.NoError(t, a.CreateInteractiveVisualization(p.InteractiveHTML, 6))
	html, err := os.ReadFile(p.InteractiveHTML)
	require.NoError(t, err)
	assert.Equal(t, len(cells), strings.Count(string(html), `class="cell"`))

	assert.ErrorIs(t, a.VisualizeHighPotential(filepath.Join(out, "none.png"), 100), render.ErrNothingToPlot)

	assert.InDelta(t, float64(len(cells)), testutil.ToFloat64(metrics.CellsGenerated), 0)
	assert.InDelta(t, 40*40, testutil.ToFloat64(metrics.PixelsAggregated), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ExportsWritten.WithLabelValues("kml")), 0)
}

func TestAnalyzer_Provinces(t *testing.T) {
	a, f := newAnalyzer(t)
	require.NoError(t, a.LoadProvinces(f.provinces))

	names, err := a.ListRegions()
	require.NoError(t, err)
	assert.Equal(t, []string{"Gia Lai", "Kon Tum"}, names)

	require.ErrorIs(t, a.SelectRegion("Da Nang"), boundary.ErrRegionNotFound)

	require.NoError(t, a.SelectRegion("kon"))
	assert.Equal(t, "Kon Tum", a.Region().Name)
	assert.False(t, a.Region().IsCountry)

	p := a.Paths(f.dir, "run", 6)
	assert.Equal(t, filepath.Join(f.dir, "run_kon_tum_all.kml"), p.AllKML)
	assert.Equal(t, filepath.Join(f.dir, "run_kon_tum_detailed_summary.txt"), p.SummaryTXT)

	require.NoError(t, a.CreateVoronoiPolygons(tessOptions(10)))
	require.NoError(t, a.CalculateWindStatistics(context.Background()))
	for _, c := range a.Cells() {
		b := c.Geometry.Bound()
		assert.GreaterOrEqual(t, b.Min[0], 105.5-1e-9)
		// The eastern province lies in the fast half of the raster.
		if c.Pixels > 0 {
			assert.GreaterOrEqual(t, c.WindMean, 6.0)
		}
	}

	// The masked raster is cropped to the province.
	require.NoError(t, a.ExportMaskedRaster(p.MaskedRaster))
	masked, err := raster.Open(p.MaskedRaster)
	require.NoError(t, err)
	assert.InDelta(t, 20, masked.Width, 1)
	assert.Equal(t, 40, masked.Height)

	// Selecting a region discards the cells of the previous one.
	require.NoError(t, a.SelectRegion(""))
	assert.True(t, a.Region().IsCountry)
	assert.Empty(t, a.Cells())
	assert.ErrorIs(t, a.CalculateWindStatistics(context.Background()), ErrNoCells)
}

func TestAnalyzer_CellAt(t *testing.T) {
	a, _ := newAnalyzer(t)
	require.NoError(t, a.CreateVoronoiPolygons(tessOptions(25)))

	for _, p := range []orb.Point{{105.2, 15.3}, {105.5, 15.5}, {105.9, 15.9}} {
		c, ok := a.CellAt(p.X(), p.Y())
		require.True(t, ok, "point %v", p)
		assert.True(t, planar.MultiPolygonContains(c.Geometry, p))
	}
	_, ok := a.CellAt(100, 10)
	assert.False(t, ok)
}

func TestAnalyzer_WindAt(t *testing.T) {
	a, _ := newAnalyzer(t)

	v, ok := a.WindAt(105.0125, 15.5)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-6)

	// Pixels are stored as float32.
	v, ok = a.WindAt(105.99, 15.5)
	require.True(t, ok)
	assert.InDelta(t, 7.9, v, 1e-6)

	_, ok = a.WindAt(107, 15.5)
	assert.False(t, ok)
}

func TestAnalyzer_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerTo(&buf, "info", "text")
	a, f := newAnalyzer(t, WithLogger(logger))
	require.NoError(t, a.LoadProvinces(f.provinces))
	require.NoError(t, a.SelectRegion("GIA LAI"))

	out := buf.String()
	assert.Contains(t, out, "data loaded")
	assert.Contains(t, out, "provinces loaded")
	assert.Contains(t, out, "region selected")
	assert.Equal(t, "Gia Lai", a.Region().Name)
}
