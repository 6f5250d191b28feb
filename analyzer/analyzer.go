// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package analyzer runs the wind potential pipeline: load a boundary and a
// wind raster, optionally narrow to a province, tessellate the region into
// Voronoi cells, aggregate wind speed per cell, then export and plot.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/2dChan/windpotential/analysis"
	"github.com/2dChan/windpotential/boundary"
	"github.com/2dChan/windpotential/export"
	"github.com/2dChan/windpotential/internal/observability"
	"github.com/2dChan/windpotential/raster"
	"github.com/2dChan/windpotential/render"
	"github.com/2dChan/windpotential/tessellate"
	"github.com/2dChan/windpotential/zonal"
	"github.com/flatrtree/flatrtree-go"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// CountryName names the region made of the whole boundary file.
const CountryName = "Việt Nam"

// indexDegree is the node capacity of the cell R-tree.
const indexDegree = 16

var (
	ErrNoData       = errors.New("analyzer: data not loaded, call LoadData first")
	ErrNoProvinces  = errors.New("analyzer: provinces not loaded, call LoadProvinces first")
	ErrNoCells      = errors.New("analyzer: no Voronoi cells, call CreateVoronoiPolygons first")
	ErrNoStatistics = errors.New("analyzer: wind statistics not calculated, call CalculateWindStatistics first")
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMetrics sets the metrics sink. The default records nothing.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithClock sets the time source for stage timings and report timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithZonalOptions sets the worker pool used by CalculateWindStatistics.
func WithZonalOptions(o zonal.Options) Option {
	return func(a *Analyzer) { a.zonal = o }
}

// Analyzer holds the state of one analysis. Methods must be called in
// pipeline order; each returns a sentinel error when a prerequisite step has
// not run. Read accessors are safe for concurrent use.
type Analyzer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	zonal   zonal.Options

	mu        sync.RWMutex
	country   *boundary.Region
	raster    *raster.Raster
	provinces *boundary.Collection
	region    *boundary.Region
	cells     []analysis.Cell
	hasStats  bool
	index     *flatrtree.RTree
}

// New returns an empty Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clockwork.NewRealClock(),
		zonal:  zonal.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadData reads the country boundary GeoJSON and the wind GeoTIFF. The
// whole boundary becomes the selected region.
func (a *Analyzer) LoadData(boundaryPath, rasterPath string) error {
	defer a.stage("load", a.clock.Now())

	a.logger.Info("reading boundary data", "path", boundaryPath)
	bc, err := boundary.Load(boundaryPath)
	if err != nil {
		return fmt.Errorf("load boundary: %w", err)
	}
	a.logger.Info("reading wind data", "path", rasterPath)
	r, err := raster.Open(rasterPath)
	if err != nil {
		return fmt.Errorf("load wind raster: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.country = bc.Union(CountryName)
	a.raster = r
	a.region = a.country
	a.resetLocked()
	a.logger.Info("data loaded",
		"features", len(bc.Regions), "width", r.Width, "height", r.Height)
	return nil
}

// LoadProvinces reads the province boundaries used by SelectRegion.
func (a *Analyzer) LoadProvinces(path string) error {
	a.logger.Info("reading province boundaries", "path", path)
	pc, err := boundary.Load(path)
	if err != nil {
		return fmt.Errorf("load provinces: %w", err)
	}

	a.mu.Lock()
	a.provinces = pc
	a.mu.Unlock()
	a.logger.Info("provinces loaded", "count", len(pc.Regions), "names", pc.Names())
	return nil
}

// ListRegions returns the province names in alphabetical order.
func (a *Analyzer) ListRegions() ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.provinces == nil {
		return nil, ErrNoProvinces
	}
	return a.provinces.Names(), nil
}

// SelectRegion narrows the analysis to a province. An empty name selects the
// whole boundary. Selecting a region discards earlier cells.
func (a *Analyzer) SelectRegion(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name == "" {
		if a.country == nil {
			return ErrNoData
		}
		a.logger.Info("using the entire boundary")
		a.region = a.country
		a.resetLocked()
		return nil
	}
	if a.provinces == nil {
		return ErrNoProvinces
	}
	r, matches, err := a.provinces.Select(name)
	if err != nil {
		return err
	}
	if len(matches) > 1 {
		a.logger.Warn("several regions match, using the first", "query", name, "matches", matches)
	}
	a.region = r
	a.resetLocked()
	a.logger.Info("region selected", "name", r.Name)
	return nil
}

// Region returns the selected region, or nil before LoadData.
func (a *Analyzer) Region() *boundary.Region {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.region
}

// regionLabel is the region name for titles and file names; empty for the
// whole country.
func (a *Analyzer) regionLabel() string {
	if a.region == nil || a.region.IsCountry {
		return ""
	}
	return a.region.Name
}

// CreateVoronoiPolygons tessellates the selected region into Voronoi cells
// clipped to its boundary.
func (a *Analyzer) CreateVoronoiPolygons(opts tessellate.Options) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.region == nil {
		return ErrNoData
	}
	defer a.stage("tessellate", a.clock.Now())

	a.logger.Info("creating Voronoi polygons", "points", opts.Points, "region", a.region.Name)
	t, err := tessellate.Build(a.region.Geometry, opts)
	if err != nil {
		return fmt.Errorf("tessellate: %w", err)
	}
	if t.TopUp > 0 {
		a.logger.Warn("sampling budget exhausted, sites drawn from the bound", "sites", t.TopUp)
	}

	cells := make([]analysis.Cell, len(t.Cells))
	for i, c := range t.Cells {
		cells[i] = analysis.Cell{
			ID:        c.ID,
			Site:      c.Site,
			Geometry:  c.Geometry,
			Area:      c.Area,
			WindMean:  math.NaN(),
			WindStd:   math.NaN(),
			Neighbors: c.Neighbors,
		}
	}
	index, err := buildIndex(cells)
	if err != nil {
		return err
	}

	a.cells, a.index, a.hasStats = cells, index, false
	if a.metrics != nil {
		a.metrics.CellsGenerated.Add(float64(len(cells)))
		a.metrics.CellsDropped.Add(float64(t.Dropped))
	}
	a.logger.Info("Voronoi polygons created", "cells", len(cells), "dropped", t.Dropped)
	return nil
}

// CalculateWindStatistics computes wind_mean and wind_std of every cell from
// the pixels whose centre lies inside it.
func (a *Analyzer) CalculateWindStatistics(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cells == nil {
		return ErrNoCells
	}
	defer a.stage("statistics", a.clock.Now())

	a.logger.Info("calculating wind statistics", "cells", len(a.cells))
	geoms := make([]orb.MultiPolygon, len(a.cells))
	for i, c := range a.cells {
		geoms[i] = c.Geometry
	}

	opts := a.zonal
	opts.Progress = func(done, total int) {
		a.logger.Debug("wind analysis", "batch", done, "batches", total)
	}
	if a.metrics != nil {
		opts.Observe = func(d time.Duration) {
			a.metrics.ZonalBatchDuration.Observe(d.Seconds())
		}
	}
	stats, err := zonal.Compute(ctx, a.raster, geoms, opts)
	if err != nil {
		return fmt.Errorf("zonal statistics: %w", err)
	}

	var pixels int
	for i, s := range stats {
		a.cells[i].WindMean = s.Mean
		a.cells[i].WindStd = s.Std
		a.cells[i].Pixels = s.Count
		pixels += s.Count
	}
	a.hasStats = true
	if a.metrics != nil {
		a.metrics.PixelsAggregated.Add(float64(pixels))
	}
	a.logger.Info("wind statistics calculated", "cells", len(stats), "pixels", pixels)
	return nil
}

// FilterHighPotential returns the cells whose mean wind speed exceeds
// minSpeed.
func (a *Analyzer) FilterHighPotential(minSpeed float64) ([]analysis.Cell, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return nil, ErrNoStatistics
	}
	high := analysis.HighPotential(a.cells, minSpeed)
	a.logger.Info("high potential areas",
		"count", len(high), "min_speed", minSpeed, "region", a.region.Name)
	return high, nil
}

// Summary returns the summary statistics of the cells.
func (a *Analyzer) Summary(minSpeed float64) (analysis.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return analysis.Summary{}, ErrNoStatistics
	}
	return analysis.Summarize(a.cells, minSpeed), nil
}

// Cells returns a copy of the cells.
func (a *Analyzer) Cells() []analysis.Cell {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]analysis.Cell, len(a.cells))
	copy(out, a.cells)
	return out
}

// CellAt returns the cell containing the point (lon, lat).
func (a *Analyzer) CellAt(lon, lat float64) (analysis.Cell, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.index == nil {
		return analysis.Cell{}, false
	}
	p := orb.Point{lon, lat}
	found := -1
	a.index.Search(lon, lat, lon, lat, func(ref int64) bool {
		if planar.MultiPolygonContains(a.cells[ref].Geometry, p) {
			found = int(ref)
			return false
		}
		return true
	})
	if found < 0 {
		return analysis.Cell{}, false
	}
	return a.cells[found], true
}

// WindAt returns the raster value at (lon, lat).
func (a *Analyzer) WindAt(lon, lat float64) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.raster == nil {
		return 0, false
	}
	col, row, ok := a.raster.ToPixel(orb.Point{lon, lat})
	if !ok {
		return 0, false
	}
	return a.raster.Value(col, row)
}

// CheckReadiness reports whether statistics are available to serve.
func (a *Analyzer) CheckReadiness(context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return ErrNoStatistics
	}
	return nil
}

// Paths names the output files for the selected region.
func (a *Analyzer) Paths(dir, prefix string, minSpeed float64) export.Paths {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var slug string
	if label := a.regionLabel(); label != "" {
		slug = boundary.Slug(label)
	}
	return export.NewPaths(dir, prefix, prefix, slug, minSpeed)
}

// SaveResults writes all cells and the high potential cells as KML, the
// statistics CSV and the GeoJSON cells into dir.
func (a *Analyzer) SaveResults(dir, prefix string, minSpeed float64) (export.Paths, error) {
	p := a.Paths(dir, prefix, minSpeed)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cells == nil {
		return p, ErrNoCells
	}
	defer a.stage("export", a.clock.Now())

	cells, name := a.cells, a.region.Name
	high := analysis.HighPotential(cells, minSpeed)
	a.logger.Info("saving analysis results", "dir", dir, "high", len(high))

	writes := []struct {
		kind, path string
		fn         func(w io.Writer) error
	}{
		{"kml", p.AllKML, func(w io.Writer) error { return export.WriteKML(w, name, cells, minSpeed) }},
		{"kml", p.HighKML, func(w io.Writer) error { return export.WriteKML(w, name, high, minSpeed) }},
		{"csv", p.StatisticsCSV, func(w io.Writer) error { return export.WriteStatisticsCSV(w, cells) }},
		{"geojson", p.CellsGeoJSON, func(w io.Writer) error { return export.WriteGeoJSON(w, cells, minSpeed) }},
	}
	for _, wr := range writes {
		if err := a.write(wr.kind, wr.path, wr.fn); err != nil {
			return p, err
		}
	}
	return p, nil
}

// ExportDetailedStatistics writes the bilingual summary and the categorised
// CSV into dir.
func (a *Analyzer) ExportDetailedStatistics(dir, prefix string, minSpeed float64) (export.Paths, error) {
	p := a.Paths(dir, prefix, minSpeed)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return p, ErrNoStatistics
	}
	defer a.stage("export", a.clock.Now())

	a.logger.Info("exporting detailed statistics", "dir", dir)
	summary := analysis.Summarize(a.cells, minSpeed)
	label, now := a.regionLabel(), a.clock.Now()
	err := a.write("summary", p.SummaryTXT, func(w io.Writer) error {
		return export.WriteSummary(w, summary, label, now)
	})
	if err != nil {
		return p, err
	}
	err = a.write("csv", p.DetailedCSV, func(w io.Writer) error {
		return export.WriteDetailedCSV(w, a.cells, minSpeed)
	})
	return p, err
}

// ExportMaskedRaster writes the wind raster shown for the selected region
// as a GeoTIFF.
func (a *Analyzer) ExportMaskedRaster(path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.raster == nil {
		return ErrNoData
	}
	r := a.displayRaster()
	return a.write("raster", path, func(w io.Writer) error { return raster.Encode(w, r) })
}

// displayRaster masks and crops the raster to a selected province. The full
// raster is used for the whole country or when masking fails.
func (a *Analyzer) displayRaster() *raster.Raster {
	if a.regionLabel() == "" {
		return a.raster
	}
	masked, err := a.raster.Mask(a.region.Geometry, true)
	if err != nil {
		a.logger.Warn("cannot mask wind data, showing the full raster", "error", err)
		return a.raster
	}
	return masked
}

func (a *Analyzer) renderMap(minSpeed float64) render.Map {
	return render.Map{
		Raster:   a.displayRaster(),
		Boundary: a.region.Geometry,
		Region:   a.regionLabel(),
		Cells:    a.cells,
		MinSpeed: minSpeed,
	}
}

// VisualizeWindData writes the wind raster figure to path.
func (a *Analyzer) VisualizeWindData(path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.raster == nil {
		return ErrNoData
	}
	defer a.stage("plot", a.clock.Now())
	m := a.renderMap(0)
	return a.write("png", path, func(w io.Writer) error { return render.WindDataPNG(w, m) })
}

// VisualizeHighPotential writes the high potential figure to path. It
// returns render.ErrNothingToPlot when no cell exceeds minSpeed.
func (a *Analyzer) VisualizeHighPotential(path string, minSpeed float64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return ErrNoStatistics
	}
	if len(analysis.HighPotential(a.cells, minSpeed)) == 0 {
		return render.ErrNothingToPlot
	}
	defer a.stage("plot", a.clock.Now())
	m := a.renderMap(minSpeed)
	return a.write("png", path, func(w io.Writer) error { return render.HighPotentialPNG(w, m) })
}

// CreateInteractiveVisualization writes the interactive HTML map to path.
func (a *Analyzer) CreateInteractiveVisualization(path string, minSpeed float64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasStats {
		return ErrNoStatistics
	}
	defer a.stage("plot", a.clock.Now())
	m := render.Map{
		Boundary: a.region.Geometry,
		Region:   a.regionLabel(),
		Cells:    a.cells,
		MinSpeed: minSpeed,
	}
	return a.write("html", path, func(w io.Writer) error { return render.InteractiveHTML(w, m) })
}

func (a *Analyzer) write(kind, path string, fn func(w io.Writer) error) error {
	if err := export.WriteFile(path, fn); err != nil {
		return err
	}
	if a.metrics != nil {
		a.metrics.ExportsWritten.WithLabelValues(kind).Inc()
	}
	a.logger.Info("saved", "kind", kind, "path", path)
	return nil
}

func (a *Analyzer) stage(name string, start time.Time) {
	d := a.clock.Since(start)
	if a.metrics != nil {
		a.metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	}
	a.logger.Debug("stage finished", "stage", name, "duration", d)
}

// resetLocked drops cells and statistics; a.mu must be held.
func (a *Analyzer) resetLocked() {
	a.cells, a.index, a.hasStats = nil, nil, false
}

func buildIndex(cells []analysis.Cell) (*flatrtree.RTree, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	builder := flatrtree.NewOMTBuilder()
	for i, c := range cells {
		b := c.Geometry.Bound()
		builder.Add(int64(i), b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}
	index, err := builder.Finish(indexDegree)
	if err != nil {
		return nil, fmt.Errorf("index cells: %w", err)
	}
	return index, nil
}
