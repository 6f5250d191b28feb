// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package server exposes analysis results over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/2dChan/windpotential/analysis"
	"github.com/2dChan/windpotential/export"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Source provides the analysed cells and raster lookups.
type Source interface {
	ReadinessChecker
	Cells() []analysis.Cell
	CellAt(lon, lat float64) (analysis.Cell, bool)
	WindAt(lon, lat float64) (float64, bool)
}

// Options configures the routes of a Server.
type Options struct {
	// MinSpeed is the high potential threshold reported with each cell.
	MinSpeed float64
	// ResultsDir, when set, is served under /results/.
	ResultsDir string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server exposes health, readiness, metrics and result endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	src        Source
	minSpeed   float64
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/cells, /api/cell and /api/wind routes.
func NewServer(addr string, src Source, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		src:      src,
		minSpeed: opts.MinSpeed,
	}

	metrics := promhttp.Handler()
	if opts.Gatherer != nil {
		metrics = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(src))
	mux.Handle("GET /metrics", metrics)
	mux.HandleFunc("GET /api/cells", s.handleCells)
	mux.HandleFunc("GET /api/cell", s.handleCell)
	mux.HandleFunc("GET /api/wind", s.handleWind)
	if opts.ResultsDir != "" {
		mux.Handle("GET /results/", http.StripPrefix("/results/", http.FileServer(http.Dir(opts.ResultsDir))))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleCells returns every cell as a GeoJSON FeatureCollection. The
// optional simplify parameter is a Douglas-Peucker tolerance in degrees.
func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	if err := s.src.CheckReadiness(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	cells := s.src.Cells()
	if raw := r.URL.Query().Get("simplify"); raw != "" {
		tol, err := strconv.ParseFloat(raw, 64)
		if err != nil || tol < 0 || math.IsNaN(tol) {
			writeError(w, http.StatusBadRequest, errors.New("simplify must be a non-negative number"))
			return
		}
		cells = simplified(cells, tol)
	}

	data, err := export.FeatureCollection(cells, s.minSpeed).MarshalJSON()
	if err != nil {
		s.logger.Error("encode cells", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}

func simplified(cells []analysis.Cell, tol float64) []analysis.Cell {
	dp := simplify.DouglasPeucker(tol)
	for i := range cells {
		if mp, ok := dp.Simplify(cells[i].Geometry.Clone()).(orb.MultiPolygon); ok && len(mp) > 0 {
			cells[i].Geometry = mp
		}
	}
	return cells
}

type cellResponse struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	WindMean  *float64  `json:"wind_mean"`
	WindStd   *float64  `json:"wind_std"`
	Category  string    `json:"category,omitempty"`
	High      bool      `json:"high"`
	AreaKm2   float64   `json:"area_km2"`
	Pixels    int       `json:"pixels"`
	Site      orb.Point `json:"site"`
	Neighbors []int     `json:"neighbors"`
}

// handleCell returns the cell containing lon, lat.
func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, ok := s.src.CellAt(lon, lat)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no cell at this location"))
		return
	}
	label, _ := analysis.Categorize(c.WindMean)
	writeJSON(w, http.StatusOK, cellResponse{
		ID:        c.ID,
		Name:      "Vùng " + strconv.Itoa(c.ID),
		WindMean:  finite(c.WindMean),
		WindStd:   finite(c.WindStd),
		Category:  label,
		High:      analysis.IsHigh(c.WindMean, s.minSpeed),
		AreaKm2:   c.Area,
		Pixels:    c.Pixels,
		Site:      c.Site,
		Neighbors: c.Neighbors,
	})
}

// handleWind returns the raster value at lon, lat.
func (s *Server) handleWind(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v, ok := s.src.WindAt(lon, lat)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no wind data at this location"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"lon": lon, "lat": lat, "wind_speed": v})
}

func lonLat(r *http.Request) (lon, lat float64, err error) {
	q := r.URL.Query()
	lon, err = strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, errors.New("lon must be a number in [-180, 180]")
	}
	lat, err = strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, errors.New("lat must be a number in [-90, 90]")
	}
	return lon, lat, nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
