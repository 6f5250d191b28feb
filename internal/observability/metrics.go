// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "windpotential"

// Metrics holds the Prometheus counters and histograms of an analysis run.
type Metrics struct {
	CellsGenerated   prometheus.Counter
	CellsDropped     prometheus.Counter
	PixelsAggregated prometheus.Counter

	ZonalBatchDuration prometheus.Histogram
	StageDuration      *prometheus.HistogramVec // labels: stage={load,tessellate,statistics,export,plot}
	ExportsWritten     *prometheus.CounterVec   // labels: kind={kml,csv,geojson,summary,raster,png,html}
}

func newMetrics() *Metrics {
	return &Metrics{
		CellsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_generated_total",
			Help:      "Total Voronoi cells kept after clipping to the region.",
		}),
		CellsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_dropped_total",
			Help:      "Total Voronoi cells whose clipped geometry was empty.",
		}),
		PixelsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_aggregated_total",
			Help:      "Total valid raster pixels folded into zonal statistics.",
		}),
		ZonalBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "zonal_batch_duration_seconds",
			Help:      "Duration of one zonal statistics batch.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each analysis stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),
		ExportsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_written_total",
			Help:      "Output files written by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CellsGenerated,
		m.CellsDropped,
		m.PixelsAggregated,
		m.ZonalBatchDuration,
		m.StageDuration,
		m.ExportsWritten,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}
