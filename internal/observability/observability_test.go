// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "debug", "JSON")
	logger.Debug("cells generated", "cells", 42)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "cells generated", rec["msg"])
	assert.InDelta(t, 42, rec["cells"], 0)
}

func TestNewLoggerTo_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warning", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(&buf, tt.level, "text")
			assert.True(t, logger.Enabled(t.Context(), tt.enabled))
			assert.False(t, logger.Enabled(t.Context(), tt.muted))
		})
	}
}

func TestNewLoggerTo_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "text").Info("saved", "path", "results/a.kml")
	assert.True(t, strings.Contains(buf.String(), "msg=saved"))
	assert.True(t, strings.Contains(buf.String(), "path=results/a.kml"))
}

func TestNewMetricsForTesting(t *testing.T) {
	m, reg := NewMetricsForTesting()
	m.CellsGenerated.Add(3)
	m.ExportsWritten.WithLabelValues("kml").Inc()
	m.ExportsWritten.WithLabelValues("kml").Inc()
	m.StageDuration.WithLabelValues("tessellate").Observe(0.2)

	assert.InDelta(t, 3, testutil.ToFloat64(m.CellsGenerated), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ExportsWritten.WithLabelValues("kml")), 0)

	n, err := testutil.GatherAndCount(reg, "windpotential_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A second set must not collide.
	_, _ = NewMetricsForTesting()
}
