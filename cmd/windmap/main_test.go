// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2dChan/windpotential/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	countryJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Vietnam"},"geometry":{"type":"Polygon",
"coordinates":[[[105,15],[106,15],[106,16],[105,16],[105,15]]]}}]}`

	provincesJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Gia Lai"},"geometry":{"type":"Polygon",
"coordinates":[[[105,15],[105.5,15],[105.5,16],[105,16],[105,15]]]}},
{"type":"Feature","properties":{"name":"Kon Tum"},"geometry":{"type":"Polygon",
"coordinates":[[[105.5,15],[106,15],[106,16],[105.5,16],[105.5,15]]]}}]}`
)

func writeData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, boundaryName), []byte(countryJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, provincesName), []byte(provincesJSON), 0o600))

	r := raster.New(20, 20, raster.Transform{105, 0.05, 0, 16, 0, -0.05})
	for i := range r.Data {
		r.Data[i] = 5 + float64(i%20)*0.1
	}
	require.NoError(t, raster.Create(filepath.Join(dir, windName), r))
	return dir
}

func runMap(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Country(t *testing.T) {
	data := writeData(t)
	out := t.TempDir()

	stdout, _, err := runMap(t, "--data", data, "--output", out, "--points", "10")
	require.NoError(t, err)
	assert.Contains(t, stdout, "toàn bộ Việt Nam")

	html, err := os.ReadFile(filepath.Join(out, "vietnam_wind_interactive.html"))
	require.NoError(t, err)
	cells := strings.Count(string(html), `class="cell"`)
	assert.Positive(t, cells)
	assert.LessOrEqual(t, cells, 10)
}

func TestRun_Region(t *testing.T) {
	data := writeData(t)
	out := t.TempDir()

	_, _, err := runMap(t, "--data", data, "--output", out, "--points", "6", "--region", "Gia Lai")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "vietnam_wind_interactive_gia_lai.html"))

	_, stderr, err := runMap(t, "--data", data, "--output", out, "--region", "Atlantis")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "Atlantis")
}

func TestRun_ListRegions(t *testing.T) {
	stdout, _, err := runMap(t, "--data", writeData(t), "--list-regions")
	require.NoError(t, err)
	assert.Contains(t, stdout, "  - Gia Lai\n  - Kon Tum\n")
}

func TestRun_MissingFiles(t *testing.T) {
	data := t.TempDir()
	_, stderr, err := runMap(t, "--data", data)
	require.ErrorIs(t, err, errReported)
	for _, name := range []string{boundaryName, windName, provincesName} {
		assert.Contains(t, stderr, filepath.Join(data, name))
	}
	assert.Contains(t, stderr, atlasURL)
}
