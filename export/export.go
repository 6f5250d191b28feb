// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

// Package export writes analysed cells as KML, CSV, GeoJSON and a bilingual
// text summary.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Paths are the output files of one analysis run.
type Paths struct {
	AllKML        string
	HighKML       string
	StatisticsCSV string
	CellsGeoJSON  string
	SummaryTXT    string
	DetailedCSV   string
	MaskedRaster  string

	WindPNG         string
	HighPNG         string
	InteractiveHTML string
}

// NewPaths names the output files in dir. A non-empty region slug is
// appended to both prefixes; the detailed files use detailedPrefix.
func NewPaths(dir, prefix, detailedPrefix, regionSlug string, minSpeed float64) Paths {
	if regionSlug != "" {
		prefix += "_" + regionSlug
		detailedPrefix += "_" + regionSlug
	}
	join := func(name string) string { return filepath.Join(dir, name) }
	return Paths{
		AllKML:        join(prefix + "_all.kml"),
		HighKML:       join(fmt.Sprintf("%s_%sms.kml", prefix, FormatSpeed(minSpeed))),
		StatisticsCSV: join(prefix + "_statistics.csv"),
		CellsGeoJSON:  join(prefix + "_cells.geojson"),
		SummaryTXT:    join(detailedPrefix + "_detailed_summary.txt"),
		DetailedCSV:   join(detailedPrefix + "_detailed_statistics.csv"),
		MaskedRaster:  join(prefix + "_wind.tif"),

		WindPNG:         join(prefix + "_data.png"),
		HighPNG:         join(fmt.Sprintf("%s_high_potential_%sms.png", prefix, FormatSpeed(minSpeed))),
		InteractiveHTML: join(prefix + "_interactive.html"),
	}
}

// FormatSpeed formats a speed threshold the way it appears in file names
// and reports: the shortest decimal form, always with a fractional part
// ("6.0", "5.5").
func FormatSpeed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// formatFloat writes NaN as an empty field.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFile creates path, creating its directory as needed, and fills it
// through write.
func WriteFile(path string, write func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export: close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return w.Flush()
}
