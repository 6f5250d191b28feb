// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package export

import (
	"io"
	"strconv"

	"github.com/2dChan/windpotential/analysis"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Detailed CSV headers.
const (
	HeaderID        = "ID"
	HeaderMean      = "Tốc độ gió trung bình (m/s) | Average Wind Speed (m/s)"
	HeaderStd       = "Độ lệch chuẩn (m/s) | Standard Deviation (m/s)"
	HeaderCategory  = "Phân loại tốc độ gió | Wind Speed Category"
	HeaderPotential = "Tiềm năng | Potential"

	PotentialHigh = "Cao | High"
	PotentialLow  = "Thấp | Low"
)

// StatisticsFrame returns the name, wind_mean and wind_std columns of cells.
func StatisticsFrame(cells []analysis.Cell) dataframe.DataFrame {
	names := make([]string, len(cells))
	means := make([]string, len(cells))
	stds := make([]string, len(cells))
	for i, c := range cells {
		names[i] = strconv.Itoa(c.ID)
		means[i] = formatFloat(c.WindMean)
		stds[i] = formatFloat(c.WindStd)
	}
	return dataframe.New(
		series.New(names, series.String, "name"),
		series.New(means, series.String, "wind_mean"),
		series.New(stds, series.String, "wind_std"),
	)
}

// DetailedFrame adds the bilingual category and potential columns.
func DetailedFrame(cells []analysis.Cell, minSpeed float64) dataframe.DataFrame {
	ids := make([]string, len(cells))
	means := make([]string, len(cells))
	stds := make([]string, len(cells))
	cats := make([]string, len(cells))
	pots := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = strconv.Itoa(c.ID)
		means[i] = formatFloat(c.WindMean)
		stds[i] = formatFloat(c.WindStd)
		cats[i], _ = analysis.Categorize(c.WindMean)
		pots[i] = PotentialLow
		if analysis.IsHigh(c.WindMean, minSpeed) {
			pots[i] = PotentialHigh
		}
	}
	return dataframe.New(
		series.New(ids, series.String, HeaderID),
		series.New(means, series.String, HeaderMean),
		series.New(stds, series.String, HeaderStd),
		series.New(cats, series.String, HeaderCategory),
		series.New(pots, series.String, HeaderPotential),
	)
}

// WriteStatisticsCSV writes the name, wind_mean and wind_std columns.
func WriteStatisticsCSV(w io.Writer, cells []analysis.Cell) error {
	df := StatisticsFrame(cells)
	return df.WriteCSV(w)
}

// WriteDetailedCSV writes the detailed, categorised statistics.
func WriteDetailedCSV(w io.Writer, cells []analysis.Cell, minSpeed float64) error {
	df := DetailedFrame(cells, minSpeed)
	return df.WriteCSV(w)
}
