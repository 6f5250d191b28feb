// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/2dChan/windpotential/analysis"
	"github.com/2dChan/windpotential/export"
	svg "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"
)

const (
	svgWidth  = 1000
	svgHeight = 820

	svgLeft   = 70
	svgRight  = 170
	svgTop    = 20
	svgBottom = 70

	backgroundStyle = "fill:rgb(255,255,255)"
	boundaryStyle   = "fill:none;stroke:rgb(255,0,0);stroke-width:1.5"
	frameStyle      = "fill:none;stroke:rgb(0,0,0);stroke-width:1"
	textStyle       = "font-family:Arial,sans-serif;font-size:12px;fill:rgb(0,0,0)"
	labelStyle      = "font-family:Arial,sans-serif;font-size:14px;fill:rgb(0,0,0)"
	noDataFill      = "#cccccc"
	potentialStroke = "rgb(255,165,0)"
	gradientID      = "windscale"
)

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// cellScale spans the finite cell means.
func cellScale(cells []analysis.Cell) Scale {
	s := Scale{Lo: math.Inf(1), Hi: math.Inf(-1), Gradient: YlOrRd}
	for _, c := range cells {
		if math.IsNaN(c.WindMean) {
			continue
		}
		s.Lo = math.Min(s.Lo, c.WindMean)
		s.Hi = math.Max(s.Hi, c.WindMean)
	}
	if s.Lo > s.Hi {
		s.Lo, s.Hi = 0, 0
	}
	return s
}

func svgPath(f frame, mp orb.MultiPolygon) string {
	var sb strings.Builder
	for _, poly := range mp {
		for _, ring := range poly {
			for i, pt := range ring {
				x, y := f.project(pt)
				cmd := "L"
				if i == 0 {
					cmd = "M"
				}
				fmt.Fprintf(&sb, "%s%.1f,%.1f ", cmd, x, y)
			}
			sb.WriteString("Z ")
		}
	}
	return strings.TrimSpace(sb.String())
}

func cellStyle(c analysis.Cell, s Scale, minSpeed float64) string {
	fill := noDataFill
	if !math.IsNaN(c.WindMean) {
		fill = s.Color(c.WindMean).Hex()
	}
	stroke := "stroke:rgb(255,255,255);stroke-width:0.5"
	if c.WindMean >= minSpeed {
		stroke = "stroke:" + potentialStroke + ";stroke-width:2"
	}
	return fmt.Sprintf("fill:%s;fill-opacity:0.7;fill-rule:evenodd;%s", fill, stroke)
}

func tooltip(c analysis.Cell) string {
	speed := func(v float64) string {
		if math.IsNaN(v) {
			return "không có dữ liệu / no data"
		}
		return fmt.Sprintf("%.2f m/s", v)
	}
	return strings.Join([]string{
		fmt.Sprintf("ID: %d", c.ID),
		"Tốc độ gió trung bình / Mean wind speed: " + speed(c.WindMean),
		"Độ lệch chuẩn / Standard deviation: " + speed(c.WindStd),
		fmt.Sprintf("Tên / Name: Vùng %d / Area %d", c.ID, c.ID),
	}, "\n")
}

func round(v float64) int { return int(math.Round(v)) }

// InteractiveSVG draws every cell coloured by its mean wind speed, with a
// hover tooltip per cell. Cells at or above m.MinSpeed get an orange outline.
// It returns ErrNothingToPlot when there are no cells.
func InteractiveSVG(w io.Writer, m Map) error {
	if len(m.Cells) == 0 {
		return ErrNothingToPlot
	}
	f := newFrame(m.bound(), svgLeft, svgTop,
		svgWidth-svgLeft-svgRight, svgHeight-svgTop-svgBottom)
	s := cellScale(m.Cells)

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(svgWidth, svgHeight)
	canvas.Rect(0, 0, svgWidth, svgHeight, backgroundStyle)

	offs := make([]svg.Offcolor, len(s.Gradient))
	for i, k := range s.Gradient {
		offs[i] = svg.Offcolor{Offset: uint8(math.Round(k.Pos * 100)), Color: k.Col.Hex(), Opacity: 1}
	}
	canvas.Def()
	canvas.LinearGradient(gradientID, 0, 100, 0, 0, offs)
	canvas.DefEnd()

	canvas.Group(`class="cells"`)
	for _, c := range m.Cells {
		canvas.Group(`class="cell"`, fmt.Sprintf(`data-id="%d"`, c.ID))
		canvas.Title(tooltip(c))
		canvas.Path(svgPath(f, c.Geometry), cellStyle(c, s, m.MinSpeed))
		canvas.Gend()
	}
	canvas.Gend()
	if len(m.Boundary) > 0 {
		canvas.Path(svgPath(f, m.Boundary), boundaryStyle)
	}

	svgAxes(canvas, f)
	svgColorbar(canvas, f, s)
	svgLegend(canvas, f, m.MinSpeed)
	canvas.End()
	return ew.err
}

func svgAxes(canvas *svg.SVG, f frame) {
	bx, by, bw, bh := f.box()
	canvas.Rect(round(bx), round(by), round(bw), round(bh), frameStyle)
	b := f.bound
	for _, lon := range ticks(b.Min[0], b.Max[0], 6) {
		x, _ := f.project(orb.Point{lon, b.Min[1]})
		canvas.Line(round(x), round(by+bh), round(x), round(by+bh+5), frameStyle)
		canvas.Text(round(x), round(by+bh+20), tickLabel(lon), textStyle+";text-anchor:middle")
	}
	for _, lat := range ticks(b.Min[1], b.Max[1], 6) {
		_, y := f.project(orb.Point{b.Min[0], lat})
		canvas.Line(round(bx-5), round(y), round(bx), round(y), frameStyle)
		canvas.Text(round(bx-8), round(y+4), tickLabel(lat), textStyle+";text-anchor:end")
	}
	canvas.Text(round(bx+bw/2), round(by+bh+45), "Kinh độ | Longitude", labelStyle+";text-anchor:middle")
	cx, cy := round(bx-50), round(by+bh/2)
	canvas.Text(cx, cy, "Vĩ độ | Latitude", labelStyle+";text-anchor:middle",
		fmt.Sprintf(`transform="rotate(-90 %d %d)"`, cx, cy))
	canvas.Text(round(bx+10), round(by+bh-12),
		"Di chuyển chuột lên các vùng để xem tốc độ gió | Hover over areas to see wind speed", textStyle)
}

func svgColorbar(canvas *svg.SVG, f frame, s Scale) {
	const width = 20
	bx, by, bw, bh := f.box()
	h := bh * 0.8
	x, y := bx+bw+20, by+(bh-h)/2
	canvas.Rect(round(x), round(y), width, round(h), "fill:url(#"+gradientID+");stroke:rgb(0,0,0);stroke-width:1")
	for _, v := range ticks(s.Lo, s.Hi, 6) {
		ty := y + h*(1-(v-s.Lo)/(s.Hi-s.Lo))
		canvas.Line(round(x+width), round(ty), round(x+width+4), round(ty), frameStyle)
		canvas.Text(round(x+width+7), round(ty+4), tickLabel(v), textStyle)
	}
	lx, ly := round(x+width+60), round(y+h/2)
	canvas.Text(lx, ly, colorbarLabel, labelStyle+";text-anchor:middle",
		fmt.Sprintf(`transform="rotate(-90 %d %d)"`, lx, ly))
}

func svgLegend(canvas *svg.SVG, f frame, minSpeed float64) {
	bx, by, bw, bh := f.box()
	threshold := export.FormatSpeed(minSpeed)
	label := fmt.Sprintf("Khu vực tiềm năng (>= %s m/s) | Potential areas (>= %s m/s)", threshold, threshold)
	x, y := round(bx+bw-420), round(by+bh-60)
	canvas.Rect(x, y, 410, 26, "fill:rgb(255,255,255);stroke:rgb(200,200,200)")
	canvas.Rect(x+8, y+7, 24, 12, "fill:rgb(255,255,0);fill-opacity:0.4;stroke:"+potentialStroke)
	canvas.Text(x+40, y+18, label, textStyle)
}
