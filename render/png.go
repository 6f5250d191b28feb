// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/2dChan/windpotential/analysis"
	"github.com/2dChan/windpotential/export"
	"github.com/2dChan/windpotential/raster"
	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrNothingToPlot is returned when a figure would be empty.
var ErrNothingToPlot = errors.New("render: nothing to plot")

// Map is what a figure shows. An empty Region titles the figure for the
// whole country.
type Map struct {
	Raster   *raster.Raster
	Boundary orb.MultiPolygon
	Region   string
	Cells    []analysis.Cell
	MinSpeed float64
}

func (m Map) place() string {
	if m.Region == "" {
		return "Việt Nam"
	}
	return m.Region
}

func (m Map) placeEN() string {
	if m.Region == "" {
		return "Vietnam"
	}
	return m.Region
}

func (m Map) bound() orb.Bound {
	if len(m.Boundary) > 0 {
		return m.Boundary.Bound()
	}
	if m.Raster != nil {
		return m.Raster.Bound()
	}
	var mp orb.MultiPolygon
	for _, c := range m.Cells {
		mp = append(mp, c.Geometry...)
	}
	return mp.Bound()
}

const (
	pngWidth     = 1500
	pngHeight    = 1250
	marginLeft   = 110
	marginRight  = 230
	marginTop    = 120
	marginBottom = 100

	colorbarLabel = "Tốc độ gió (m/s) | Wind Speed (m/s)"
)

var (
	boundaryColor = color.RGBA{R: 255, A: 255}
	highFill      = color.NRGBA{R: 255, G: 255, A: 153}
	highEdge      = color.RGBA{R: 255, G: 165, A: 255}
	labelBox      = color.NRGBA{R: 255, G: 255, B: 255, A: 179}
)

var (
	goFontOnce sync.Once
	goFont     *opentype.Font
	goFontErr  error
)

func fontFace(size float64) (font.Face, error) {
	goFontOnce.Do(func() {
		goFont, goFontErr = opentype.Parse(goregular.TTF)
	})
	if goFontErr != nil {
		return nil, fmt.Errorf("render: font: %w", goFontErr)
	}
	return opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// plot is a gg canvas with the axes of one figure.
type plot struct {
	dc    *gg.Context
	frame frame

	title, label, small font.Face
}

func newPlot(b orb.Bound) (*plot, error) {
	p := &plot{
		dc: gg.NewContext(pngWidth, pngHeight),
		frame: newFrame(b, marginLeft, marginTop,
			pngWidth-marginLeft-marginRight, pngHeight-marginTop-marginBottom),
	}
	var err error
	if p.title, err = fontFace(26); err != nil {
		return nil, err
	}
	if p.label, err = fontFace(19); err != nil {
		return nil, err
	}
	if p.small, err = fontFace(15); err != nil {
		return nil, err
	}
	p.dc.SetColor(color.White)
	p.dc.Clear()
	return p, nil
}

// raster draws r under the plot box. Only north-up transforms are placed
// exactly; rotation terms are ignored.
func (p *plot) raster(r *raster.Raster, s Scale) {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for row := range r.Height {
		for col := range r.Width {
			if v, ok := r.Value(col, row); ok {
				img.Set(col, row, s.Color(v))
			}
		}
	}

	bx, by, bw, bh := p.frame.box()
	x0, y0 := p.frame.project(r.Transform.Apply(0, 0))
	dc := p.dc
	dc.Push()
	dc.DrawRectangle(bx, by, bw, bh)
	dc.Clip()
	dc.Translate(x0, y0)
	dc.Scale(r.Transform[1]*p.frame.scale, -r.Transform[5]*p.frame.scale)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func (p *plot) path(mp orb.MultiPolygon) {
	for _, poly := range mp {
		for _, ring := range poly {
			p.dc.NewSubPath()
			for i, pt := range ring {
				x, y := p.frame.project(pt)
				if i == 0 {
					p.dc.MoveTo(x, y)
				} else {
					p.dc.LineTo(x, y)
				}
			}
			p.dc.ClosePath()
		}
	}
}

func (p *plot) boundary(mp orb.MultiPolygon) {
	p.path(mp)
	p.dc.SetColor(boundaryColor)
	p.dc.SetLineWidth(1.5)
	p.dc.Stroke()
}

// boxed draws a string centred on (x, y) over a translucent white box.
func (p *plot) boxed(s string, face font.Face, fg color.Color, x, y float64) {
	dc := p.dc
	dc.SetFontFace(face)
	w, h := dc.MeasureString(s)
	dc.SetColor(labelBox)
	dc.DrawRoundedRectangle(x-w/2-5, y-h/2-4, w+10, h+8, 4)
	dc.Fill()
	dc.SetColor(fg)
	dc.DrawStringAnchored(s, x, y, 0.5, 0.35)
}

// note draws lines in the lower left corner of the plot box.
func (p *plot) note(lines ...string) {
	bx, by, _, bh := p.frame.box()
	dc := p.dc
	dc.SetFontFace(p.small)
	var w float64
	for _, l := range lines {
		lw, _ := dc.MeasureString(l)
		w = math.Max(w, lw)
	}
	lh := p.small.Metrics().Height.Ceil()
	h := float64(lh*len(lines)) + 12
	x, y := bx+12, by+bh-h-12
	dc.SetColor(labelBox)
	dc.DrawRectangle(x, y, w+16, h)
	dc.Fill()
	dc.SetColor(color.Black)
	for i, l := range lines {
		dc.DrawStringAnchored(l, x+8, y+6+float64(lh*i), 0, 0.85)
	}
}

// legend draws one filled patch with its label in the lower right corner.
func (p *plot) legend(fill, edge color.Color, label string) {
	bx, by, bw, bh := p.frame.box()
	dc := p.dc
	dc.SetFontFace(p.small)
	lw, lh := dc.MeasureString(label)
	w, h := lw+60, lh+20
	x, y := bx+bw-w-12, by+bh-h-12
	dc.SetColor(color.White)
	dc.DrawRectangle(x, y, w, h)
	dc.FillPreserve()
	dc.SetColor(color.Gray{Y: 200})
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.DrawRectangle(x+10, y+h/2-8, 30, 16)
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(edge)
	dc.Stroke()
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(label, x+50, y+h/2, 0, 0.35)
}

// axes draws the plot box, lon/lat ticks, the titles and axis labels.
func (p *plot) axes(title ...string) {
	dc := p.dc
	bx, by, bw, bh := p.frame.box()
	b := p.frame.bound

	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(bx, by, bw, bh)
	dc.Stroke()

	dc.SetFontFace(p.small)
	for _, lon := range ticks(b.Min[0], b.Max[0], 6) {
		x, _ := p.frame.project(orb.Point{lon, b.Min[1]})
		dc.DrawLine(x, by+bh, x, by+bh+6)
		dc.Stroke()
		dc.DrawStringAnchored(tickLabel(lon), x, by+bh+10, 0.5, 1)
	}
	for _, lat := range ticks(b.Min[1], b.Max[1], 6) {
		_, y := p.frame.project(orb.Point{b.Min[0], lat})
		dc.DrawLine(bx-6, y, bx, y)
		dc.Stroke()
		dc.DrawStringAnchored(tickLabel(lat), bx-10, y, 1, 0.35)
	}

	dc.SetFontFace(p.label)
	dc.DrawStringAnchored("Kinh độ | Longitude", bx+bw/2, by+bh+55, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, bx-75, by+bh/2)
	dc.DrawStringAnchored("Vĩ độ | Latitude", bx-75, by+bh/2, 0.5, 0.5)
	dc.Pop()

	dc.SetFontFace(p.title)
	lh := float64(p.title.Metrics().Height.Ceil())
	y := by - 20 - lh*float64(len(title)-1)
	for i, t := range title {
		dc.DrawStringAnchored(t, bx+bw/2, y+lh*float64(i), 0.5, 0)
	}
}

// colorbar draws s as a vertical bar right of the plot box, shrunk to 80% of
// its height.
func (p *plot) colorbar(s Scale) {
	const (
		width = 28
		steps = 256
	)
	dc := p.dc
	bx, by, bw, bh := p.frame.box()
	h := bh * 0.8
	x, y := bx+bw+25, by+(bh-h)/2

	for i := range steps {
		t := 1 - (float64(i)+0.5)/steps
		dc.SetColor(s.Gradient.At(t))
		dc.DrawRectangle(x, y+h*float64(i)/steps, width, h/steps+1)
		dc.Fill()
	}
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, width, h)
	dc.Stroke()

	dc.SetFontFace(p.small)
	for _, v := range ticks(s.Lo, s.Hi, 6) {
		ty := y + h*(1-(v-s.Lo)/(s.Hi-s.Lo))
		dc.DrawLine(x+width, ty, x+width+5, ty)
		dc.Stroke()
		dc.DrawStringAnchored(tickLabel(v), x+width+9, ty, 0, 0.35)
	}

	dc.SetFontFace(p.label)
	lx := x + width + 80
	dc.Push()
	dc.RotateAbout(-math.Pi/2, lx, y+h/2)
	dc.DrawStringAnchored(colorbarLabel, lx, y+h/2, 0.5, 0.5)
	dc.Pop()
}

func (p *plot) encode(w io.Writer) error {
	if err := p.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: png: %w", err)
	}
	return nil
}

// base draws the raster, boundary and region label shared by the PNG
// figures, returning the raster colour scale.
func base(m Map) (*plot, Scale, error) {
	if m.Raster == nil {
		return nil, Scale{}, ErrNothingToPlot
	}
	p, err := newPlot(m.bound())
	if err != nil {
		return nil, Scale{}, err
	}
	s := Scale{Gradient: Viridis}
	if lo, hi, ok := m.Raster.Range(); ok {
		s.Lo, s.Hi = lo, hi
	}
	p.raster(m.Raster, s)
	p.boundary(m.Boundary)
	if m.Region != "" && len(m.Boundary) > 0 {
		c, _ := planar.CentroidArea(m.Boundary)
		x, y := p.frame.project(c)
		p.boxed(m.Region, p.title, boundaryColor, x, y)
	}
	return p, s, nil
}

// WindDataPNG draws the wind raster with the region boundary, a colour bar
// and bilingual labels.
func WindDataPNG(w io.Writer, m Map) error {
	p, s, err := base(m)
	if err != nil {
		return err
	}
	p.note(
		"Màu xanh đậm -> vàng -> đỏ: Tốc độ gió tăng dần",
		"Dark blue -> yellow -> red: Increasing wind speed",
	)
	p.axes(
		fmt.Sprintf("Tốc độ gió tại %s (m/s)", m.place()),
		fmt.Sprintf("Wind Speed in %s (m/s)", m.placeEN()),
	)
	p.colorbar(s)
	return p.encode(w)
}

// HighPotentialPNG draws the wind raster overlaid with the cells whose mean
// speed exceeds m.MinSpeed, each labelled with its mean. It returns
// ErrNothingToPlot when there are no such cells.
func HighPotentialPNG(w io.Writer, m Map) error {
	high := analysis.HighPotential(m.Cells, m.MinSpeed)
	if len(high) == 0 {
		return ErrNothingToPlot
	}
	p, s, err := base(m)
	if err != nil {
		return err
	}

	dc := p.dc
	dc.SetFillRuleEvenOdd()
	for _, c := range high {
		p.path(c.Geometry)
		dc.SetColor(highFill)
		dc.FillPreserve()
		dc.SetColor(highEdge)
		dc.SetLineWidth(1.5)
		dc.Stroke()
	}
	for _, c := range high {
		if len(c.Geometry) == 0 {
			continue
		}
		ct, _ := planar.CentroidArea(c.Geometry)
		x, y := p.frame.project(ct)
		p.boxed(fmt.Sprintf("%.1f m/s", c.WindMean), p.small, color.Black, x, y)
	}

	threshold := export.FormatSpeed(m.MinSpeed)
	p.legend(highFill, highEdge, fmt.Sprintf(
		"Khu vực tiềm năng (> %s m/s) | Potential areas (> %s m/s)", threshold, threshold))
	p.note(
		"Màu xanh đậm -> vàng -> đỏ: Tốc độ gió tăng dần",
		"Dark blue -> yellow -> red: Increasing wind speed",
	)
	p.axes(
		fmt.Sprintf("Khu vực có tiềm năng gió cao tại %s (> %s m/s)", m.place(), threshold),
		fmt.Sprintf("High Wind Potential Areas in %s (> %s m/s)", m.placeEN(), threshold),
	)
	p.colorbar(s)
	return p.encode(w)
}
