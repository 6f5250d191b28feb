// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="vi">
<head>
<meta charset="utf-8">
<title>Bản đồ tương tác tiềm năng gió - {{.Place}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
h1, h2 { text-align: center; color: #2c3e50; margin: 4px 0; }
h2 { font-size: 1.1em; font-weight: normal; }
p.hint { text-align: center; }
.map { margin: 0 auto; max-width: 1000px; }
.map svg { width: 100%; height: auto; }
.cell:hover path { stroke: #000; stroke-width: 2; }
</style>
</head>
<body>
<h1>Bản đồ tương tác tốc độ gió và khu vực tiềm năng tại {{.Place}}</h1>
<h2>Interactive Wind Speed &amp; Potential Areas Map in {{.PlaceEN}}</h2>
<p class="hint">Di chuyển chuột trên các khu vực để xem thông tin chi tiết / Hover over areas to see detailed information</p>
<div class="map">
{{.SVG}}
</div>
</body>
</html>
`))

type page struct {
	Place   string
	PlaceEN string
	SVG     template.HTML
}

// InteractiveHTML wraps the interactive SVG map in a standalone bilingual
// page.
func InteractiveHTML(w io.Writer, m Map) error {
	var buf bytes.Buffer
	if err := InteractiveSVG(&buf, m); err != nil {
		return err
	}
	doc := buf.Bytes()
	if i := bytes.Index(doc, []byte("<svg")); i > 0 {
		doc = doc[i:]
	}

	err := pageTemplate.Execute(w, page{
		Place:   m.place(),
		PlaceEN: m.placeEN(),
		SVG:     template.HTML(doc),
	})
	if err != nil {
		return fmt.Errorf("render: html: %w", err)
	}
	return nil
}
