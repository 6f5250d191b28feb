// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package raster

import (
	"bytes"
	"compress/lzw"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_Layouts(t *testing.T) {
	values := rampValues(5, 4)
	tests := []struct {
		name string
		fx   fixture
	}{
		{"float32 strips LE", fixture{order: binary.LittleEndian, bps: 32, format: sampleFloat, rowsPerStrip: 2}},
		{"float32 strips BE", fixture{order: binary.BigEndian, bps: 32, format: sampleFloat, rowsPerStrip: 3}},
		{"float64 single strip", fixture{order: binary.LittleEndian, bps: 64, format: sampleFloat}},
		{"uint8 strips", fixture{order: binary.LittleEndian, bps: 8, format: sampleUint, rowsPerStrip: 1}},
		{"int16 BE", fixture{order: binary.BigEndian, bps: 16, format: sampleInt, rowsPerStrip: 2}},
		{"uint16 tiles", fixture{order: binary.LittleEndian, bps: 16, format: sampleUint, tile: [2]int{16, 16}}},
		{"float32 tiles BE", fixture{order: binary.BigEndian, bps: 32, format: sampleFloat, tile: [2]int{16, 16}}},
		{"deflate", fixture{order: binary.LittleEndian, bps: 32, format: sampleFloat, compression: compressionDeflate, rowsPerStrip: 2}},
		{"deflate predictor 2", fixture{order: binary.BigEndian, bps: 16, format: sampleUint, compression: compressionDeflate, predictor: predictorHorizontal}},
		{"deflate predictor 3", fixture{order: binary.LittleEndian, bps: 32, format: sampleFloat, compression: compressionDeflate, predictor: predictorFloat, rowsPerStrip: 2}},
		{"predictor 3 float64 BE", fixture{order: binary.BigEndian, bps: 64, format: sampleFloat, predictor: predictorFloat}},
		{"lzw uint8", fixture{order: binary.LittleEndian, bps: 8, format: sampleUint, compression: compressionLZW}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fx.width, tt.fx.height, tt.fx.values = 5, 4, values
			r, err := Decode(bytes.NewReader(tt.fx.build(t)))
			if err != nil {
				t.Fatalf("Decode() error = %v, want nil", err)
			}
			if r.Width != 5 || r.Height != 4 {
				t.Fatalf("Decode() size = %dx%d, want 5x4", r.Width, r.Height)
			}
			if diff := cmp.Diff(values, r.Data); diff != "" {
				t.Errorf("Decode() data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_GeoReference(t *testing.T) {
	fx := fixture{
		order: binary.LittleEndian, bps: 32, format: sampleFloat,
		width: 2, height: 2, values: []float64{1, 2, 3, -9999},
		scale: []float64{0.25, 0.5, 0}, tie: []float64{0, 0, 0, 102, 23.5, 0},
		nodata: "-9999",
	}
	r, err := Decode(bytes.NewReader(fx.build(t)))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}

	want := Transform{102, 0.25, 0, 23.5, 0, -0.5}
	if r.Transform != want {
		t.Errorf("r.Transform = %v, want %v", r.Transform, want)
	}
	if !r.HasNoData || r.NoData != -9999 {
		t.Errorf("r.NoData = %v (has %v), want -9999", r.NoData, r.HasNoData)
	}
	if _, ok := r.Value(1, 1); ok {
		t.Errorf("r.Value(1, 1) ok = true, want false for nodata")
	}
}

func TestDecode_Errors(t *testing.T) {
	good := fixture{order: binary.LittleEndian, bps: 32, format: sampleFloat, width: 2, height: 2,
		values: []float64{1, 2, 3, 4}}.build(t)

	bigTIFF := slices.Clone(good)
	bigTIFF[2] = 43

	badOrder := slices.Clone(good)
	badOrder[0], badOrder[1] = 'X', 'X'

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("II*")},
		{"bad byte order", badOrder},
		{"bigtiff", bigTIFF},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(bytes.NewReader(tt.data)); !errors.Is(err, ErrFormat) {
				t.Errorf("Decode(%s) error = %v, want ErrFormat", tt.name, err)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		r    *Raster
	}{
		{
			"north up with nodata",
			&Raster{Width: 3, Height: 2, Transform: Transform{102, 0.5, 0, 24, 0, -0.5},
				NoData: -1, HasNoData: true, Data: []float64{1.5, 2, -1, 4, 5.25, 6}},
		},
		{
			"rotated without nodata",
			&Raster{Width: 2, Height: 2, Transform: Transform{10, 1, 0.5, 20, 0.25, -1},
				Data: []float64{1, 2, 3, 4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.tif")
			if err := Create(path, tt.r); err != nil {
				t.Fatalf("Create() error = %v, want nil", err)
			}
			got, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v, want nil", err)
			}
			if diff := cmp.Diff(tt.r, got); diff != "" {
				t.Errorf("Open(Create(r)) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_NaNNoData(t *testing.T) {
	r := &Raster{Width: 2, Height: 1, Transform: Transform{0, 1, 0, 1, 0, -1},
		NoData: math.NaN(), HasNoData: true, Data: []float64{math.NaN(), 7}}

	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		t.Fatalf("Encode() error = %v, want nil", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}
	if !got.HasNoData || !math.IsNaN(got.NoData) {
		t.Errorf("got.NoData = %v (has %v), want NaN", got.NoData, got.HasNoData)
	}
	if v, ok := got.Value(1, 0); !ok || v != 7 {
		t.Errorf("got.Value(1, 0) = %v, %v, want 7, true", v, ok)
	}
}

func TestEncode_BadRaster(t *testing.T) {
	r := &Raster{Width: 2, Height: 2, Data: []float64{1}}
	if err := Encode(&bytes.Buffer{}, r); err == nil {
		t.Errorf("Encode() error = nil, want non-nil")
	}
}

// Helpers

func rampValues(w, h int) []float64 {
	out := make([]float64, w*h)
	for i := range out {
		out[i] = float64(i*3 + 1)
	}
	return out
}

// byteOrder reads and appends in one byte order.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// fixture builds TIFF files with the layouts the decoder supports.
type fixture struct {
	order         byteOrder
	width, height int
	bps, format   int
	compression   int
	predictor     int
	rowsPerStrip  int
	tile          [2]int
	values        []float64
	scale, tie    []float64
	nodata        string
}

type fixtureEntry struct {
	tag, typ uint16
	ints     []uint64
	doubles  []float64
	ascii    string
}

func (fx fixture) build(t *testing.T) []byte {
	t.Helper()
	if fx.compression == 0 {
		fx.compression = compressionNone
	}
	if fx.predictor == 0 {
		fx.predictor = predictorNone
	}

	blockW, blockH := fx.width, fx.height
	if fx.rowsPerStrip > 0 {
		blockH = fx.rowsPerStrip
	}
	if fx.tile[0] > 0 {
		blockW, blockH = fx.tile[0], fx.tile[1]
	}
	across := (fx.width + blockW - 1) / blockW
	down := (fx.height + blockH - 1) / blockH
	size := fx.bps / 8

	var blocks [][]byte
	for by := range down {
		for bx := range across {
			rows := blockH
			if fx.tile[0] == 0 {
				rows = min(blockH, fx.height-by*blockH)
			}
			var raw []byte
			for y := range rows {
				row := make([]byte, blockW*size)
				for x := range blockW {
					px, py := bx*blockW+x, by*blockH+y
					if px >= fx.width || py >= fx.height {
						continue
					}
					fx.putSample(row[x*size:], fx.values[py*fx.width+px])
				}
				switch fx.predictor {
				case predictorHorizontal:
					applyHorizontal(row, size, fx.order)
				case predictorFloat:
					row = applyFloat(row, size, fx.order)
				}
				raw = append(raw, row...)
			}
			blocks = append(blocks, compress(t, fx.compression, raw))
		}
	}

	offsetsTag, countsTag := uint16(tagStripOffsets), uint16(tagStripByteCounts)
	entries := []fixtureEntry{
		{tag: tagImageWidth, typ: dtLong, ints: []uint64{uint64(fx.width)}},
		{tag: tagImageLength, typ: dtLong, ints: []uint64{uint64(fx.height)}},
		{tag: tagBitsPerSample, typ: dtShort, ints: []uint64{uint64(fx.bps)}},
		{tag: tagCompression, typ: dtShort, ints: []uint64{uint64(fx.compression)}},
		{tag: tagPhotometric, typ: dtShort, ints: []uint64{1}},
		{tag: tagSamplesPerPixel, typ: dtShort, ints: []uint64{1}},
		{tag: tagPredictor, typ: dtShort, ints: []uint64{uint64(fx.predictor)}},
		{tag: tagSampleFormat, typ: dtShort, ints: []uint64{uint64(fx.format)}},
	}
	if fx.tile[0] > 0 {
		offsetsTag, countsTag = tagTileOffsets, tagTileByteCounts
		entries = append(entries,
			fixtureEntry{tag: tagTileWidth, typ: dtShort, ints: []uint64{uint64(blockW)}},
			fixtureEntry{tag: tagTileLength, typ: dtShort, ints: []uint64{uint64(blockH)}},
		)
	} else {
		entries = append(entries, fixtureEntry{tag: tagRowsPerStrip, typ: dtLong, ints: []uint64{uint64(blockH)}})
	}
	if fx.scale != nil {
		entries = append(entries,
			fixtureEntry{tag: tagModelPixelScale, typ: dtDouble, doubles: fx.scale},
			fixtureEntry{tag: tagModelTiepoint, typ: dtDouble, doubles: fx.tie},
		)
	}
	if fx.nodata != "" {
		entries = append(entries, fixtureEntry{tag: tagGDALNoData, typ: dtASCII, ascii: fx.nodata + "\x00"})
	}

	// Pixel blocks follow the header, then the IFD and its values.
	out := []byte("II")
	if fx.order == binary.BigEndian {
		out = []byte("MM")
	}
	out = fx.order.AppendUint16(out, 42)
	out = fx.order.AppendUint32(out, 0) // IFD offset, patched below

	var offsets, counts []uint64
	for _, b := range blocks {
		offsets = append(offsets, uint64(len(out)))
		counts = append(counts, uint64(len(b)))
		out = append(out, b...)
	}
	entries = append(entries,
		fixtureEntry{tag: offsetsTag, typ: dtLong, ints: offsets},
		fixtureEntry{tag: countsTag, typ: dtLong, ints: counts},
	)
	slices.SortFunc(entries, func(a, b fixtureEntry) int { return int(a.tag) - int(b.tag) })

	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	fx.order.PutUint32(out[4:8], uint32(len(out)))

	valuesAt := len(out) + 2 + 12*len(entries) + 4
	var values []byte
	out = fx.order.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		data := fx.encodeEntry(e)
		count := len(e.ints) + len(e.doubles) + len(e.ascii)
		out = fx.order.AppendUint16(out, e.tag)
		out = fx.order.AppendUint16(out, e.typ)
		out = fx.order.AppendUint32(out, uint32(count))
		if len(data) <= 4 {
			var v [4]byte
			copy(v[:], data)
			out = append(out, v[:]...)
			continue
		}
		out = fx.order.AppendUint32(out, uint32(valuesAt+len(values)))
		values = append(values, data...)
	}
	out = fx.order.AppendUint32(out, 0)
	return append(out, values...)
}

func (fx fixture) encodeEntry(e fixtureEntry) []byte {
	var b []byte
	for _, v := range e.ints {
		if e.typ == dtShort {
			b = fx.order.AppendUint16(b, uint16(v))
		} else {
			b = fx.order.AppendUint32(b, uint32(v))
		}
	}
	for _, v := range e.doubles {
		b = fx.order.AppendUint64(b, math.Float64bits(v))
	}
	return append(b, e.ascii...)
}

func (fx fixture) putSample(b []byte, v float64) {
	switch {
	case fx.format == sampleFloat && fx.bps == 32:
		fx.order.PutUint32(b, math.Float32bits(float32(v)))
	case fx.format == sampleFloat && fx.bps == 64:
		fx.order.PutUint64(b, math.Float64bits(v))
	case fx.bps == 8:
		b[0] = byte(int64(v))
	case fx.bps == 16:
		fx.order.PutUint16(b, uint16(int64(v)))
	case fx.bps == 32:
		fx.order.PutUint32(b, uint32(int64(v)))
	}
}

func applyHorizontal(row []byte, size int, order binary.ByteOrder) {
	n := len(row) / size
	for i := n - 1; i >= 1; i-- {
		cur, prev := row[i*size:(i+1)*size], row[(i-1)*size:i*size]
		switch size {
		case 1:
			cur[0] -= prev[0]
		case 2:
			order.PutUint16(cur, order.Uint16(cur)-order.Uint16(prev))
		case 4:
			order.PutUint32(cur, order.Uint32(cur)-order.Uint32(prev))
		}
	}
}

func applyFloat(row []byte, size int, order binary.ByteOrder) []byte {
	n := len(row) / size
	out := make([]byte, len(row))
	for i := range n {
		s := row[i*size : (i+1)*size]
		for b := range size {
			// Byte planes are most significant first.
			src := b
			if order == binary.LittleEndian {
				src = size - 1 - b
			}
			out[b*n+i] = s[src]
		}
	}
	for i := len(out) - 1; i >= 1; i-- {
		out[i] -= out[i-1]
	}
	return out
}

func compress(t *testing.T, compression int, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch compression {
	case compressionNone:
		return raw
	case compressionDeflate:
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
	case compressionLZW:
		// Short inputs never reach the code width switch, where TIFF LZW
		// differs from compress/lzw.
		lw := lzw.NewWriter(&buf, lzw.MSB, 8)
		if _, err := lw.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := lw.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}
