// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
)

// GeoKey values for a WGS 84 lon/lat raster with area pixels.
var geoKeys = []uint16{
	1, 1, 0, 3, // version, revision, minor, number of keys
	1024, 0, 1, 2, // GTModelType: geographic
	1025, 0, 1, 1, // GTRasterType: PixelIsArea
	2048, 0, 1, 4326, // GeographicType: WGS 84
}

type entry struct {
	tag, typ uint16
	count    int
	data     []byte
}

// Create writes r to path as a GeoTIFF.
func Create(path string, r *Raster) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := Encode(w, r); err != nil {
		return fmt.Errorf("raster: encode %s: %w", path, err)
	}
	return w.Flush()
}

// Encode writes r as an uncompressed little-endian float32 GeoTIFF in a
// single strip.
func Encode(w io.Writer, r *Raster) error {
	if r.Width <= 0 || r.Height <= 0 || len(r.Data) != r.Width*r.Height {
		return fmt.Errorf("raster: bad raster %dx%d with %d values", r.Width, r.Height, len(r.Data))
	}
	le := binary.LittleEndian

	pixels := make([]byte, 4*len(r.Data))
	for i, v := range r.Data {
		le.PutUint32(pixels[4*i:], math.Float32bits(float32(v)))
	}

	entries := []entry{
		shortEntry(tagImageWidth, uint16(r.Width)),
		shortEntry(tagImageLength, uint16(r.Height)),
		shortEntry(tagBitsPerSample, 32),
		shortEntry(tagCompression, compressionNone),
		shortEntry(tagPhotometric, 1),
		longEntry(tagStripOffsets, 0), // patched below
		shortEntry(tagSamplesPerPixel, 1),
		shortEntry(tagRowsPerStrip, uint16(r.Height)),
		longEntry(tagStripByteCounts, uint32(len(pixels))),
		shortEntry(tagPlanarConfiguration, 1),
		shortEntry(tagSampleFormat, sampleFloat),
		shortsEntry(tagGeoKeyDirectory, geoKeys),
	}
	if r.Width > math.MaxUint16 || r.Height > math.MaxUint16 {
		entries[0] = longEntry(tagImageWidth, uint32(r.Width))
		entries[1] = longEntry(tagImageLength, uint32(r.Height))
		entries[7] = longEntry(tagRowsPerStrip, uint32(r.Height))
	}

	t := r.Transform
	if t[2] == 0 && t[4] == 0 {
		entries = append(entries,
			doublesEntry(tagModelPixelScale, []float64{t[1], -t[5], 0}),
			doublesEntry(tagModelTiepoint, []float64{0, 0, 0, t[0], t[3], 0}),
		)
	} else {
		entries = append(entries, doublesEntry(tagModelTransformation, []float64{
			t[1], t[2], 0, t[0],
			t[4], t[5], 0, t[3],
			0, 0, 0, 0,
			0, 0, 0, 1,
		}))
	}
	if r.HasNoData {
		s := strconv.FormatFloat(r.NoData, 'g', -1, 64)
		if math.IsNaN(r.NoData) {
			s = "nan"
		}
		entries = append(entries, entry{tag: tagGDALNoData, typ: dtASCII, count: len(s) + 1, data: append([]byte(s), 0)})
	}
	slices.SortFunc(entries, func(a, b entry) int { return int(a.tag) - int(b.tag) })

	// Header, IFD, out-of-line values, pixels.
	ifdSize := 2 + 12*len(entries) + 4
	next := 8 + ifdSize
	var extra []byte
	offsets := make([]int, len(entries))
	for i, e := range entries {
		if len(e.data) <= 4 {
			continue
		}
		if next%2 == 1 {
			extra = append(extra, 0)
			next++
		}
		offsets[i] = next
		extra = append(extra, e.data...)
		next += len(e.data)
	}
	if next%2 == 1 {
		extra = append(extra, 0)
		next++
	}
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			le.PutUint32(entries[i].data, uint32(next))
		}
	}

	out := make([]byte, 0, next+len(pixels))
	out = append(out, 'I', 'I')
	out = le.AppendUint16(out, 42)
	out = le.AppendUint32(out, 8)
	out = le.AppendUint16(out, uint16(len(entries)))
	for i, e := range entries {
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, e.typ)
		out = le.AppendUint32(out, uint32(e.count))
		if len(e.data) <= 4 {
			var v [4]byte
			copy(v[:], e.data)
			out = append(out, v[:]...)
		} else {
			out = le.AppendUint32(out, uint32(offsets[i]))
		}
	}
	out = le.AppendUint32(out, 0)
	out = append(out, extra...)
	out = append(out, pixels...)

	_, err := w.Write(out)
	return err
}

func shortEntry(tag uint16, v uint16) entry {
	return shortsEntry(tag, []uint16{v})
}

func shortsEntry(tag uint16, vs []uint16) entry {
	b := make([]byte, 0, 2*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return entry{tag: tag, typ: dtShort, count: len(vs), data: b}
}

func longEntry(tag uint16, v uint32) entry {
	return entry{tag: tag, typ: dtLong, count: 1, data: binary.LittleEndian.AppendUint32(nil, v)}
}

func doublesEntry(tag uint16, vs []float64) entry {
	b := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return entry{tag: tag, typ: dtDouble, count: len(vs), data: b}
}
