// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff/lzw"
)

// TIFF tags.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339

	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNoData          = 42113
)

// TIFF field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeSize = map[uint16]int{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8,
}

const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionDeflateOld = 32946

	predictorNone       = 1
	predictorHorizontal = 2
	predictorFloat      = 3

	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// ErrFormat is returned for inputs that are not TIFF files or use features
// the decoder does not support.
var ErrFormat = errors.New("raster: unsupported or malformed GeoTIFF")

type field struct {
	typ   uint16
	count int
	data  []byte
}

type decoder struct {
	buf    []byte
	order  binary.ByteOrder
	fields map[uint16]field
}

// Open reads a GeoTIFF file from disk.
func Open(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("raster: decode %s: %w", path, err)
	}
	return r, nil
}

// Decode reads the first band of the first image in a GeoTIFF stream.
func Decode(rd io.Reader) (*Raster, error) {
	buf, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	d := &decoder{buf: buf}
	if err := d.readIFD(); err != nil {
		return nil, err
	}
	return d.decode()
}

func (d *decoder) readIFD() error {
	if len(d.buf) < 8 {
		return fmt.Errorf("%w: short header", ErrFormat)
	}
	switch string(d.buf[:2]) {
	case "II":
		d.order = binary.LittleEndian
	case "MM":
		d.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: bad byte order %q", ErrFormat, d.buf[:2])
	}
	switch magic := d.order.Uint16(d.buf[2:4]); magic {
	case 42:
	case 43:
		return fmt.Errorf("%w: BigTIFF is not supported", ErrFormat)
	default:
		return fmt.Errorf("%w: bad magic %d", ErrFormat, magic)
	}

	off := int(d.order.Uint32(d.buf[4:8]))
	if off+2 > len(d.buf) {
		return fmt.Errorf("%w: IFD offset %d out of range", ErrFormat, off)
	}
	n := int(d.order.Uint16(d.buf[off : off+2]))
	if off+2+12*n > len(d.buf) {
		return fmt.Errorf("%w: truncated IFD", ErrFormat)
	}

	d.fields = make(map[uint16]field, n)
	for i := range n {
		e := d.buf[off+2+12*i : off+2+12*(i+1)]
		tag := d.order.Uint16(e[0:2])
		typ := d.order.Uint16(e[2:4])
		count := int(d.order.Uint32(e[4:8]))
		size, ok := typeSize[typ]
		if !ok {
			continue
		}
		length := size * count
		var data []byte
		if length <= 4 {
			data = e[8 : 8+length]
		} else {
			vo := int(d.order.Uint32(e[8:12]))
			if vo < 0 || vo+length > len(d.buf) {
				return fmt.Errorf("%w: tag %d data out of range", ErrFormat, tag)
			}
			data = d.buf[vo : vo+length]
		}
		d.fields[tag] = field{typ: typ, count: count, data: data}
	}
	return nil
}

// ints returns the integer values of a tag, or def when it is absent.
func (d *decoder) ints(tag uint16, def ...uint64) []uint64 {
	f, ok := d.fields[tag]
	if !ok {
		return def
	}
	out := make([]uint64, f.count)
	for i := range out {
		switch f.typ {
		case dtByte, dtUndefined:
			out[i] = uint64(f.data[i])
		case dtShort:
			out[i] = uint64(d.order.Uint16(f.data[2*i:]))
		case dtLong:
			out[i] = uint64(d.order.Uint32(f.data[4*i:]))
		default:
			return def
		}
	}
	return out
}

func (d *decoder) int(tag uint16, def uint64) uint64 {
	v := d.ints(tag, def)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

func (d *decoder) floats(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		switch f.typ {
		case dtDouble:
			out[i] = math.Float64frombits(d.order.Uint64(f.data[8*i:]))
		case dtFloat:
			out[i] = float64(math.Float32frombits(d.order.Uint32(f.data[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *decoder) ascii(tag uint16) (string, bool) {
	f, ok := d.fields[tag]
	if !ok || f.typ != dtASCII {
		return "", false
	}
	return strings.TrimRight(string(f.data), "\x00"), true
}

// layout describes how the first band is split into compressed blocks.
type layout struct {
	blockW, blockH int
	across, down   int
	offsets        []uint64
	counts         []uint64
	tiled          bool
}

func (d *decoder) layout(width, height int, planes int) (layout, error) {
	var l layout
	if _, ok := d.fields[tagTileWidth]; ok {
		l.tiled = true
		l.blockW = int(d.int(tagTileWidth, 0))
		l.blockH = int(d.int(tagTileLength, 0))
		l.offsets = d.ints(tagTileOffsets)
		l.counts = d.ints(tagTileByteCounts)
	} else {
		l.blockW = width
		l.blockH = int(d.int(tagRowsPerStrip, uint64(height)))
		l.blockH = min(l.blockH, height)
		l.offsets = d.ints(tagStripOffsets)
		l.counts = d.ints(tagStripByteCounts)
	}
	if l.blockW <= 0 || l.blockH <= 0 {
		return l, fmt.Errorf("%w: bad block size %dx%d", ErrFormat, l.blockW, l.blockH)
	}
	l.across = (width + l.blockW - 1) / l.blockW
	l.down = (height + l.blockH - 1) / l.blockH

	n := l.across * l.down
	if len(l.offsets) < n*planes || len(l.counts) < n*planes {
		return l, fmt.Errorf("%w: %d blocks declared, %d needed", ErrFormat, len(l.offsets), n*planes)
	}
	// With separate planes the first band owns the first n blocks.
	l.offsets, l.counts = l.offsets[:n], l.counts[:n]
	return l, nil
}

func (d *decoder) decode() (*Raster, error) {
	width := int(d.int(tagImageWidth, 0))
	height := int(d.int(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bad image size %dx%d", ErrFormat, width, height)
	}

	spp := int(d.int(tagSamplesPerPixel, 1))
	bps := int(d.int(tagBitsPerSample, 1))
	for _, b := range d.ints(tagBitsPerSample) {
		if int(b) != bps {
			return nil, fmt.Errorf("%w: mixed bits per sample", ErrFormat)
		}
	}
	if bps%8 != 0 || bps > 64 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrFormat, bps)
	}
	format := int(d.int(tagSampleFormat, sampleUint))
	compression := int(d.int(tagCompression, compressionNone))
	predictor := int(d.int(tagPredictor, predictorNone))

	// chunky: all samples of a pixel interleaved; planar: one band per block set.
	planes, stride := 1, spp
	if d.int(tagPlanarConfiguration, 1) == 2 {
		planes, stride = spp, 1
	}

	l, err := d.layout(width, height, planes)
	if err != nil {
		return nil, err
	}

	r := New(width, height, d.transform())
	if s, ok := d.ascii(tagGDALNoData); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			r.NoData, r.HasNoData = v, true
		}
	}

	bytesPerSample := bps / 8
	rowBytes := l.blockW * stride * bytesPerSample
	for by := range l.down {
		for bx := range l.across {
			i := by*l.across + bx
			rows := l.blockH
			if !l.tiled {
				rows = min(l.blockH, height-by*l.blockH)
			}

			block, err := d.inflate(compression, l.offsets[i], l.counts[i], rowBytes*rows)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}

			order := d.order
			for y := range rows {
				row := block[y*rowBytes : (y+1)*rowBytes]
				switch predictor {
				case predictorNone:
				case predictorHorizontal:
					undoHorizontal(row, stride, bytesPerSample, d.order)
				case predictorFloat:
					undoFloat(row, stride, bytesPerSample)
					order = binary.BigEndian
				default:
					return nil, fmt.Errorf("%w: predictor %d", ErrFormat, predictor)
				}

				py := by*l.blockH + y
				if py >= height {
					break
				}
				for x := range l.blockW {
					px := bx*l.blockW + x
					if px >= width {
						break
					}
					off := x * stride * bytesPerSample
					v, err := sample(row[off:off+bytesPerSample], format, order)
					if err != nil {
						return nil, err
					}
					r.Set(px, py, v)
				}
			}
		}
	}
	return r, nil
}

// inflate returns at least want decompressed bytes of one block.
func (d *decoder) inflate(compression int, off, count uint64, want int) ([]byte, error) {
	if off+count > uint64(len(d.buf)) {
		return nil, fmt.Errorf("%w: block data out of range", ErrFormat)
	}
	raw := d.buf[off : off+count]

	var out []byte
	switch compression {
	case compressionNone:
		out = raw
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("lzw: %w", err)
		}
		out = b
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		defer zr.Close()
		b, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		out = b
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrFormat, compression)
	}

	if len(out) < want {
		return nil, fmt.Errorf("%w: block has %d bytes, want %d", ErrFormat, len(out), want)
	}
	if compression == compressionNone {
		// Predictors decode in place; never touch the source buffer.
		out = bytes.Clone(out[:want])
	}
	return out, nil
}

// transform derives the affine transform from the GeoTIFF model tags. An
// image without them gets the identity transform.
func (d *decoder) transform() Transform {
	if m := d.floats(tagModelTransformation); len(m) >= 16 {
		return Transform{m[3], m[0], m[1], m[7], m[4], m[5]}
	}
	scale := d.floats(tagModelPixelScale)
	tie := d.floats(tagModelTiepoint)
	if len(scale) >= 2 && len(tie) >= 6 {
		sx, sy := scale[0], scale[1]
		i, j, x, y := tie[0], tie[1], tie[3], tie[4]
		return Transform{x - i*sx, sx, 0, y + j*sy, 0, -sy}
	}
	return Transform{0, 1, 0, 0, 0, 1}
}

// undoHorizontal reverses TIFF predictor 2 on one row.
func undoHorizontal(row []byte, stride, size int, order binary.ByteOrder) {
	n := len(row) / size
	for i := stride; i < n; i++ {
		cur, prev := row[i*size:(i+1)*size], row[(i-stride)*size:(i-stride+1)*size]
		switch size {
		case 1:
			cur[0] += prev[0]
		case 2:
			order.PutUint16(cur, order.Uint16(cur)+order.Uint16(prev))
		case 4:
			order.PutUint32(cur, order.Uint32(cur)+order.Uint32(prev))
		case 8:
			order.PutUint64(cur, order.Uint64(cur)+order.Uint64(prev))
		}
	}
}

// undoFloat reverses TIFF predictor 3 on one row. The row is byte-differenced
// and then stored as byte planes, most significant first; the result is left
// big-endian.
func undoFloat(row []byte, stride, size int) {
	for i := stride; i < len(row); i++ {
		row[i] += row[i-stride]
	}
	tmp := bytes.Clone(row)
	n := len(row) / size
	for i := range n {
		for b := range size {
			row[i*size+b] = tmp[b*n+i]
		}
	}
}

func sample(b []byte, format int, order binary.ByteOrder) (float64, error) {
	switch format {
	case sampleUint:
		switch len(b) {
		case 1:
			return float64(b[0]), nil
		case 2:
			return float64(order.Uint16(b)), nil
		case 4:
			return float64(order.Uint32(b)), nil
		case 8:
			return float64(order.Uint64(b)), nil
		}
	case sampleInt:
		switch len(b) {
		case 1:
			return float64(int8(b[0])), nil
		case 2:
			return float64(int16(order.Uint16(b))), nil
		case 4:
			return float64(int32(order.Uint32(b))), nil
		case 8:
			return float64(int64(order.Uint64(b))), nil
		}
	case sampleFloat:
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(order.Uint32(b))), nil
		case 8:
			return math.Float64frombits(order.Uint64(b)), nil
		}
	}
	return 0, fmt.Errorf("%w: sample format %d with %d bytes", ErrFormat, format, len(b))
}
