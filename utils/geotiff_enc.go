package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// TIFF tag IDs used by the encoder.
const (
	tagImageWidth        = 256
	tagImageLength       = 257
	tagBitsPerSample     = 258
	tagCompression       = 259
	tagPhotometric       = 262
	tagStripOffsets      = 273
	tagSamplesPerPixel   = 277
	tagRowsPerStrip      = 278
	tagStripByteCounts   = 279
	tagPlanarConfig      = 284
	tagSampleFormat      = 339
	tagModelPixelScale   = 33550
	tagModelTiepoint     = 33922
	tagGeoKeyDirectory   = 34735
	tagGDALNoData        = 42113
)

const (
	fieldTypeByte   = 1
	fieldTypeASCII  = 2
	fieldTypeShort  = 3
	fieldTypeLong   = 4
	fieldTypeDouble = 12
)

type tiffField struct {
	tag      uint16
	typ      uint16
	count    uint32
	shorts   []uint16
	longs    []uint32
	doubles  []float64
	ascii    string
}

func (f *tiffField) byteSize() int {
	switch f.typ {
	case fieldTypeASCII:
		return len(f.ascii) + 1
	case fieldTypeShort:
		return 2 * len(f.shorts)
	case fieldTypeLong:
		return 4 * len(f.longs)
	case fieldTypeDouble:
		return 8 * len(f.doubles)
	}
	return 0
}

func (f *tiffField) encodeValue(buf *bytes.Buffer) {
	switch f.typ {
	case fieldTypeASCII:
		buf.WriteString(f.ascii)
		buf.WriteByte(0)
	case fieldTypeShort:
		for _, v := range f.shorts {
			binary.Write(buf, binary.LittleEndian, v)
		}
	case fieldTypeLong:
		for _, v := range f.longs {
			binary.Write(buf, binary.LittleEndian, v)
		}
	case fieldTypeDouble:
		for _, v := range f.doubles {
			binary.Write(buf, binary.LittleEndian, v)
		}
	}
}

func sampleFormatCode(rasterType string) uint16 {
	switch rasterType {
	case "Int16":
		return 2
	case "Float32":
		return 3
	}
	return 1
}

func rasterSampleBytes(r Raster) []byte {
	buf := new(bytes.Buffer)
	switch t := r.(type) {
	case *ByteRaster:
		buf.Write(t.Data)
	case *Int16Raster:
		binary.Write(buf, binary.LittleEndian, t.Data)
	case *UInt16Raster:
		binary.Write(buf, binary.LittleEndian, t.Data)
	case *Float32Raster:
		binary.Write(buf, binary.LittleEndian, t.Data)
	}
	return buf.Bytes()
}

// EncodeGeoTIFF writes band rasters into an uncompressed planar GeoTIFF
// with geographic referencing. geot is in GDAL order. Only EPSG:4326 is
// emitted as a geographic key directory; other codes are rejected.
func EncodeGeoTIFF(rs []Raster, geot []float64, epsg int) ([]byte, error) {
	width, height, rasterType, err := ValidateRasterSlice(rs)
	if err != nil {
		return nil, fmt.Errorf("Error validating raster: %v", err)
	}
	if len(geot) != 6 {
		return nil, fmt.Errorf("geotransform must have 6 values, got %d", len(geot))
	}
	if epsg != 4326 {
		return nil, fmt.Errorf("GeoTIFF output supports EPSG:4326 only, got %d", epsg)
	}

	sampleSize, err := RasterSampleSize(rasterType)
	if err != nil {
		return nil, err
	}

	nBands := len(rs)
	stripSize := uint32(width * height * sampleSize)

	bits := make([]uint16, nBands)
	formats := make([]uint16, nBands)
	for i := range bits {
		bits[i] = uint16(8 * sampleSize)
		formats[i] = sampleFormatCode(rasterType)
	}

	// GeoTIFF key directory: geographic model, pixel-is-area, WGS84.
	geoKeys := []uint16{
		1, 1, 0, 4,
		1024, 0, 1, 2,
		1025, 0, 1, 1,
		2048, 0, 1, uint16(epsg),
		2054, 0, 1, 9102,
	}

	noData := rs[0].GetNoData()

	fields := []*tiffField{
		{tag: tagImageWidth, typ: fieldTypeLong, count: 1, longs: []uint32{uint32(width)}},
		{tag: tagImageLength, typ: fieldTypeLong, count: 1, longs: []uint32{uint32(height)}},
		{tag: tagBitsPerSample, typ: fieldTypeShort, count: uint32(nBands), shorts: bits},
		{tag: tagCompression, typ: fieldTypeShort, count: 1, shorts: []uint16{1}},
		{tag: tagPhotometric, typ: fieldTypeShort, count: 1, shorts: []uint16{1}},
		{tag: tagStripOffsets, typ: fieldTypeLong, count: uint32(nBands), longs: make([]uint32, nBands)},
		{tag: tagSamplesPerPixel, typ: fieldTypeShort, count: 1, shorts: []uint16{uint16(nBands)}},
		{tag: tagRowsPerStrip, typ: fieldTypeLong, count: 1, longs: []uint32{uint32(height)}},
		{tag: tagStripByteCounts, typ: fieldTypeLong, count: uint32(nBands), longs: make([]uint32, nBands)},
		{tag: tagPlanarConfig, typ: fieldTypeShort, count: 1, shorts: []uint16{2}},
		{tag: tagSampleFormat, typ: fieldTypeShort, count: uint32(nBands), shorts: formats},
		{tag: tagModelPixelScale, typ: fieldTypeDouble, count: 3,
			doubles: []float64{geot[1], math.Abs(geot[5]), 0}},
		{tag: tagModelTiepoint, typ: fieldTypeDouble, count: 6,
			doubles: []float64{0, 0, 0, geot[0], geot[3], 0}},
		{tag: tagGeoKeyDirectory, typ: fieldTypeShort, count: uint32(len(geoKeys)), shorts: geoKeys},
		{tag: tagGDALNoData, typ: fieldTypeASCII, ascii: fmt.Sprintf("%g", noData)},
	}
	for _, f := range fields {
		if f.typ == fieldTypeASCII {
			f.count = uint32(len(f.ascii) + 1)
		}
	}

	// Layout: 8 byte header, IFD, out-of-line values, strip data.
	ifdOffset := uint32(8)
	ifdSize := uint32(2 + 12*len(fields) + 4)
	valueOffset := ifdOffset + ifdSize
	for _, f := range fields {
		if f.byteSize() > 4 {
			valueOffset += uint32(f.byteSize())
		}
	}
	dataOffset := valueOffset

	stripOffsets := fields[5]
	stripCounts := fields[8]
	for i := 0; i < nBands; i++ {
		stripOffsets.longs[i] = dataOffset + uint32(i)*stripSize
		stripCounts.longs[i] = stripSize
	}

	out := new(bytes.Buffer)
	out.WriteString("II")
	binary.Write(out, binary.LittleEndian, uint16(42))
	binary.Write(out, binary.LittleEndian, ifdOffset)

	binary.Write(out, binary.LittleEndian, uint16(len(fields)))
	extra := new(bytes.Buffer)
	extraOffset := ifdOffset + ifdSize
	for _, f := range fields {
		binary.Write(out, binary.LittleEndian, f.tag)
		binary.Write(out, binary.LittleEndian, f.typ)
		binary.Write(out, binary.LittleEndian, f.count)
		if f.byteSize() > 4 {
			binary.Write(out, binary.LittleEndian, extraOffset+uint32(extra.Len()))
			f.encodeValue(extra)
		} else {
			inline := new(bytes.Buffer)
			f.encodeValue(inline)
			val := inline.Bytes()
			for len(val) < 4 {
				val = append(val, 0)
			}
			out.Write(val)
		}
	}
	binary.Write(out, binary.LittleEndian, uint32(0)) // next IFD
	out.Write(extra.Bytes())

	for _, r := range rs {
		samples := rasterSampleBytes(r)
		if len(samples) != int(stripSize) {
			return nil, fmt.Errorf("band has %d bytes, want %d", len(samples), stripSize)
		}
		out.Write(samples)
	}

	return out.Bytes(), nil
}
