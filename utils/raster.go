package utils

import (
	"fmt"
)

// Raster is a single-band raster of one of the supported sample types.
type Raster interface {
	GetNoData() float64
	Dims() (width, height int)
}

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	NoData        float64
	NameSpace     string
}

func (br *ByteRaster) GetNoData() float64 {
	return br.NoData
}

func (br *ByteRaster) Dims() (int, int) {
	return br.Width, br.Height
}

type UInt16Raster struct {
	Data          []uint16
	Height, Width int
	NoData        float64
	NameSpace     string
}

func (u16 *UInt16Raster) GetNoData() float64 {
	return u16.NoData
}

func (u16 *UInt16Raster) Dims() (int, int) {
	return u16.Width, u16.Height
}

type Int16Raster struct {
	Data          []int16
	Height, Width int
	NoData        float64
	NameSpace     string
}

func (s16 *Int16Raster) GetNoData() float64 {
	return s16.NoData
}

func (s16 *Int16Raster) Dims() (int, int) {
	return s16.Width, s16.Height
}

type Float32Raster struct {
	Data          []float32
	Height, Width int
	NoData        float64
	NameSpace     string
}

func (f32 *Float32Raster) GetNoData() float64 {
	return f32.NoData
}

func (f32 *Float32Raster) Dims() (int, int) {
	return f32.Width, f32.Height
}

// RasterSampleSize returns the bytes per sample of a raster type.
func RasterSampleSize(rasterType string) (int, error) {
	switch rasterType {
	case "Byte":
		return 1, nil
	case "Int16", "UInt16":
		return 2, nil
	case "Float32":
		return 4, nil
	}
	return 0, fmt.Errorf("raster type '%s' not implemented", rasterType)
}
