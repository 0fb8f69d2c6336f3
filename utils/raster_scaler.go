package utils

import (
	"fmt"
)

// ScaleParams maps raster samples into the renderable byte range. A
// zero Scale auto-scales Clip to the top of the byte range.
type ScaleParams struct {
	Offset float64
	Scale  float64
	Clip   float64
}

// 0xFF marks transparent nodata samples in scaled output.
const scaledNoData = 0xFF

func scaleSample(value float64, params ScaleParams) uint8 {
	value += params.Offset
	if value > params.Clip {
		value = params.Clip
	}

	scale := params.Scale
	if scale == 0 {
		scale = 254.0 / params.Clip
	}

	value *= scale
	if value < 0 {
		value = 0
	}
	if value > 254 {
		value = 254
	}
	return uint8(value)
}

func scale(r Raster, params ScaleParams) (*ByteRaster, error) {
	switch t := r.(type) {
	case *ByteRaster:
		noData := uint8(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				t.Data[i] = scaledNoData
			} else {
				t.Data[i] = scaleSample(float64(value), params)
			}
		}
		return t, nil

	case *Int16Raster:
		out := &ByteRaster{NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height, NameSpace: t.NameSpace}
		noData := int16(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = scaledNoData
			} else {
				out.Data[i] = scaleSample(float64(value), params)
			}
		}
		return out, nil

	case *UInt16Raster:
		out := &ByteRaster{NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height, NameSpace: t.NameSpace}
		noData := uint16(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = scaledNoData
			} else {
				out.Data[i] = scaleSample(float64(value), params)
			}
		}
		return out, nil

	case *Float32Raster:
		out := &ByteRaster{NoData: t.NoData, Data: make([]uint8, t.Height*t.Width), Width: t.Width, Height: t.Height, NameSpace: t.NameSpace}
		noData := float32(t.NoData)
		for i, value := range t.Data {
			if value == noData {
				out.Data[i] = scaledNoData
			} else {
				out.Data[i] = scaleSample(float64(value), params)
			}
		}
		return out, nil

	default:
		return &ByteRaster{}, fmt.Errorf("Raster type not implemented")
	}
}

// Scale maps a set of band rasters to byte rasters for rendering.
func Scale(rs []Raster, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(rs))

	for i, r := range rs {
		br, err := scale(r, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}
