package decodeservice

import (
	"fmt"
	"math"

	"github.com/gimi-testbed/gimi-ows/gimi"
)

// DecodeNative decodes an uncompressed image item in process and
// resamples it onto the requested output window. HEVC items go through
// the codec worker pool instead.
func DecodeNative(in *GeoDecodeGranule) *Result {
	f, err := gimi.Open(in.Path)
	if err != nil {
		return &Result{Error: fmt.Sprintf("open %s: %v", in.Path, err)}
	}
	defer f.Close()

	item := f.Item(in.ItemId)
	if item == nil {
		return &Result{Error: fmt.Sprintf("%s: no item %d", in.Path, in.ItemId)}
	}

	srcWidth, srcHeight, ok := item.Ispe()
	if !ok {
		return &Result{Error: fmt.Sprintf("%s: item %d has no spatial extents", in.Path, in.ItemId)}
	}

	planes, err := f.DecodeUnci(item)
	if err != nil {
		return &Result{Error: fmt.Sprintf("decode item %d: %v", in.ItemId, err)}
	}

	if len(in.Geot) != 6 || len(in.OutGeot) != 6 {
		return &Result{Error: "request must carry source and output geotransforms"}
	}
	if in.Width <= 0 || in.Height <= 0 {
		return &Result{Error: fmt.Sprintf("invalid output window %dx%d", in.Width, in.Height)}
	}
	if in.Geot[1] == 0 || in.Geot[5] == 0 {
		return &Result{Error: "source geotransform has zero pixel size"}
	}

	bands := in.Bands
	if len(bands) == 0 {
		for ib := range planes {
			bands = append(bands, int32(ib+1))
		}
	}

	width := int(in.Width)
	height := int(in.Height)
	noData := byte(in.NoData)

	out := make([]byte, width*height*len(bands))
	var bytesRead int64

	for ib, band := range bands {
		if band < 1 || int(band) > len(planes) {
			return &Result{Error: fmt.Sprintf("band %d out of range, item has %d bands", band, len(planes))}
		}
		plane := planes[band-1]
		bytesRead += int64(len(plane))

		dst := out[ib*width*height : (ib+1)*width*height]
		for y := 0; y < height; y++ {
			gy := in.OutGeot[3] + (float64(y)+0.5)*in.OutGeot[5]
			sy := int(math.Floor((gy - in.Geot[3]) / in.Geot[5]))
			for x := 0; x < width; x++ {
				gx := in.OutGeot[0] + (float64(x)+0.5)*in.OutGeot[1]
				sx := int(math.Floor((gx - in.Geot[0]) / in.Geot[1]))

				v := noData
				if sx >= 0 && sx < srcWidth && sy >= 0 && sy < srcHeight {
					v = plane[sy*srcWidth+sx]
				}
				dst[y*width+x] = v
			}
		}
	}

	return &Result{
		Raster: &Raster{
			Data:       out,
			RasterType: "Byte",
			NoData:     in.NoData,
			Width:      in.Width,
			Height:     in.Height,
		},
		Error:     "OK",
		BytesRead: bytesRead,
	}
}
