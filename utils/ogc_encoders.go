package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"
)

const EmptyTileNS = "EmptyTile"

func isEmptyTile(namespace string) bool {
	return len(namespace) >= len(EmptyTileNS) && namespace[:len(EmptyTileNS)] == EmptyTileNS
}

func renderRGBA(br []*ByteRaster, palette *Palette) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, br[0].Width, br[0].Height))

	switch len(br) {
	case 1:
		if palette != nil {
			plt, err := GradientRGBAPalette(palette)
			if err != nil {
				return nil, err
			}

			for x := 0; x < br[0].Width; x++ {
				for y := 0; y < br[0].Height; y++ {
					if br[0].Data[y*br[0].Width+x] != 0xFF {
						canvas.Set(x, y, plt[br[0].Data[y*br[0].Width+x]])
					}
				}
			}
		} else {
			var start int
			for i := 0; i < br[0].Width*br[0].Height; i++ {
				val := br[0].Data[i]
				if val != 0xFF {
					start = i * 4
					canvas.Pix[start] = val
					canvas.Pix[start+1] = val
					canvas.Pix[start+2] = val
					canvas.Pix[start+3] = 0xff
				}
			}
		}

	case 3:
		rasterR := br[0]
		rasterG := br[1]
		rasterB := br[2]

		if rasterR == nil || rasterG == nil || rasterB == nil {
			return nil, fmt.Errorf("At least one of the bands is nil")
		}

		var start int
		for i := 0; i < rasterR.Width*rasterR.Height; i++ {
			if rasterR.Data[i] != 0xFF || rasterG.Data[i] != 0xFF || rasterB.Data[i] != 0xFF {
				start = i * 4
				canvas.Pix[start] = rasterR.Data[i]
				canvas.Pix[start+1] = rasterG.Data[i]
				canvas.Pix[start+2] = rasterB.Data[i]
				canvas.Pix[start+3] = 0xff
			}
		}

	default:
		return nil, fmt.Errorf("Cannot encode other than 1 or 3 namespaces into an image: Received %d", len(br))
	}

	return canvas, nil
}

// EncodePNG renders 1 or 3 scaled byte rasters into a PNG. Nodata
// samples (0xFF) stay transparent.
func EncodePNG(br []*ByteRaster, palette *Palette) ([]byte, error) {
	canvas, err := renderRGBA(br, palette)
	if err != nil {
		return []byte{}, err
	}

	buf := new(bytes.Buffer)
	err = png.Encode(buf, canvas)
	return buf.Bytes(), err
}

// EncodeJPEG renders 1 or 3 scaled byte rasters into a JPEG. JPEG has
// no alpha channel so nodata samples come out black.
func EncodeJPEG(br []*ByteRaster, palette *Palette) ([]byte, error) {
	canvas, err := renderRGBA(br, palette)
	if err != nil {
		return []byte{}, err
	}

	buf := new(bytes.Buffer)
	err = jpeg.Encode(buf, canvas, &jpeg.Options{Quality: 85})
	return buf.Bytes(), err
}

func checkRaster(rasterType string, width, height int, t Raster, tType string) (string, int, int, error) {
	var err error
	w, h := t.Dims()

	if rasterType == "" {
		rasterType = tType
	} else if rasterType != tType {
		err = fmt.Errorf("Mixed types")
	}

	if width == 0 {
		width = w
	} else if width != w {
		err = fmt.Errorf("Mixed width sizes")
	}

	if height == 0 {
		height = h
	} else if height != h {
		err = fmt.Errorf("Mixed height sizes")
	}

	return rasterType, width, height, err
}

// ValidateRasterSlice checks the rasters share a type and shape and
// returns them.
func ValidateRasterSlice(rs []Raster) (int, int, string, error) {
	var width, height int
	var rasterType string
	var err error

	for _, r := range rs {
		switch t := r.(type) {
		case *ByteRaster:
			rasterType, width, height, err = checkRaster(rasterType, width, height, t, "Byte")
		case *Int16Raster:
			rasterType, width, height, err = checkRaster(rasterType, width, height, t, "Int16")
		case *UInt16Raster:
			rasterType, width, height, err = checkRaster(rasterType, width, height, t, "UInt16")
		case *Float32Raster:
			rasterType, width, height, err = checkRaster(rasterType, width, height, t, "Float32")
		default:
			err = fmt.Errorf("Raster type not implemented")
		}
		if err != nil {
			return width, height, rasterType, err
		}
	}

	if width <= 0 || height <= 0 {
		err = fmt.Errorf("data unavailable")
	}

	return width, height, rasterType, err
}

// ExtractEPSGCode parses an SRS string such as EPSG:4326 and gets
// the EPSG code
func ExtractEPSGCode(srs string) (int, error) {
	parts := strings.Split(srs, ":")
	return strconv.Atoi(parts[len(parts)-1])
}
