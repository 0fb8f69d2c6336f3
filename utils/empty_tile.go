package utils

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"os"
)

// GetEmptyTile renders a fully transparent PNG of the given size. Out
// of bounds tile requests serve this so slippy-map clients keep
// panning without errors.
func GetEmptyTile(height, width int) ([]byte, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	buf := new(bytes.Buffer)
	err := png.Encode(buf, canvas)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GetWatermarkTile tiles a source image across a canvas of the given
// size, used for zoom-limit placeholder tiles backed by a legend file.
func GetWatermarkTile(imageFileName string, height, width int) ([]byte, error) {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	infile, err := os.Open(imageFileName)
	if err != nil {
		return nil, err
	}
	defer infile.Close()

	// Decode will figure out what type of image is in the file on its own.
	// We just have to be sure all the image packages we want are imported.
	tile, _, err := image.Decode(infile)
	if err != nil {
		return nil, err
	}

	for x := 0; x < width; x += TileSize {
		for y := 0; y < height; y += TileSize {
			draw.Draw(canvas, image.Rect(x, y, x+TileSize, y+TileSize), tile, image.ZP, draw.Src)
		}
	}

	buf := new(bytes.Buffer)
	err = png.Encode(buf, canvas)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), err
}
