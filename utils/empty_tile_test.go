package utils

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestGetEmptyTile(t *testing.T) {
	out, err := GetEmptyTile(TileSize, TileSize)
	if err != nil {
		t.Fatalf("empty tile test failed, %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("empty tile decode test failed, %v", err)
	}
	if img.Bounds().Dx() != TileSize || img.Bounds().Dy() != TileSize {
		t.Errorf("empty tile size test failed, actual %v", img.Bounds())
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("empty tile transparency test failed, actual alpha %d", a)
	}
}

func TestGetWatermarkTile(t *testing.T) {
	legend := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range legend.Pix {
		legend.Pix[i] = 255
	}

	legendFile := filepath.Join(t.TempDir(), "zoom.png")
	f, err := os.Create(legendFile)
	if err != nil {
		t.Fatalf("watermark tile test failed, %v", err)
	}
	if err := png.Encode(f, legend); err != nil {
		t.Fatalf("watermark tile test failed, %v", err)
	}
	f.Close()

	out, err := GetWatermarkTile(legendFile, TileSize, TileSize)
	if err != nil {
		t.Fatalf("watermark tile test failed, %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("watermark tile decode test failed, %v", err)
	}
	if img.Bounds().Dx() != TileSize || img.Bounds().Dy() != TileSize {
		t.Errorf("watermark tile size test failed, actual %v", img.Bounds())
	}
	if r, _, _, a := img.At(0, 0).RGBA(); r == 0 || a == 0 {
		t.Errorf("watermark tile pixel test failed, actual %v", img.At(0, 0))
	}

	if _, err := GetWatermarkTile(filepath.Join(t.TempDir(), "missing.png"), TileSize, TileSize); err == nil {
		t.Errorf("watermark tile missing legend test failed, expecting error")
	}
}
