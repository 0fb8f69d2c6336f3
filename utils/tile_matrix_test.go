package utils

import (
	"math"
	"testing"
)

func TestWorldCRS84QuadBBox(t *testing.T) {
	tms, err := GetTileMatrixSet("WorldCRS84Quad")
	if err != nil {
		t.Fatalf("tile matrix set lookup failed, %v", err)
	}

	cols, rows := tms.MatrixSize(0)
	if cols != 2 || rows != 1 {
		t.Errorf("matrix size test failed, actual %dx%d", cols, rows)
	}

	bbox, err := tms.TileBBox(0, 0, 0)
	if err != nil {
		t.Fatalf("tile bbox test failed, %v", err)
	}
	exp := [4]float64{-180, -90, 0, 90}
	if bbox != exp {
		t.Errorf("tile bbox test failed, expecting %v, actual %v", exp, bbox)
	}

	bbox, _ = tms.TileBBox(1, 3, 1)
	exp = [4]float64{90, -90, 180, 0}
	if bbox != exp {
		t.Errorf("tile bbox test failed, expecting %v, actual %v", exp, bbox)
	}

	if tms.Resolution(0) != 180.0/256 {
		t.Errorf("resolution test failed, actual %v", tms.Resolution(0))
	}
}

func TestWebMercatorQuadBBox(t *testing.T) {
	tms, _ := GetTileMatrixSet("WebMercatorQuad")

	bbox, err := tms.TileBBoxCRS84(0, 0, 0)
	if err != nil {
		t.Fatalf("mercator bbox test failed, %v", err)
	}
	const eps = 1e-6
	if math.Abs(bbox[0]+180) > eps || math.Abs(bbox[2]-180) > eps {
		t.Errorf("mercator lon test failed, actual %v", bbox)
	}
	if math.Abs(bbox[3]-85.051128) > 1e-4 || math.Abs(bbox[1]+85.051128) > 1e-4 {
		t.Errorf("mercator lat test failed, actual %v", bbox)
	}

	// Row 0 is the northern hemisphere half at zoom 1.
	bbox, _ = tms.TileBBoxCRS84(1, 0, 0)
	if bbox[1] < -eps || bbox[3] < 85 {
		t.Errorf("mercator row order test failed, actual %v", bbox)
	}
}

func TestTileRange(t *testing.T) {
	tms, _ := GetTileMatrixSet("WorldCRS84Quad")

	x0, y0, x1, y1, ok := tms.TileRange([4]float64{-180, -90, 180, 90}, 1)
	if !ok || x0 != 0 || y0 != 0 || x1 != 3 || y1 != 1 {
		t.Errorf("full range test failed, actual %d,%d,%d,%d ok=%v", x0, y0, x1, y1, ok)
	}

	x0, y0, x1, y1, ok = tms.TileRange([4]float64{10, 10, 20, 20}, 2)
	if !ok {
		t.Fatalf("sub range test failed, expecting ok")
	}
	bbox, _ := tms.TileBBox(2, x0, y0)
	if bbox[0] > 10 || bbox[3] < 20 {
		t.Errorf("sub range test failed, first tile %v does not cover corner", bbox)
	}
	if x1 < x0 || y1 < y0 {
		t.Errorf("sub range ordering test failed, actual %d,%d,%d,%d", x0, y0, x1, y1)
	}

	_, _, _, _, ok = tms.TileRange([4]float64{200, 10, 210, 20}, 2)
	if ok {
		t.Errorf("disjoint range test failed, expecting not ok")
	}
}

func TestCheckTile(t *testing.T) {
	tms, _ := GetTileMatrixSet("WebMercatorQuad")
	if err := tms.CheckTile(2, 3, 3); err != nil {
		t.Errorf("valid tile test failed, %v", err)
	}
	if err := tms.CheckTile(2, 4, 0); err == nil {
		t.Errorf("out of range tile test failed, expecting error")
	}
	if err := tms.CheckTile(-1, 0, 0); err == nil {
		t.Errorf("negative zoom test failed, expecting error")
	}
}

func TestUnknownScheme(t *testing.T) {
	if _, err := GetTileMatrixSet("EuropeanETRS89_LAEAQuad"); err == nil {
		t.Errorf("unknown scheme test failed, expecting error")
	}
}
