package utils

import (
	"fmt"
	"math"
)

const TileSize = 256

const earthRadius = 6378137.0
const mercatorExtent = math.Pi * earthRadius

// TileMatrixSet is a quad-tree tiling scheme. Row 0 is the northernmost
// row. Extent is in the scheme CRS as minx, miny, maxx, maxy.
type TileMatrixSet struct {
	ID            string
	CRS           string
	EPSG          int
	Extent        [4]float64
	MatrixWidth0  int
	MatrixHeight0 int
}

var tileMatrixSets = map[string]*TileMatrixSet{
	"WorldCRS84Quad": {
		ID:            "WorldCRS84Quad",
		CRS:           "http://www.opengis.net/def/crs/OGC/1.3/CRS84",
		EPSG:          4326,
		Extent:        [4]float64{-180, -90, 180, 90},
		MatrixWidth0:  2,
		MatrixHeight0: 1,
	},
	"WebMercatorQuad": {
		ID:            "WebMercatorQuad",
		CRS:           "http://www.opengis.net/def/crs/EPSG/0/3857",
		EPSG:          3857,
		Extent:        [4]float64{-mercatorExtent, -mercatorExtent, mercatorExtent, mercatorExtent},
		MatrixWidth0:  1,
		MatrixHeight0: 1,
	},
}

// GetTileMatrixSet looks up a tiling scheme by identifier.
func GetTileMatrixSet(id string) (*TileMatrixSet, error) {
	tms, ok := tileMatrixSets[id]
	if !ok {
		return nil, fmt.Errorf("unknown tile matrix set '%s'", id)
	}
	return tms, nil
}

// TileMatrixSetIDs returns the identifiers of the supported schemes.
func TileMatrixSetIDs() []string {
	return []string{"WorldCRS84Quad", "WebMercatorQuad"}
}

// MatrixSize returns the number of tile columns and rows at zoom z.
func (tms *TileMatrixSet) MatrixSize(z int) (int, int) {
	return tms.MatrixWidth0 << uint(z), tms.MatrixHeight0 << uint(z)
}

// Resolution returns the scheme CRS units per pixel at zoom z.
func (tms *TileMatrixSet) Resolution(z int) float64 {
	cols, _ := tms.MatrixSize(z)
	return (tms.Extent[2] - tms.Extent[0]) / float64(cols) / TileSize
}

// CheckTile validates tile indices at zoom z.
func (tms *TileMatrixSet) CheckTile(z, x, y int) error {
	if z < 0 || z > 30 {
		return fmt.Errorf("%s: zoom %d out of range", tms.ID, z)
	}
	cols, rows := tms.MatrixSize(z)
	if x < 0 || x >= cols || y < 0 || y >= rows {
		return fmt.Errorf("%s: tile %d/%d/%d out of range %dx%d", tms.ID, z, x, y, cols, rows)
	}
	return nil
}

// TileBBox returns the tile extent in the scheme CRS.
func (tms *TileMatrixSet) TileBBox(z, x, y int) ([4]float64, error) {
	if err := tms.CheckTile(z, x, y); err != nil {
		return [4]float64{}, err
	}
	cols, rows := tms.MatrixSize(z)
	dx := (tms.Extent[2] - tms.Extent[0]) / float64(cols)
	dy := (tms.Extent[3] - tms.Extent[1]) / float64(rows)

	minx := tms.Extent[0] + float64(x)*dx
	maxy := tms.Extent[3] - float64(y)*dy
	return [4]float64{minx, maxy - dy, minx + dx, maxy}, nil
}

// TileBBoxCRS84 returns the tile extent in geographic coordinates.
func (tms *TileMatrixSet) TileBBoxCRS84(z, x, y int) ([4]float64, error) {
	bbox, err := tms.TileBBox(z, x, y)
	if err != nil {
		return bbox, err
	}
	if tms.EPSG == 4326 {
		return bbox, nil
	}
	return [4]float64{
		mercatorToLon(bbox[0]), mercatorToLat(bbox[1]),
		mercatorToLon(bbox[2]), mercatorToLat(bbox[3]),
	}, nil
}

// TileRange returns the inclusive tile index range at zoom z covering a
// geographic bbox. An empty intersection returns ok false.
func (tms *TileMatrixSet) TileRange(bbox [4]float64, z int) (x0, y0, x1, y1 int, ok bool) {
	ext := bbox
	if tms.EPSG == 3857 {
		ext = [4]float64{
			lonToMercator(bbox[0]), latToMercator(bbox[1]),
			lonToMercator(bbox[2]), latToMercator(bbox[3]),
		}
	}

	if ext[0] > tms.Extent[2] || ext[2] < tms.Extent[0] || ext[1] > tms.Extent[3] || ext[3] < tms.Extent[1] {
		return 0, 0, 0, 0, false
	}

	cols, rows := tms.MatrixSize(z)
	dx := (tms.Extent[2] - tms.Extent[0]) / float64(cols)
	dy := (tms.Extent[3] - tms.Extent[1]) / float64(rows)

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	x0 = clamp(int(math.Floor((ext[0]-tms.Extent[0])/dx)), 0, cols-1)
	x1 = clamp(int(math.Ceil((ext[2]-tms.Extent[0])/dx))-1, 0, cols-1)
	y0 = clamp(int(math.Floor((tms.Extent[3]-ext[3])/dy)), 0, rows-1)
	y1 = clamp(int(math.Ceil((tms.Extent[3]-ext[1])/dy))-1, 0, rows-1)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return x0, y0, x1, y1, true
}

const maxMercatorLat = 85.06

func lonToMercator(lon float64) float64 {
	return earthRadius * lon * math.Pi / 180
}

func latToMercator(lat float64) float64 {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	}
	if lat < -maxMercatorLat {
		lat = -maxMercatorLat
	}
	return earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
}

func mercatorToLon(x float64) float64 {
	return x / earthRadius * 180 / math.Pi
}

func mercatorToLat(y float64) float64 {
	return 2*math.Atan(math.Exp(y/earthRadius))*180/math.Pi - 90
}
