package processor

import (
	"time"

	"github.com/gimi-testbed/gimi-ows/utils"
)

type ConfigPayLoad struct {
	NameSpaces    []string
	BandExpr      *utils.BandExpressions
	ScaleParams   utils.ScaleParams
	Palette       *utils.Palette
	ZoomLimit     float64
	GrpcConcLimit int
}

type GeoTileRequest struct {
	ConfigPayLoad
	Collection    string
	Path          string
	CRS           string
	BBox          []float64
	Height, Width int
	NoData        float64
	StartTime     *time.Time
	EndTime       *time.Time
}

// GeoTileGranule is one image item of one GIMI file, scheduled for
// decoding onto the request window. Path "NULL" marks the synthetic
// EmptyTile and OutOfZoom granules which skip the decode step.
type GeoTileGranule struct {
	ConfigPayLoad
	Path          string
	ItemID        uint32
	Codec         string
	CodecConfig   []byte
	Extents       []uint64
	Geot          []float64
	CRS           string
	BBox          []float64
	Height, Width int
	NameSpace     string
	Band          int32
	RasterType    string
	NoData        float64
	TimeStamp     time.Time
}

type FlexRaster struct {
	ConfigPayLoad
	Data          []byte
	Height, Width int
	Type          string
	NoData        float64
	NameSpace     string
	TimeStamp     time.Time
}

// BBox2Geot returns the GDAL style geotransform of a bbox rendered
// onto a width x height window.
func BBox2Geot(width, height int, bbox []float64) []float64 {
	return []float64{bbox[0], (bbox[2] - bbox[0]) / float64(width), 0, bbox[3], 0, (bbox[1] - bbox[3]) / float64(height)}
}
