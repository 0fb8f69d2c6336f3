package extractor

import "time"

// Granule is the catalogue record of one decodable image item. The
// metadata API ingests these verbatim.
type Granule struct {
	Path         string     `json:"path"`
	ItemID       uint32     `json:"item_id"`
	Codec        string     `json:"codec"`
	CodecConfig  []byte     `json:"codec_config,omitempty"`
	Extents      []uint64   `json:"extents,omitempty"`
	ArrayType    string     `json:"array_type"`
	NBands       int        `json:"n_bands"`
	GeoTransform []float64  `json:"geo_transform"`
	BBox         []float64  `json:"bbox"`
	NoData       *float64   `json:"no_data,omitempty"`
	TimeStamp    *time.Time `json:"timestamp,omitempty"`
	Title        string     `json:"title,omitempty"`
}

type GIMIFile struct {
	FileName string     `json:"filename,omitempty"`
	Brand    string     `json:"file_type"`
	Posix    *PosixInfo `json:"posix,omitempty"`
	Granules []*Granule `json:"gimi"`
}

type PosixInfo struct {
	FilePath string    `json:"file_path"`
	INode    uint64    `json:"inode"`
	Size     int64     `json:"size"`
	MTime    time.Time `json:"mtime"`
	CTime    time.Time `json:"ctime"`
	ID       string    `json:"id"`
}
