package extractor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gimi-testbed/gimi-ows/gimi"
)

// ExtractGIMIInfo reads a GIMI container and produces its catalogue
// record: one granule per decodable image item, georeferenced from the
// embedded KLV provenance.
func ExtractGIMIInfo(path string) (*GIMIFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := gimi.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", absPath, err)
	}
	defer f.Close()

	meta, err := f.Metadata()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", absPath, err)
	}

	out := &GIMIFile{
		FileName: absPath,
		Brand:    f.Brand,
		Granules: make([]*Granule, 0, len(meta.Images)),
	}

	if fStat, err := os.Stat(absPath); err == nil {
		out.Posix = GetPosixInfo(absPath, fStat)
	}

	for _, img := range meta.Images {
		item := f.Item(img.ItemID)
		if item == nil {
			continue
		}

		g := &Granule{
			Path:         absPath,
			ItemID:       img.ItemID,
			Codec:        img.Codec,
			ArrayType:    img.Bands[1].DataType,
			NBands:       len(img.Bands),
			GeoTransform: img.GeoTransform[:],
			NoData:       img.Bands[1].NoData,
			TimeStamp:    img.BeginPosition,
			Title:        img.Title,
		}

		bbox := img.BBox()
		g.BBox = bbox[:]

		if cfg, ok := item.DecoderConfig(); ok {
			g.CodecConfig = cfg
		}

		// file resident items carry their byte ranges so decode
		// workers can seek straight to the payload
		if extents, err := f.ItemExtents(item); err == nil {
			for _, e := range extents {
				g.Extents = append(g.Extents, e.Offset, e.Length)
			}
		}

		out.Granules = append(out.Granules, g)
	}

	return out, nil
}
