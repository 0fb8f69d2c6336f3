package gimi

import (
	"fmt"
	"log"
	"time"
)

// BandData describes one raster band of a GIMI image item.
type BandData struct {
	Index    int    `json:"index"`
	DataType string `json:"data_type"`
	NoData   *float64 `json:"no_data_value"`
	Units    string `json:"units"`
}

// ImageMetadata is the georeferencing view of a single image item.
// GeoTransform is in GDAL order: origin x, x resolution, 0, origin y,
// 0, y resolution.
type ImageMetadata struct {
	ItemID uint32
	Codec  string

	Width  int
	Height int
	Bands  map[int]*BandData

	Title         string
	BeginPosition *time.Time
	CRS           int

	UpperLeftLon  float64
	UpperLeftLat  float64
	LowerRightLon float64
	LowerRightLat float64
	XResolution   float64
	YResolution   float64
	GeoTransform  [6]float64
}

// BBox returns the image extent as [minx, miny, maxx, maxy].
func (im *ImageMetadata) BBox() [4]float64 {
	return [4]float64{im.UpperLeftLon, im.LowerRightLat, im.LowerRightLon, im.UpperLeftLat}
}

// Metadata is the full georeferencing view of a GIMI file.
type Metadata struct {
	Images []*ImageMetadata
}

// GetMetadata opens the GIMI file at path and assembles georeferencing
// metadata for every coded image item it carries.
func GetMetadata(path string) (*Metadata, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Metadata()
}

// Metadata assembles georeferencing metadata for every coded image item
// in the container. Each image item is paired with the KLV provenance
// item that describes it through a cdsc reference; an image with no
// usable corner points is skipped with a warning.
func (f *File) Metadata() (*Metadata, error) {
	meta := &Metadata{}

	for _, item := range f.Items {
		if item.Type != "hvc1" && item.Type != "unci" {
			continue
		}

		im, err := f.imageMetadata(item)
		if err != nil {
			log.Printf("gimi: skipping item %d: %v", item.ID, err)
			continue
		}
		meta.Images = append(meta.Images, im)
	}

	if len(meta.Images) == 0 {
		return nil, fmt.Errorf("no georeferenced image items found")
	}
	return meta, nil
}

func (f *File) imageMetadata(item *Item) (*ImageMetadata, error) {
	width, height, ok := item.Ispe()
	if !ok {
		return nil, fmt.Errorf("no ispe property")
	}

	klv, err := f.provenance(item.ID)
	if err != nil {
		return nil, err
	}
	if !klv.HasCorners() {
		return nil, fmt.Errorf("provenance metadata has no corner points")
	}

	ul := klv.Corners[0]
	lr := klv.Corners[2]
	xRes := (lr.Lon - ul.Lon) / float64(width)
	yRes := (lr.Lat - ul.Lat) / float64(height)

	im := &ImageMetadata{
		ItemID:        item.ID,
		Codec:         item.Type,
		Width:         width,
		Height:        height,
		Bands:         imageBands(item),
		Title:         klv.Title,
		BeginPosition: klv.BeginPosition,
		CRS:           4326,
		UpperLeftLon:  ul.Lon,
		UpperLeftLat:  ul.Lat,
		LowerRightLon: lr.Lon,
		LowerRightLat: lr.Lat,
		XResolution:   xRes,
		YResolution:   yRes,
		GeoTransform:  [6]float64{ul.Lon, xRes, 0, ul.Lat, 0, yRes},
	}
	return im, nil
}

// provenance locates and decodes the KLV item describing imageID.
func (f *File) provenance(imageID uint32) (*KLVMetadata, error) {
	for _, item := range f.DescribingItems(imageID) {
		if item.Type != "mime" {
			continue
		}
		data, err := f.ItemPayload(item)
		if err != nil {
			return nil, fmt.Errorf("reading provenance item %d: %v", item.ID, err)
		}
		return DecodeKLV(data), nil
	}
	return nil, fmt.Errorf("no provenance item")
}

// imageBands derives band descriptors from the pixi property. Items
// without pixi are treated as a single 8-bit band. Band indexes are
// 1-based following raster conventions.
func imageBands(item *Item) map[int]*BandData {
	depths, ok := item.Pixi()
	if !ok || len(depths) == 0 {
		depths = []int{8}
	}

	bands := make(map[int]*BandData, len(depths))
	for i, depth := range depths {
		dtype := "Byte"
		if depth > 8 {
			dtype = "UInt16"
		}
		bands[i+1] = &BandData{Index: i + 1, DataType: dtype}
	}
	return bands
}
