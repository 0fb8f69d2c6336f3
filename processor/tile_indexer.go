package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gimi-testbed/gimi-ows/gimi"
	"github.com/gimi-testbed/gimi-ows/utils"
)

// GIMIGranule is one decodable image item as described by the metadata
// store or by reading the file directly.
type GIMIGranule struct {
	Path         string     `json:"path"`
	ItemID       uint32     `json:"item_id"`
	Codec        string     `json:"codec"`
	CodecConfig  []byte     `json:"codec_config,omitempty"`
	Extents      []uint64   `json:"extents,omitempty"`
	ArrayType    string     `json:"array_type"`
	NBands       int        `json:"n_bands"`
	GeoTransform []float64  `json:"geo_transform"`
	BBox         []float64  `json:"bbox"`
	NoData       *float64   `json:"no_data"`
	TimeStamp    *time.Time `json:"timestamp"`
}

type MetadataResponse struct {
	Error string         `json:"error"`
	GIMI  []*GIMIGranule `json:"gimi"`
}

type TileIndexer struct {
	Context    context.Context
	In         chan *GeoTileRequest
	Out        chan *GeoTileGranule
	Error      chan error
	APIAddress string
}

func NewTileIndexer(ctx context.Context, apiAddr string, errChan chan error) *TileIndexer {
	return &TileIndexer{
		Context:    ctx,
		In:         make(chan *GeoTileRequest, 100),
		Out:        make(chan *GeoTileGranule, 100),
		Error:      errChan,
		APIAddress: apiAddr,
	}
}

func BBox2WKT(bbox []float64) string {
	// BBox xMin, yMin, xMax, yMax
	return fmt.Sprintf("POLYGON ((%f %f, %f %f, %f %f, %f %f, %f %f))", bbox[0], bbox[1], bbox[2], bbox[1], bbox[2], bbox[3], bbox[0], bbox[3], bbox[0], bbox[1])
}

// bandIndexForNameSpace maps a band namespace such as "B2" or "2" to
// its 1-based band index.
func bandIndexForNameSpace(ns string) (int32, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(ns, "B"))
	if err != nil || idx < 1 {
		return -1, fmt.Errorf("band '%v' is not a valid band namespace", ns)
	}
	return int32(idx), nil
}

func intersects(a, b []float64) bool {
	return a[0] < b[2] && a[2] > b[0] && a[1] < b[3] && a[3] > b[1]
}

func (p *TileIndexer) Run(verbose bool) {
	if verbose {
		defer log.Printf("tile indexer done")
	}
	defer close(p.Out)
	for geoReq := range p.In {
		select {
		case <-p.Context.Done():
			p.sendError(fmt.Errorf("tile indexer: context has been cancelled: %v", p.Context.Err()))
			return
		default:
			xRes := (geoReq.BBox[2] - geoReq.BBox[0]) / float64(geoReq.Width)
			if geoReq.ZoomLimit != 0.0 && xRes > geoReq.ZoomLimit {
				p.Out <- p.nullGranule(geoReq, "OutOfZoom")
				continue
			}

			if len(p.APIAddress) > 0 {
				p.indexFromMAS(geoReq)
			} else {
				p.indexFromFile(geoReq)
			}
		}
	}
}

// nullGranule stands in for an area with no data. It flows through the
// pipeline as an all zero byte raster.
func (p *TileIndexer) nullGranule(geoReq *GeoTileRequest, nameSpace string) *GeoTileGranule {
	ts := time.Time{}
	if geoReq.StartTime != nil {
		ts = *geoReq.StartTime
	}
	return &GeoTileGranule{
		ConfigPayLoad: ConfigPayLoad{NameSpaces: []string{nameSpace}, ScaleParams: geoReq.ScaleParams, Palette: geoReq.Palette, GrpcConcLimit: geoReq.GrpcConcLimit},
		Path:          "NULL",
		NameSpace:     nameSpace,
		RasterType:    "Byte",
		TimeStamp:     ts,
		BBox:          geoReq.BBox,
		Height:        geoReq.Height,
		Width:         geoReq.Width,
		CRS:           geoReq.CRS,
	}
}

// indexFromFile reads the GIMI container directly. Collections backed
// by a single file do not need the metadata store at all.
func (p *TileIndexer) indexFromFile(geoReq *GeoTileRequest) {
	meta, err := gimi.GetMetadata(geoReq.Path)
	if err != nil {
		p.sendError(fmt.Errorf("%s: %v", geoReq.Path, err))
		p.Out <- p.nullGranule(geoReq, utils.EmptyTileNS)
		return
	}

	granules := make([]*GIMIGranule, 0, len(meta.Images))
	for _, img := range meta.Images {
		bbox := img.BBox()
		nd := img.Bands[1].NoData
		granules = append(granules, &GIMIGranule{
			Path:         geoReq.Path,
			ItemID:       img.ItemID,
			Codec:        img.Codec,
			ArrayType:    img.Bands[1].DataType,
			NBands:       len(img.Bands),
			GeoTransform: img.GeoTransform[:],
			BBox:         bbox[:],
			NoData:       nd,
			TimeStamp:    img.BeginPosition,
		})
	}
	p.emitGranules(geoReq, granules)
}

func (p *TileIndexer) indexFromMAS(geoReq *GeoTileRequest) {
	var wg sync.WaitGroup
	var url string
	if geoReq.StartTime == nil {
		url = strings.Replace(fmt.Sprintf("http://%s%s?intersects&srs=%s&wkt=%s", p.APIAddress, geoReq.Path, geoReq.CRS, BBox2WKT(geoReq.BBox)), " ", "%20", -1)
	} else if geoReq.EndTime == nil {
		url = strings.Replace(fmt.Sprintf("http://%s%s?intersects&time=%s&srs=%s&wkt=%s", p.APIAddress, geoReq.Path, geoReq.StartTime.Format(utils.ISOFormat), geoReq.CRS, BBox2WKT(geoReq.BBox)), " ", "%20", -1)
	} else {
		url = strings.Replace(fmt.Sprintf("http://%s%s?intersects&time=%s&until=%s&srs=%s&wkt=%s", p.APIAddress, geoReq.Path, geoReq.StartTime.Format(utils.ISOFormat), geoReq.EndTime.Format(utils.ISOFormat), geoReq.CRS, BBox2WKT(geoReq.BBox)), " ", "%20", -1)
	}

	wg.Add(1)
	go p.urlIndexGet(url, geoReq, &wg)
	wg.Wait()
}

func (p *TileIndexer) urlIndexGet(url string, geoReq *GeoTileRequest, wg *sync.WaitGroup) {
	defer wg.Done()

	resp, err := http.Get(url)
	if err != nil {
		p.sendError(fmt.Errorf("GET request to %s failed. Error: %v", url, err))
		p.Out <- p.nullGranule(geoReq, utils.EmptyTileNS)
		return
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		p.sendError(fmt.Errorf("Error reading response body from %s. Error: %v", url, err))
		p.Out <- p.nullGranule(geoReq, utils.EmptyTileNS)
		return
	}
	var metadata MetadataResponse
	err = json.Unmarshal(body, &metadata)
	if err != nil {
		p.sendError(fmt.Errorf("Problem parsing JSON response from %s. Error: %v", url, err))
		p.Out <- p.nullGranule(geoReq, utils.EmptyTileNS)
		return
	}

	p.emitGranules(geoReq, metadata.GIMI)
}

func (p *TileIndexer) emitGranules(geoReq *GeoTileRequest, granules []*GIMIGranule) {
	nameSpaces := geoReq.NameSpaces

	emitted := 0
	for _, g := range granules {
		if len(g.BBox) == 4 && !intersects(g.BBox, geoReq.BBox) {
			continue
		}
		if g.TimeStamp != nil {
			if geoReq.StartTime != nil && g.TimeStamp.Before(*geoReq.StartTime) {
				continue
			}
			if geoReq.EndTime != nil && g.TimeStamp.After(*geoReq.EndTime) {
				continue
			}
		}

		granNameSpaces := nameSpaces
		if len(granNameSpaces) == 0 {
			granNameSpaces = make([]string, g.NBands)
			for i := range granNameSpaces {
				granNameSpaces[i] = fmt.Sprintf("B%d", i+1)
			}
		}

		ts := time.Time{}
		if g.TimeStamp != nil {
			ts = *g.TimeStamp
		}

		noData := geoReq.NoData
		if g.NoData != nil {
			noData = *g.NoData
		}

		for _, ns := range granNameSpaces {
			band, err := bandIndexForNameSpace(ns)
			if err != nil {
				p.sendError(err)
				continue
			}
			if int(band) > g.NBands {
				p.sendError(fmt.Errorf("band '%v' not found, item %d has %d bands", ns, g.ItemID, g.NBands))
				continue
			}

			p.Out <- &GeoTileGranule{
				ConfigPayLoad: geoReq.ConfigPayLoad,
				Path:          g.Path,
				ItemID:        g.ItemID,
				Codec:         g.Codec,
				CodecConfig:   g.CodecConfig,
				Extents:       g.Extents,
				Geot:          g.GeoTransform,
				CRS:           geoReq.CRS,
				BBox:          geoReq.BBox,
				Height:        geoReq.Height,
				Width:         geoReq.Width,
				NameSpace:     ns,
				Band:          band,
				RasterType:    g.ArrayType,
				NoData:        noData,
				TimeStamp:     ts,
			}
			emitted++
		}
	}

	if emitted == 0 {
		p.Out <- p.nullGranule(geoReq, utils.EmptyTileNS)
	}
}

func (p *TileIndexer) sendError(err error) {
	select {
	case p.Error <- err:
	default:
	}
}
