package processor

import (
	"testing"
	"time"

	"github.com/gimi-testbed/gimi-ows/utils"
)

func TestBandIndexForNameSpace(t *testing.T) {
	idx, err := bandIndexForNameSpace("B2")
	if err != nil || idx != 2 {
		t.Errorf("band namespace test failed, expecting 2, actual %v, %v", idx, err)
	}

	idx, err = bandIndexForNameSpace("3")
	if err != nil || idx != 3 {
		t.Errorf("band namespace test failed, expecting 3, actual %v, %v", idx, err)
	}

	if _, err = bandIndexForNameSpace("red"); err == nil {
		t.Errorf("band namespace test failed, expecting error for 'red'")
	}

	if _, err = bandIndexForNameSpace("B0"); err == nil {
		t.Errorf("band namespace test failed, expecting error for 'B0'")
	}
}

func TestIntersects(t *testing.T) {
	a := []float64{-156.3, 18.8, -154.7, 20.4}
	if !intersects(a, []float64{-156.0, 19.0, -155.0, 20.0}) {
		t.Errorf("intersects test failed, expecting true")
	}
	if intersects(a, []float64{10.0, 40.0, 12.0, 42.0}) {
		t.Errorf("intersects test failed, expecting false")
	}
}

func newTestIndexer() *TileIndexer {
	return &TileIndexer{
		Out:   make(chan *GeoTileGranule, 100),
		Error: make(chan error, 100),
	}
}

func TestEmitGranules(t *testing.T) {
	p := newTestIndexer()
	geoReq := &GeoTileRequest{
		ConfigPayLoad: ConfigPayLoad{},
		BBox:          []float64{19.999, 9.997, 20.003, 10.001},
		Width:         256, Height: 256,
		CRS:    "EPSG:4326",
		NoData: 255,
	}

	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	granules := []*GIMIGranule{
		{
			Path: "/data/a.heif", ItemID: 1, Codec: "unci", ArrayType: "Byte", NBands: 3,
			GeoTransform: []float64{20.0, 0.001, 0, 10.0, 0, -0.001},
			BBox:         []float64{20.0, 9.998, 20.002, 10.0},
			TimeStamp:    &ts,
		},
		{
			// disjoint, must be skipped
			Path: "/data/b.heif", ItemID: 1, Codec: "unci", ArrayType: "Byte", NBands: 3,
			GeoTransform: []float64{120.0, 0.001, 0, 10.0, 0, -0.001},
			BBox:         []float64{120.0, 9.998, 120.002, 10.0},
			TimeStamp:    &ts,
		},
	}

	p.emitGranules(geoReq, granules)
	close(p.Out)

	var grans []*GeoTileGranule
	for g := range p.Out {
		grans = append(grans, g)
	}

	if len(grans) != 3 {
		t.Fatalf("emit test failed, expecting 3 granules, actual %v", len(grans))
	}
	for i, g := range grans {
		if g.Path != "/data/a.heif" || g.Band != int32(i+1) || g.NoData != 255 {
			t.Errorf("granule test failed, actual %+v", g)
		}
	}
	if grans[1].NameSpace != "B2" {
		t.Errorf("granule namespace test failed, actual %v", grans[1].NameSpace)
	}
}

func TestEmitGranulesEmpty(t *testing.T) {
	p := newTestIndexer()
	geoReq := &GeoTileRequest{
		BBox:  []float64{0, 0, 1, 1},
		Width: 256, Height: 256,
		CRS: "EPSG:4326",
	}

	p.emitGranules(geoReq, nil)
	close(p.Out)

	g := <-p.Out
	if g == nil || g.Path != "NULL" || g.NameSpace != utils.EmptyTileNS {
		t.Errorf("empty emit test failed, actual %+v", g)
	}
}

func TestBBox2Geot(t *testing.T) {
	geot := BBox2Geot(256, 256, []float64{-180, -90, 180, 90})
	if geot[0] != -180 || geot[3] != 90 {
		t.Errorf("geot origin test failed, actual %v", geot)
	}
	if geot[1] != 360.0/256 || geot[5] != -180.0/256 {
		t.Errorf("geot resolution test failed, actual %v", geot)
	}
}
