package processor

import (
	"math"
	"testing"
	"time"

	"github.com/gimi-testbed/gimi-ows/utils"
)

func TestProcessRasterStack(t *testing.T) {
	cfg := ConfigPayLoad{NameSpaces: []string{"B1"}}
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	older := &FlexRaster{ConfigPayLoad: cfg, Data: []uint8{1, 255, 3, 255}, Width: 2, Height: 2,
		Type: "Byte", NoData: 255, NameSpace: "B1", TimeStamp: t0}
	newer := &FlexRaster{ConfigPayLoad: cfg, Data: []uint8{255, 9, 9, 255}, Width: 2, Height: 2,
		Type: "Byte", NoData: 255, NameSpace: "B1", TimeStamp: t1}

	stack := map[int64][]*FlexRaster{
		t0.UnixNano(): {older},
		t1.UnixNano(): {newer},
	}

	canvasMap, err := ProcessRasterStack(stack)
	if err != nil {
		t.Fatalf("raster stack test failed, %v", err)
	}

	canvas, ok := canvasMap["B1"]
	if !ok {
		t.Fatalf("raster stack test failed, no canvas for B1")
	}

	exp := []uint8{1, 9, 9, 255}
	for i, v := range exp {
		if canvas.Data[i] != v {
			t.Errorf("merge test failed at %d, expecting %v, actual %v", i, v, canvas.Data[i])
		}
	}
}

func TestMergeRasterInt16(t *testing.T) {
	cfg := ConfigPayLoad{NameSpaces: []string{"B1"}}
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	canvasMap := map[string]*FlexRaster{
		"B1": &FlexRaster{ConfigPayLoad: cfg, NoData: -1,
			Data: initNoDataSlice("Int16", -1, 4), Width: 2, Height: 2,
			Type: "Int16", NameSpace: "B1", TimeStamp: time.Time{}},
	}

	data := []uint8{0x05, 0x00, 0xFF, 0xFF, 0x07, 0x00, 0xFF, 0xFF}
	r := &FlexRaster{ConfigPayLoad: cfg, Data: data, Width: 2, Height: 2,
		Type: "Int16", NoData: -1, NameSpace: "B1", TimeStamp: t0}

	if err := MergeRaster(r, canvasMap); err != nil {
		t.Fatalf("int16 merge test failed, %v", err)
	}

	out := canvasToRasters(canvasMap, []string{"B1"}, make(chan error, 1))
	raster, ok := out[0].(*utils.Int16Raster)
	if !ok {
		t.Fatalf("int16 merge test failed, wrong output type")
	}

	exp := []int16{5, -1, 7, -1}
	for i, v := range exp {
		if raster.Data[i] != v {
			t.Errorf("int16 merge test failed at %d, expecting %v, actual %v", i, v, raster.Data[i])
		}
	}
}

func TestEvalExpressions(t *testing.T) {
	bandExpr, err := utils.ParseBandExpressions([]string{"ndvi=(B2-B1)/(B2+B1)"})
	if err != nil {
		t.Fatalf("expression parse test failed, %v", err)
	}

	cfg := ConfigPayLoad{NameSpaces: bandExpr.VarList, BandExpr: bandExpr}
	canvasMap := map[string]*FlexRaster{
		"B1": &FlexRaster{ConfigPayLoad: cfg, Data: []uint8{2, 2, 255, 2}, Width: 2, Height: 2,
			Type: "Byte", NoData: 255, NameSpace: "B1"},
		"B2": &FlexRaster{ConfigPayLoad: cfg, Data: []uint8{6, 2, 6, 255}, Width: 2, Height: 2,
			Type: "Byte", NoData: 255, NameSpace: "B2"},
	}

	outMap, err := EvalExpressions(canvasMap, bandExpr)
	if err != nil {
		t.Fatalf("expression eval test failed, %v", err)
	}

	canvas, ok := outMap["ndvi"]
	if !ok {
		t.Fatalf("expression eval test failed, no ndvi canvas")
	}
	if canvas.Type != "Float32" {
		t.Fatalf("expression output type test failed, actual %v", canvas.Type)
	}

	out := canvasToRasters(map[string]*FlexRaster{"ndvi": canvas}, []string{"ndvi"}, make(chan error, 1))
	raster := out[0].(*utils.Float32Raster)

	if math.Abs(float64(raster.Data[0])-0.5) > 1e-6 {
		t.Errorf("ndvi test failed, expecting 0.5, actual %v", raster.Data[0])
	}
	if math.Abs(float64(raster.Data[1])) > 1e-6 {
		t.Errorf("ndvi test failed, expecting 0, actual %v", raster.Data[1])
	}
	if raster.Data[2] != ExprNoData || raster.Data[3] != ExprNoData {
		t.Errorf("nodata propagation test failed, actual %v %v", raster.Data[2], raster.Data[3])
	}
}

func TestMergerRunDefaultNameSpaces(t *testing.T) {
	errChan := make(chan error, 10)
	m := NewRasterMerger(errChan)

	// no properties and no style leaves the request payload without
	// namespaces, the merger serves every band it received
	go func() {
		m.In <- &FlexRaster{
			ConfigPayLoad: ConfigPayLoad{},
			Data:          []uint8{1, 2, 3, 4}, Width: 2, Height: 2,
			Type: "Byte", NoData: 255, NameSpace: "B1",
			TimeStamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
		close(m.In)
	}()

	go m.Run(nil, false)

	out := <-m.Out
	if len(out) != 1 {
		t.Fatalf("default namespaces test failed, expecting 1 raster, actual %v", len(out))
	}
	br, ok := out[0].(*utils.ByteRaster)
	if !ok {
		t.Fatalf("default namespaces test failed, wrong output type %T", out[0])
	}
	if br.NameSpace != "B1" || br.Width != 2 || br.Height != 2 {
		t.Errorf("default namespaces test failed, actual %s %dx%d", br.NameSpace, br.Width, br.Height)
	}
	for i, v := range []uint8{1, 2, 3, 4} {
		if br.Data[i] != v {
			t.Errorf("default namespaces merge test failed at %d, expecting %v, actual %v", i, v, br.Data[i])
		}
	}
}

func TestMergerRunEmptyTile(t *testing.T) {
	errChan := make(chan error, 10)
	m := NewRasterMerger(errChan)

	go func() {
		m.In <- &FlexRaster{
			ConfigPayLoad: ConfigPayLoad{NameSpaces: []string{utils.EmptyTileNS}},
			Data:          make([]uint8, 4), Width: 2, Height: 2,
			Type: "Byte", NoData: 0, NameSpace: utils.EmptyTileNS}
		close(m.In)
	}()

	go m.Run(nil, false)

	out := <-m.Out
	if len(out) != 1 {
		t.Fatalf("empty tile test failed, expecting 1 raster, actual %v", len(out))
	}
	br, ok := out[0].(*utils.ByteRaster)
	if !ok || br.NameSpace != utils.EmptyTileNS {
		t.Errorf("empty tile namespace test failed, actual %+v", out[0])
	}
}
