package decodeservice

import (
	"encoding/binary"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func tu16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func tu32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func tbox(typ string, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	out := tu32(uint32(8 + len(body)))
	out = append(out, typ...)
	return append(out, body...)
}

func tfullbox(typ string, version byte, flags uint32, parts ...[]byte) []byte {
	prefix := tu32(uint32(version)<<24 | flags&0xFFFFFF)
	return tbox(typ, append([][]byte{prefix}, parts...)...)
}

// writeUnciFile builds a 2x2 pixel-interleaved rgb3 image in idat and
// writes it out as a GIMI file.
func writeUnciFile(t *testing.T, pixels []byte) string {
	meta := tfullbox("meta", 0, 0,
		tfullbox("pitm", 0, 0, tu16(1)),
		tfullbox("iinf", 0, 0, tu16(1),
			tfullbox("infe", 2, 0, tu16(1), tu16(0), []byte("unci"), []byte("image\x00"))),
		tfullbox("iloc", 1, 0, tu16(0x4400), tu16(1),
			tu16(1), tu16(1), tu16(0), tu16(1), tu32(0), tu32(uint32(len(pixels)))),
		tbox("iprp",
			tbox("ipco",
				tfullbox("ispe", 0, 0, tu32(2), tu32(2)),
				tfullbox("pixi", 0, 0, []byte{3, 8, 8, 8}),
				tfullbox("uncC", 1, 0, []byte("rgb3"))),
			tfullbox("ipma", 0, 0, tu32(1), tu16(1), []byte{3}, []byte{1, 2, 3})),
		tbox("idat", pixels))

	data := tbox("ftyp", []byte("geo1"), tu32(0), []byte("mif1"))
	data = append(data, meta...)

	path := filepath.Join(t.TempDir(), "granule.heif")
	if err := ioutil.WriteFile(path, data, os.FileMode(0644)); err != nil {
		t.Fatalf("write test file failed, %v", err)
	}
	return path
}

func TestDecodeNative(t *testing.T) {
	pixels := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	path := writeUnciFile(t, pixels)

	geot := []float64{20.0, 0.001, 0, 10.0, 0, -0.001}
	in := &GeoDecodeGranule{
		Path:    path,
		ItemId:  1,
		Codec:   "unci",
		Geot:    geot,
		OutGeot: geot,
		Width:   2,
		Height:  2,
		Bands:   []int32{1},
		NoData:  255,
	}

	out := DecodeNative(in)
	if out.Error != "OK" {
		t.Fatalf("native decode test failed, %v", out.Error)
	}
	if out.Raster.RasterType != "Byte" || out.Raster.Width != 2 || out.Raster.Height != 2 {
		t.Errorf("raster shape test failed, actual %v %dx%d",
			out.Raster.RasterType, out.Raster.Width, out.Raster.Height)
	}

	expRed := []byte{10, 40, 70, 100}
	for i, v := range expRed {
		if out.Raster.Data[i] != v {
			t.Errorf("band 1 test failed, expecting %v, actual %v", v, out.Raster.Data[i])
		}
	}
}

func TestDecodeNativeWindow(t *testing.T) {
	pixels := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	path := writeUnciFile(t, pixels)

	// output window half outside the granule footprint
	in := &GeoDecodeGranule{
		Path:    path,
		ItemId:  1,
		Codec:   "unci",
		Geot:    []float64{20.0, 0.001, 0, 10.0, 0, -0.001},
		OutGeot: []float64{19.998, 0.001, 0, 10.0, 0, -0.001},
		Width:   4,
		Height:  2,
		Bands:   []int32{3},
		NoData:  255,
	}

	out := DecodeNative(in)
	if out.Error != "OK" {
		t.Fatalf("native decode window test failed, %v", out.Error)
	}

	exp := []byte{255, 255, 30, 60, 255, 255, 90, 120}
	for i, v := range exp {
		if out.Raster.Data[i] != v {
			t.Errorf("window test failed at %d, expecting %v, actual %v", i, v, out.Raster.Data[i])
		}
	}
}

func TestDecodeNativeBadBand(t *testing.T) {
	pixels := make([]byte, 12)
	path := writeUnciFile(t, pixels)

	geot := []float64{20.0, 0.001, 0, 10.0, 0, -0.001}
	in := &GeoDecodeGranule{
		Path:    path,
		ItemId:  1,
		Codec:   "unci",
		Geot:    geot,
		OutGeot: geot,
		Width:   2,
		Height:  2,
		Bands:   []int32{4},
	}

	out := DecodeNative(in)
	if out.Error == "OK" {
		t.Errorf("band range test failed, expecting error")
	}
}
