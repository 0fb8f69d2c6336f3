package extractor

import (
	"encoding/binary"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func eu16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func eu32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func eu64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func ebox(typ string, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	out := eu32(uint32(8 + len(body)))
	out = append(out, typ...)
	return append(out, body...)
}

func efullbox(typ string, version byte, flags uint32, parts ...[]byte) []byte {
	prefix := eu32(uint32(version)<<24 | flags&0xFFFFFF)
	return ebox(typ, append([][]byte{prefix}, parts...)...)
}

func ecorner(tag byte, deg, scale float64) []byte {
	return append([]byte{tag, 4}, eu32(uint32(int32(math.Round(deg/scale))))...)
}

// provenance local set for a 2x2 image with its upper left corner at
// 10.0,20.0 and 0.001 degree pixels
func eklv(ts time.Time) []byte {
	latScale := 180.0 / 4294967294.0
	lonScale := 360.0 / 4294967294.0

	var b []byte
	b = append(b, 2, 8)
	b = append(b, eu64(uint64(ts.UnixNano()/1000))...)
	b = append(b, 3, 7)
	b = append(b, "mission"...)
	b = append(b, ecorner(82, 10.0, latScale)...)
	b = append(b, ecorner(83, 20.0, lonScale)...)
	b = append(b, ecorner(84, 10.0, latScale)...)
	b = append(b, ecorner(85, 20.002, lonScale)...)
	b = append(b, ecorner(86, 9.998, latScale)...)
	b = append(b, ecorner(87, 20.002, lonScale)...)
	b = append(b, ecorner(88, 9.998, latScale)...)
	b = append(b, ecorner(89, 20.0, lonScale)...)
	b = append(b, 1, 2, 0xAB, 0xCD)
	return b
}

func writeTestGIMI(t *testing.T, ts time.Time) string {
	pixels := make([]byte, 12)
	klv := eklv(ts)
	idat := append(append([]byte{}, pixels...), klv...)

	cdsc := eu32(14)
	cdsc = append(cdsc, "cdsc"...)
	cdsc = append(cdsc, eu16(2)...)
	cdsc = append(cdsc, eu16(1)...)
	cdsc = append(cdsc, eu16(1)...)

	meta := efullbox("meta", 0, 0,
		efullbox("pitm", 0, 0, eu16(1)),
		efullbox("iinf", 0, 0, eu16(2),
			efullbox("infe", 2, 0, eu16(1), eu16(0), []byte("unci"), []byte("image\x00")),
			efullbox("infe", 2, 0, eu16(2), eu16(0), []byte("mime"), []byte("meta\x00"), []byte("application/x-klv\x00"))),
		efullbox("iref", 0, 0, cdsc),
		efullbox("iloc", 1, 0, eu16(0x4400), eu16(2),
			eu16(1), eu16(1), eu16(0), eu16(1), eu32(0), eu32(uint32(len(pixels))),
			eu16(2), eu16(1), eu16(0), eu16(1), eu32(uint32(len(pixels))), eu32(uint32(len(klv)))),
		ebox("iprp",
			ebox("ipco",
				efullbox("ispe", 0, 0, eu32(2), eu32(2)),
				efullbox("pixi", 0, 0, []byte{3, 8, 8, 8}),
				efullbox("uncC", 1, 0, []byte("rgb3"))),
			efullbox("ipma", 0, 0, eu32(1), eu16(1), []byte{3}, []byte{1, 2, 3})),
		ebox("idat", idat))

	data := ebox("ftyp", []byte("geo1"), eu32(0), []byte("mif1"))
	data = append(data, meta...)

	path := filepath.Join(t.TempDir(), "granule.heif")
	if err := ioutil.WriteFile(path, data, os.FileMode(0644)); err != nil {
		t.Fatalf("write test file failed, %v", err)
	}
	return path
}

func TestExtractGIMIInfo(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	path := writeTestGIMI(t, ts)

	geoFile, err := ExtractGIMIInfo(path)
	if err != nil {
		t.Fatalf("extract test failed, %v", err)
	}

	if geoFile.Brand != "geo1" {
		t.Errorf("brand test failed, expecting geo1, actual %v", geoFile.Brand)
	}
	if geoFile.Posix == nil || geoFile.Posix.Size == 0 {
		t.Errorf("posix info test failed, actual %+v", geoFile.Posix)
	}
	if len(geoFile.Granules) != 1 {
		t.Fatalf("granule count test failed, expecting 1, actual %v", len(geoFile.Granules))
	}

	g := geoFile.Granules[0]
	if g.ItemID != 1 || g.Codec != "unci" || g.NBands != 3 || g.ArrayType != "Byte" {
		t.Errorf("granule test failed, actual %+v", g)
	}
	if g.Title != "mission" {
		t.Errorf("granule title test failed, actual %v", g.Title)
	}
	if g.TimeStamp == nil || !g.TimeStamp.Equal(ts) {
		t.Errorf("granule timestamp test failed, actual %v", g.TimeStamp)
	}

	if math.Abs(g.GeoTransform[0]-20.0) > 1e-6 || math.Abs(g.GeoTransform[1]-0.001) > 1e-6 ||
		math.Abs(g.GeoTransform[3]-10.0) > 1e-6 || math.Abs(g.GeoTransform[5]+0.001) > 1e-6 {
		t.Errorf("geotransform test failed, actual %v", g.GeoTransform)
	}

	if math.Abs(g.BBox[0]-20.0) > 1e-6 || math.Abs(g.BBox[1]-9.998) > 1e-6 ||
		math.Abs(g.BBox[2]-20.002) > 1e-6 || math.Abs(g.BBox[3]-10.0) > 1e-6 {
		t.Errorf("bbox test failed, actual %v", g.BBox)
	}

	if len(g.CodecConfig) == 0 {
		t.Errorf("codec config test failed, expecting uncC payload")
	}
}

func TestHasGIMISuffix(t *testing.T) {
	if !hasGIMISuffix("scene.HEIF") || !hasGIMISuffix("a.heic") {
		t.Errorf("suffix test failed, expecting match")
	}
	if hasGIMISuffix("scene.tif") {
		t.Errorf("suffix test failed, expecting no match")
	}
}
