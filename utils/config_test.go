package utils

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

const testConfigYAML = `
server:
  bind:
    host: 0.0.0.0
    port: 5000
  url: http://localhost:5000
  gzip: true
  languages:
    - en-US
  limit: 10
  mas_address: localhost:8888
  worker_nodes:
    - localhost:6000
logging:
  level: INFO
metadata:
  identification:
    title: GIMI data server
    description: serves georeferenced HEIF imagery
    keywords:
      - gimi
      - heif
  license:
    name: CC-BY 4.0
resources:
  hawaii:
    type: collection
    title: Hawaii sample
    description: HEVC encoded satellite image of Hawaii
    keywords:
      - hawaii
    extents:
      spatial:
        bbox: [-156.3, 18.8, -154.7, 20.4]
        crs: http://www.opengis.net/def/crs/OGC/1.3/CRS84
    providers:
      - type: coverage
        name: GimiCoverage
        data: data/hawaii.heif
        options:
          crs: EPSG:4326
          nodata: 0
        format:
          name: GIMI
          mimetype: image/heif
      - type: tile
        name: GimiTile
        data: data/hawaii.heif
        options:
          zoom:
            min: 5
            max: 12
          schemes:
            - WorldCRS84Quad
            - WebMercatorQuad
          bounds: [-156.3, 18.8, -154.7, 20.4]
          metadata_format: raw
        format:
          name: png
          mimetype: image/png
`

func writeTestConfig(t *testing.T, body string) string {
	dir, err := ioutil.TempDir("", "config_test")
	if err != nil {
		t.Fatalf("config test setup failed, %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	if err := ioutil.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("config test setup failed, %v", err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeTestConfig(t, testConfigYAML)

	configMap, err := LoadAllConfigFiles(dir)
	if err != nil {
		t.Fatalf("config loading test failed, %v", err)
	}

	config, ok := configMap["."]
	if !ok {
		t.Fatalf("config namespace test failed, actual %v", configMap)
	}
	if config.Server.Bind.Port != 5000 {
		t.Errorf("server bind test failed, actual %d", config.Server.Bind.Port)
	}
	if config.Server.MASAddress != "localhost:8888" {
		t.Errorf("mas address test failed, actual %s", config.Server.MASAddress)
	}
	if config.Metadata.Identification.Title != "GIMI data server" {
		t.Errorf("metadata test failed, actual %s", config.Metadata.Identification.Title)
	}

	res, ok := config.Resources["hawaii"]
	if !ok {
		t.Fatalf("resource test failed, missing hawaii")
	}
	if res.ID != "hawaii" {
		t.Errorf("resource id test failed, actual %s", res.ID)
	}

	cov := res.Provider(ProviderTypeCoverage)
	if cov == nil || cov.Name != "GimiCoverage" {
		t.Fatalf("coverage provider test failed, actual %v", cov)
	}
	if cov.Options.NoData == nil || *cov.Options.NoData != 0 {
		t.Errorf("nodata test failed, actual %v", cov.Options.NoData)
	}

	tile := res.Provider(ProviderTypeTile)
	if tile == nil {
		t.Fatalf("tile provider test failed, missing provider")
	}
	if tile.Options.Zoom.Min != 5 || tile.Options.Zoom.Max != 12 {
		t.Errorf("zoom test failed, actual %v", tile.Options.Zoom)
	}
	if len(tile.Options.Schemes) != 2 {
		t.Errorf("schemes test failed, actual %v", tile.Options.Schemes)
	}
	if tile.Format.MimeType != "image/png" {
		t.Errorf("format test failed, actual %v", tile.Format)
	}
}

func TestLoadConfigRejectsBadSchemes(t *testing.T) {
	bad := `
resources:
  broken:
    type: collection
    providers:
      - type: tile
        name: GimiTile
        data: data/x.heif
        options:
          schemes:
            - EuropeanETRS89_LAEAQuad
`
	dir := writeTestConfig(t, bad)
	if _, err := LoadAllConfigFiles(dir); err == nil {
		t.Errorf("bad scheme test failed, expecting error")
	}
}

func TestLoadConfigCompilesStyles(t *testing.T) {
	body := `
resources:
  styled:
    type: collection
    providers:
      - type: coverage
        name: GimiCoverage
        data: data/x.heif
        options:
          styles:
            - name: ndvi
              expressions:
                - (B2 - B1) / (B2 + B1)
              clip_value: 1
              palette:
                interpolate: true
                colours:
                  - "#000000"
                  - "#00FF00"
`
	dir := writeTestConfig(t, body)
	configMap, err := LoadAllConfigFiles(dir)
	if err != nil {
		t.Fatalf("style config test failed, %v", err)
	}

	style := configMap["."].Resources["styled"].Providers[0].Options.Styles[0]
	if style.BandExprs == nil {
		t.Fatalf("style expression test failed, not compiled")
	}
	if len(style.BandExprs.VarList) != 2 {
		t.Errorf("style variable test failed, actual %v", style.BandExprs.VarList)
	}
	if style.Palette == nil || len(style.Palette.Colours) != 2 {
		t.Fatalf("style palette test failed, actual %v", style.Palette)
	}
	if style.Palette.Colours[1].G != 0xFF {
		t.Errorf("palette colour test failed, actual %v", style.Palette.Colours[1])
	}
}
