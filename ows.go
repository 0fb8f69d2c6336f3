package main

/* ows is a web server exposing GIMI imagery files through an OGC API.
   Collections are declared in config.yaml documents under the config
   directory. Each collection binds a GIMI container to a coverage
   provider, a tile provider, or both. The server depends on two other
   services to operate: the metadata API which indexes the granules of
   the published files and the decode server which renders image items
   onto request windows. Collections without a metadata API fall back
   to reading the container directly. */

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gimi-testbed/gimi-ows/gimi"
	"github.com/gimi-testbed/gimi-ows/metrics"
	proc "github.com/gimi-testbed/gimi-ows/processor"
	"github.com/gimi-testbed/gimi-ows/utils"

	_ "net/http/pprof"

	"github.com/CloudyKit/jet"
	"github.com/golang/groupcache"
	"github.com/gorilla/mux"
	reuseport "github.com/kavu/go_reuseport"
	geo "github.com/nci/geometry"
)

// Global variable to hold the values specified
// on the config.yaml documents.
var configMap map[string]*utils.Config

var (
	port            = flag.Int("p", 0, "Server listening port. 0 uses the configured bind port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server metrics log directory. Empty logs to stdout.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	dumpConfig      = flag.Bool("dump_conf", false, "Dump server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var reCoverageMap map[string]*regexp.Regexp

var (
	Error *log.Logger
	Info  *log.Logger
)

var metricsLogger metrics.Logger

var templateSet *jet.Set

const tileCacheSize = 256 << 20

var tileCache *groupcache.Group

const defaultConcGrpc = 16

// request windows larger than this are refused
const maxCoverageSize = 4096

const tileRenderTimeout = 60 * time.Second
const coverageRenderTimeout = 300 * time.Second

// init initialises the Error logger, checks
// required files are in place and sets the Config structs.
// This is the first function to be called in main.
func init() {
	rand.Seed(time.Now().UnixNano())

	Error = log.New(os.Stderr, "OWS: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "OWS: ", log.Ldate|log.Ltime|log.Lshortfile)

	flag.Parse()

	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	filePaths := []string{
		utils.DataDir + "/templates/landing.jet",
		utils.DataDir + "/templates/viewer.jet"}

	for _, filePath := range filePaths {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			panic(err)
		}
	}

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		panic(err)
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		configYaml, err := utils.DumpConfig(confMap)
		if err != nil {
			Error.Printf("Error in dumping configs: %v\n", err)
		} else {
			log.Print(configYaml)
		}
		os.Exit(0)
	}

	configMap = confMap
	utils.WatchConfig(Info, Error, &configMap)

	reCoverageMap = utils.CompileCoverageRegexMap()

	templateSet = jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), utils.DataDir+"/templates", "/")

	if len(*serverLogDir) == 0 || *serverLogDir == "-" {
		metricsLogger = metrics.NewStdoutLogger()
	} else {
		maxLogFileSize, _ := strconv.ParseInt(os.Getenv("OWS_MAX_LOG_FILE_SIZE"), 10, 64)
		maxLogFiles, _ := strconv.Atoi(os.Getenv("OWS_MAX_LOG_FILES"))
		metricsLogger = metrics.NewFileLogger(*serverLogDir, maxLogFileSize, maxLogFiles, *verbose)
	}
}

// lookupResource resolves a collection id of the form `id` or
// `namespace:id` against the loaded configs.
func lookupResource(collectionID string) (*utils.Config, *utils.Resource) {
	ns := "."
	id := collectionID
	if parts := strings.SplitN(collectionID, ":", 2); len(parts) == 2 {
		ns = parts[0]
		id = parts[1]
	}

	conf, ok := configMap[ns]
	if !ok {
		return nil, nil
	}
	res, ok := conf.Resources[id]
	if !ok {
		return nil, nil
	}
	return conf, res
}

func collectionID(res *utils.Resource) string {
	if len(res.NameSpace) > 0 {
		return res.NameSpace + ":" + res.ID
	}
	return res.ID
}

// rootConfig returns the top level config document, or any loaded
// config when the root directory itself has none.
func rootConfig() *utils.Config {
	if conf, ok := configMap["."]; ok {
		return conf
	}
	for _, conf := range configMap {
		return conf
	}
	return nil
}

func serverURL(conf *utils.Config, r *http.Request) string {
	if len(conf.Server.URL) > 0 {
		return strings.TrimSuffix(conf.Server.URL, "/")
	}
	return "http://" + r.Host
}

func parseRemoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); len(fwd) > 0 {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

// startMetrics begins a metrics record for the request. The returned
// closure logs the record and must be deferred by the handler.
func startMetrics(r *http.Request) (*metrics.MetricsCollector, func()) {
	collector := metrics.NewMetricsCollector(metricsLogger)

	t0 := time.Now()
	collector.Info.ReqTime = t0.Format(utils.ISOFormat)

	reqURL, e := url.QueryUnescape(r.URL.String())
	if e == nil {
		collector.Info.URL.RawURL = reqURL
	} else {
		collector.Info.URL.RawURL = r.URL.String()
	}
	collector.Info.RemoteAddr = parseRemoteAddr(r)
	collector.Info.HTTPStatus = 200

	return collector, func() {
		collector.Info.ReqDuration = time.Since(t0)
		collector.Log()
	}
}

func writeJSON(w http.ResponseWriter, collector *metrics.MetricsCollector, payload interface{}) {
	out, err := json.Marshal(payload)
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

// cached container metadata keyed by file path
var gimiMetaCache sync.Map

func getGIMIMetadata(path string) (*gimi.Metadata, error) {
	if meta, ok := gimiMetaCache.Load(path); ok {
		return meta.(*gimi.Metadata), nil
	}
	meta, err := gimi.GetMetadata(path)
	if err != nil {
		return nil, err
	}
	gimiMetaCache.Store(path, meta)
	return meta, nil
}

// gridInfo is the native grid of a collection: the union extent of its
// image items at the finest acquisition resolution.
type gridInfo struct {
	BBox      [4]float64
	XRes      float64
	YRes      float64
	Width     int
	Height    int
	ArrayType string
	NBands    int
	NoData    *float64
	Times     []time.Time
}

func nativeGrid(meta *gimi.Metadata) *gridInfo {
	grid := &gridInfo{}
	for i, img := range meta.Images {
		bbox := img.BBox()
		xRes := math.Abs(img.XResolution)
		yRes := math.Abs(img.YResolution)
		if i == 0 {
			grid.BBox = bbox
			grid.XRes = xRes
			grid.YRes = yRes
			grid.ArrayType = img.Bands[1].DataType
			grid.NBands = len(img.Bands)
			grid.NoData = img.Bands[1].NoData
		} else {
			grid.BBox[0] = math.Min(grid.BBox[0], bbox[0])
			grid.BBox[1] = math.Min(grid.BBox[1], bbox[1])
			grid.BBox[2] = math.Max(grid.BBox[2], bbox[2])
			grid.BBox[3] = math.Max(grid.BBox[3], bbox[3])
			grid.XRes = math.Min(grid.XRes, xRes)
			grid.YRes = math.Min(grid.YRes, yRes)
			if len(img.Bands) > grid.NBands {
				grid.NBands = len(img.Bands)
			}
		}
		if img.BeginPosition != nil {
			grid.Times = append(grid.Times, *img.BeginPosition)
		}
	}

	grid.Width = windowSize(grid.BBox[0], grid.BBox[2], grid.XRes)
	grid.Height = windowSize(grid.BBox[1], grid.BBox[3], grid.YRes)
	return grid
}

func windowSize(lo, hi, res float64) int {
	if res <= 0 {
		return 1
	}
	n := int(math.Round((hi - lo) / res))
	if n < 1 {
		n = 1
	}
	if n > maxCoverageSize {
		n = maxCoverageSize
	}
	return n
}

type linkDoc struct {
	Href      string `json:"href"`
	Rel       string `json:"rel"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Templated bool   `json:"templated,omitempty"`
}

type spatialExtentDoc struct {
	BBox [][]float64 `json:"bbox"`
	CRS  string      `json:"crs"`
}

type temporalExtentDoc struct {
	Interval [][]*string `json:"interval"`
}

type extentDoc struct {
	Spatial  spatialExtentDoc   `json:"spatial"`
	Temporal *temporalExtentDoc `json:"temporal,omitempty"`
}

type collectionDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Extent      extentDoc `json:"extent"`
	Links       []linkDoc `json:"links"`
}

func describeCollection(conf *utils.Config, res *utils.Resource, baseURL string) *collectionDoc {
	id := collectionID(res)

	bbox := res.Extents.Spatial.Bbox
	if len(bbox) != 4 {
		bbox = []float64{-180, -90, 180, 90}
		for _, prov := range res.Providers {
			if meta, err := getGIMIMetadata(prov.Data); err == nil {
				grid := nativeGrid(meta)
				bbox = grid.BBox[:]
				break
			}
		}
	}

	crs := res.Extents.Spatial.CRS
	if len(crs) == 0 {
		crs = utils.CRS84URI
	}

	doc := &collectionDoc{
		ID:          id,
		Title:       res.Title,
		Description: res.Description,
		Keywords:    res.Keywords,
		Extent: extentDoc{
			Spatial: spatialExtentDoc{BBox: [][]float64{bbox}, CRS: crs},
		},
	}

	if len(res.Extents.Temporal.Begin) > 0 || len(res.Extents.Temporal.End) > 0 {
		interval := make([]*string, 2)
		if len(res.Extents.Temporal.Begin) > 0 {
			begin := res.Extents.Temporal.Begin
			interval[0] = &begin
		}
		if len(res.Extents.Temporal.End) > 0 {
			end := res.Extents.Temporal.End
			interval[1] = &end
		}
		doc.Extent.Temporal = &temporalExtentDoc{Interval: [][]*string{interval}}
	}

	collURL := fmt.Sprintf("%s/collections/%s", baseURL, id)
	doc.Links = []linkDoc{
		{Href: collURL, Rel: "self", Type: "application/json", Title: res.Title},
		{Href: collURL + "/footprint", Rel: "item", Type: "application/geo+json", Title: "Granule footprints"},
	}
	if prov := res.Provider(utils.ProviderTypeCoverage); prov != nil {
		doc.Links = append(doc.Links,
			linkDoc{Href: collURL + "/coverage", Rel: "http://www.opengis.net/def/rel/ogc/1.0/coverage", Type: "application/prs.coverage+json"},
			linkDoc{Href: collURL + "/coverage/domainset", Rel: "http://www.opengis.net/def/rel/ogc/1.0/coverage-domainset", Type: "application/json"},
			linkDoc{Href: collURL + "/coverage/rangetype", Rel: "http://www.opengis.net/def/rel/ogc/1.0/coverage-rangetype", Type: "application/json"})
	}
	if prov := res.Provider(utils.ProviderTypeTile); prov != nil {
		doc.Links = append(doc.Links,
			linkDoc{Href: collURL + "/tiles", Rel: "http://www.opengis.net/def/rel/ogc/1.0/tilesets-map", Type: "application/json"})
	}
	return doc
}

func allCollections(baseURL string) []*collectionDoc {
	var docs []*collectionDoc
	for _, conf := range configMap {
		for _, res := range conf.Resources {
			docs = append(docs, describeCollection(conf, res, baseURL))
		}
	}
	// deterministic listing across config namespaces
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if docs[j].ID < docs[i].ID {
				docs[i], docs[j] = docs[j], docs[i]
			}
		}
	}
	return docs
}

func landingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	conf := rootConfig()
	if conf == nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, "no configuration loaded", 500)
		return
	}
	baseURL := serverURL(conf, r)

	query, _ := utils.ParseQuery(r.URL.RawQuery)
	if f, ok := query["f"]; ok && len(f) > 0 && strings.ToLower(f[0]) == "html" {
		template, err := templateSet.GetTemplate("landing.jet")
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}

		data := struct {
			Title       string
			Description string
			BaseURL     string
			Collections []*collectionDoc
		}{
			Title:       conf.Metadata.Identification.Title,
			Description: conf.Metadata.Identification.Description,
			BaseURL:     baseURL,
			Collections: allCollections(baseURL),
		}

		w.Header().Set("Content-Type", "text/html")
		vars := make(jet.VarMap)
		if err = template.Execute(w, vars, data); err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}
		return
	}

	writeJSON(w, collector, map[string]interface{}{
		"title":       conf.Metadata.Identification.Title,
		"description": conf.Metadata.Identification.Description,
		"links": []linkDoc{
			{Href: baseURL + "/", Rel: "self", Type: "application/json"},
			{Href: baseURL + "/collections", Rel: "data", Type: "application/json", Title: "Collections"},
		},
	})
}

func collectionsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	conf := rootConfig()
	if conf == nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, "no configuration loaded", 500)
		return
	}
	baseURL := serverURL(conf, r)

	writeJSON(w, collector, map[string]interface{}{
		"collections": allCollections(baseURL),
		"links": []linkDoc{
			{Href: baseURL + "/collections", Rel: "self", Type: "application/json"},
		},
	})
}

func collectionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	id := mux.Vars(r)["collectionId"]
	conf, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	writeJSON(w, collector, describeCollection(conf, res, serverURL(conf, r)))
}

func footprintHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	id := mux.Vars(r)["collectionId"]
	_, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeCoverage)
	if prov == nil {
		prov = res.Provider(utils.ProviderTypeTile)
	}
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no providers", id), 404)
		return
	}

	meta, err := getGIMIMetadata(prov.Data)
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	type footprintFeature struct {
		Type       string                 `json:"type"`
		Geometry   json.RawMessage        `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	}
	features := make([]*footprintFeature, 0, len(meta.Images))

	for _, img := range meta.Images {
		rawGeom := fmt.Sprintf(
			`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
			img.UpperLeftLon, img.UpperLeftLat,
			img.LowerRightLon, img.UpperLeftLat,
			img.LowerRightLon, img.LowerRightLat,
			img.UpperLeftLon, img.LowerRightLat,
			img.UpperLeftLon, img.UpperLeftLat)

		// round trip through the geometry types validates the ring
		var feat geo.Feature
		if err := json.Unmarshal([]byte(rawGeom), &feat); err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		geom, err := json.Marshal(feat.Geometry)
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}

		props := map[string]interface{}{
			"item_id": img.ItemID,
			"codec":   img.Codec,
			"n_bands": len(img.Bands),
		}
		if len(img.Title) > 0 {
			props["title"] = img.Title
		}
		if img.BeginPosition != nil {
			props["datetime"] = img.BeginPosition.Format(utils.ISOFormat)
		}

		features = append(features, &footprintFeature{
			Type:       "Feature",
			Geometry:   geom,
			Properties: props,
		})
	}

	out, err := json.Marshal(map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(out)
}

func domainSetHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	id := mux.Vars(r)["collectionId"]
	_, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeCoverage)
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no coverage provider", id), 404)
		return
	}

	meta, err := getGIMIMetadata(prov.Data)
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	grid := nativeGrid(meta)

	writeJSON(w, collector, map[string]interface{}{
		"type": "DomainSet",
		"generalGrid": map[string]interface{}{
			"type":       "GeneralGridCoverage",
			"srsName":    utils.CRS84URI,
			"axisLabels": []string{"Long", "Lat"},
			"axis": []map[string]interface{}{
				{
					"type":       "RegularAxis",
					"axisLabel":  "Long",
					"lowerBound": grid.BBox[0],
					"upperBound": grid.BBox[2],
					"resolution": grid.XRes,
					"uomLabel":   "deg",
				},
				{
					"type":       "RegularAxis",
					"axisLabel":  "Lat",
					"lowerBound": grid.BBox[1],
					"upperBound": grid.BBox[3],
					"resolution": grid.YRes,
					"uomLabel":   "deg",
				},
			},
			"gridLimits": map[string]interface{}{
				"type":       "GridLimits",
				"srsName":    "http://www.opengis.net/def/crs/OGC/0/Index2D",
				"axisLabels": []string{"i", "j"},
				"axis": []map[string]interface{}{
					{"type": "IndexAxis", "axisLabel": "i", "lowerBound": 0, "upperBound": grid.Width - 1},
					{"type": "IndexAxis", "axisLabel": "j", "lowerBound": 0, "upperBound": grid.Height - 1},
				},
			},
		},
	})
}

var dataTypeURIs = map[string]string{
	"Byte":    "http://www.opengis.net/def/dataType/OGC/0/unsignedByte",
	"UInt16":  "http://www.opengis.net/def/dataType/OGC/0/unsignedShort",
	"Int16":   "http://www.opengis.net/def/dataType/OGC/0/signedShort",
	"Float32": "http://www.opengis.net/def/dataType/OGC/0/float32",
}

func rangeTypeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	id := mux.Vars(r)["collectionId"]
	_, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeCoverage)
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no coverage provider", id), 404)
		return
	}

	meta, err := getGIMIMetadata(prov.Data)
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	grid := nativeGrid(meta)

	fields := make([]map[string]interface{}, grid.NBands)
	for i := range fields {
		name := fmt.Sprintf("B%d", i+1)
		field := map[string]interface{}{
			"type":       "Quantity",
			"name":       name,
			"id":         name,
			"definition": dataTypeURIs[grid.ArrayType],
			"uom":        map[string]string{"type": "UnitReference", "code": ""},
		}
		if grid.NoData != nil {
			field["nodata"] = *grid.NoData
		}
		fields[i] = field
	}

	writeJSON(w, collector, map[string]interface{}{
		"type":  "DataRecord",
		"field": fields,
	})
}

var formatMimeTypes = map[string]string{
	"json":    "application/prs.coverage+json",
	"geotiff": "image/tiff;application=geotiff",
	"png":     "image/png",
	"jpeg":    "image/jpeg",
	"html":    "text/html",
	"native":  "image/heif",
}

func formatFromMimeType(mimeType string) string {
	for format, mime := range formatMimeTypes {
		if strings.HasPrefix(mimeType, strings.Split(mime, ";")[0]) && format != "native" {
			return format
		}
	}
	if strings.HasPrefix(mimeType, "application/json") {
		return "json"
	}
	return "json"
}

// providerSchemes lists the tiling schemes a tile provider serves, all
// supported schemes when the config names none.
func providerSchemes(prov *utils.ProviderConfig) []string {
	if len(prov.Options.Schemes) > 0 {
		return prov.Options.Schemes
	}
	return utils.TileMatrixSetIDs()
}

func firstStyle(prov *utils.ProviderConfig) *utils.StyleConfig {
	if len(prov.Options.Styles) > 0 {
		return &prov.Options.Styles[0]
	}
	return nil
}

func styleScaleParams(style *utils.StyleConfig) utils.ScaleParams {
	params := utils.ScaleParams{Clip: 255}
	if style != nil && (style.ScaleValue != 0 || style.ClipValue != 0) {
		params = utils.ScaleParams{Offset: style.OffsetValue, Scale: style.ScaleValue, Clip: style.ClipValue}
	}
	return params
}

func rasterNameSpaces(rs []utils.Raster) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		switch t := r.(type) {
		case *utils.ByteRaster:
			out[i] = t.NameSpace
		case *utils.Int16Raster:
			out[i] = t.NameSpace
		case *utils.UInt16Raster:
			out[i] = t.NameSpace
		case *utils.Float32Raster:
			out[i] = t.NameSpace
		}
		if len(out[i]) == 0 {
			out[i] = fmt.Sprintf("B%d", i+1)
		}
	}
	return out
}

func hasNameSpace(rs []utils.Raster, ns string) bool {
	for _, n := range rasterNameSpaces(rs) {
		if n == ns {
			return true
		}
	}
	return false
}

func coverageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	if *verbose {
		Info.Printf("%s\n", r.URL.String())
	}

	id := mux.Vars(r)["collectionId"]
	conf, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeCoverage)
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no coverage provider", id), 404)
		return
	}

	query, err := utils.ParseQuery(r.URL.RawQuery)
	if err != nil {
		collector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Failed to parse query: %v", err), 400)
		return
	}

	params, err := utils.CoverageParamsChecker(query, reCoverageMap)
	if err != nil {
		collector.Info.HTTPStatus = 400
		http.Error(w, err.Error(), 400)
		return
	}

	format := formatFromMimeType(conf.Server.MimeType)
	if params.Format != nil {
		format = *params.Format
	}

	// a bare coverage request for a non JSON representation serves
	// the container itself
	if format == "native" || (len(query) == 0 && format != "json") {
		w.Header().Set("Content-Type", formatMimeTypes["native"])
		http.ServeFile(w, r, prov.Data)
		return
	}

	if params.BBoxCRS != nil {
		crs := *params.BBoxCRS
		if epsg, e := utils.ExtractEPSGCode(crs); (e != nil || epsg != 4326) && !strings.Contains(crs, "CRS84") {
			collector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("unsupported bbox-crs '%s', only CRS84 is available", crs), 400)
			return
		}
	}

	meta, err := getGIMIMetadata(prov.Data)
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	grid := nativeGrid(meta)

	bbox := grid.BBox
	if len(params.BBox) == 4 {
		bbox = [4]float64{params.BBox[0], params.BBox[1], params.BBox[2], params.BBox[3]}
	}
	if params.Subsets != nil {
		if lat, ok := params.Subsets["Lat"]; ok {
			bbox[1], bbox[3] = lat[0], lat[1]
		}
		if long, ok := params.Subsets["Long"]; ok {
			bbox[0], bbox[2] = long[0], long[1]
		}
	}
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		collector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("empty request window %v", bbox), 400)
		return
	}
	collector.Info.Indexer.BBox = bbox[:]

	width := windowSize(bbox[0], bbox[2], grid.XRes)
	height := windowSize(bbox[1], bbox[3], grid.YRes)

	var bandExpr *utils.BandExpressions
	if len(params.Properties) > 0 {
		bandExpr, err = utils.ParseBandExpressions(params.Properties)
		if err != nil {
			collector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("parsing properties: %v", err), 400)
			return
		}
		for _, ns := range bandExpr.VarList {
			idx, err := strconv.Atoi(strings.TrimPrefix(ns, "B"))
			if err != nil || idx < 1 || idx > grid.NBands {
				collector.Info.HTTPStatus = 400
				http.Error(w, fmt.Sprintf("band '%s' not found, the collection has %d bands", ns, grid.NBands), 400)
				return
			}
		}
	} else if style := firstStyle(prov); style != nil && format != "json" && format != "geotiff" {
		bandExpr = style.BandExprs
	}

	noData := 0.0
	if prov.Options.NoData != nil {
		noData = *prov.Options.NoData
	} else if grid.NoData != nil {
		noData = *grid.NoData
	}

	var nameSpaces []string
	if bandExpr != nil {
		nameSpaces = bandExpr.VarList
	}

	ctx, ctxCancel := context.WithTimeout(r.Context(), coverageRenderTimeout)
	defer ctxCancel()
	errChan := make(chan error, 100)

	geoReq := &proc.GeoTileRequest{
		ConfigPayLoad: proc.ConfigPayLoad{
			NameSpaces:    nameSpaces,
			BandExpr:      bandExpr,
			ScaleParams:   styleScaleParams(firstStyle(prov)),
			Palette:       stylePalette(firstStyle(prov)),
			GrpcConcLimit: defaultConcGrpc,
		},
		Collection: collectionID(res),
		Path:       prov.Data,
		CRS:        "EPSG:4326",
		BBox:       bbox[:],
		Height:     height,
		Width:      width,
		NoData:     noData,
	}

	cp := proc.InitCoveragePipeline(ctx, conf.Server.MASAddress, conf.Server.WorkerNodes, conf.Server.MaxGrpcRecvMsgSize, errChan)
	rs, err := cp.GetRasters(geoReq, *verbose)
	if err != nil {
		Info.Printf("Error in the pipeline: %v\n", err)
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}
	collector.Info.Indexer.NumGranules = len(rs)

	if hasNameSpace(rs, utils.EmptyTileNS) && len(rs) == 1 {
		collector.Info.HTTPStatus = 404
		http.Error(w, "no data within the requested extent", 404)
		return
	}

	switch format {
	case "json":
		out, err := utils.EncodeCoverageJSON(rs, bbox, rasterNameSpaces(rs))
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", formatMimeTypes["json"])
		w.Write(out)

	case "geotiff":
		out, err := utils.EncodeGeoTIFF(rs, proc.BBox2Geot(width, height, bbox[:]), 4326)
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", formatMimeTypes["geotiff"])
		w.Write(out)

	case "png", "jpeg":
		scaled, err := utils.Scale(rs, styleScaleParams(firstStyle(prov)))
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		var out []byte
		if format == "png" {
			out, err = utils.EncodePNG(scaled, stylePalette(firstStyle(prov)))
		} else {
			out, err = utils.EncodeJPEG(scaled, stylePalette(firstStyle(prov)))
		}
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", formatMimeTypes[format])
		w.Write(out)

	case "html":
		serveViewer(w, collector, conf, res, bbox)

	default:
		collector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("unsupported format '%s'", format), 400)
	}
}

func stylePalette(style *utils.StyleConfig) *utils.Palette {
	if style != nil {
		return style.Palette
	}
	return nil
}

func serveViewer(w http.ResponseWriter, collector *metrics.MetricsCollector, conf *utils.Config, res *utils.Resource, bbox [4]float64) {
	template, err := templateSet.GetTemplate("viewer.jet")
	if err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	data := struct {
		Collection     string
		Title          string
		BBox           [4]float64
		MapURL         string
		MapAttribution string
	}{
		Collection:     collectionID(res),
		Title:          res.Title,
		BBox:           bbox,
		MapURL:         conf.Server.Map.URL,
		MapAttribution: conf.Server.Map.Attribution,
	}

	w.Header().Set("Content-Type", "text/html")
	vars := make(jet.VarMap)
	if err = template.Execute(w, vars, data); err != nil {
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
	}
}

func tileSetsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	id := mux.Vars(r)["collectionId"]
	conf, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeTile)
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no tile provider", id), 404)
		return
	}

	baseURL := serverURL(conf, r)
	schemes := providerSchemes(prov)
	tileSets := make([]map[string]interface{}, 0, len(schemes))
	for _, scheme := range schemes {
		tms, err := utils.GetTileMatrixSet(scheme)
		if err != nil {
			continue
		}
		tileSets = append(tileSets, map[string]interface{}{
			"tileMatrixSetId": tms.ID,
			"crs":             tms.CRS,
			"dataType":        "map",
			"links": []linkDoc{
				{
					Href:      fmt.Sprintf("%s/collections/%s/tiles/%s/{tileMatrix}/{tileRow}/{tileCol}", baseURL, id, tms.ID),
					Rel:       "item",
					Type:      "image/png",
					Templated: true,
				},
			},
		})
	}

	writeJSON(w, collector, map[string]interface{}{"tilesets": tileSets})
}

// tileCacheKey packs a rendered tile's identity into a groupcache key.
func tileCacheKey(id, tmsID string, z, x, y int, format string) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d|%s", id, tmsID, z, x, y, format)
}

func tileGetter(_ groupcache.Context, key string, dest groupcache.Sink) error {
	parts := strings.Split(key, "|")
	if len(parts) != 6 {
		return fmt.Errorf("malformed tile cache key '%s'", key)
	}

	conf, res := lookupResource(parts[0])
	if res == nil {
		return fmt.Errorf("collection '%s' not found", parts[0])
	}

	tms, err := utils.GetTileMatrixSet(parts[1])
	if err != nil {
		return err
	}

	z, _ := strconv.Atoi(parts[2])
	x, _ := strconv.Atoi(parts[3])
	y, _ := strconv.Atoi(parts[4])

	tile, err := renderTile(conf, res, tms, z, x, y, parts[5])
	if err != nil {
		return err
	}
	dest.SetBytes(tile)
	return nil
}

func renderTile(conf *utils.Config, res *utils.Resource, tms *utils.TileMatrixSet, z, x, y int, format string) ([]byte, error) {
	prov := res.Provider(utils.ProviderTypeTile)
	if prov == nil {
		return nil, fmt.Errorf("collection '%s' has no tile provider", res.ID)
	}

	bbox, err := tms.TileBBoxCRS84(z, x, y)
	if err != nil {
		return nil, err
	}

	style := firstStyle(prov)
	var bandExpr *utils.BandExpressions
	var nameSpaces []string
	if style != nil && style.BandExprs != nil {
		bandExpr = style.BandExprs
		nameSpaces = bandExpr.VarList
	}

	noData := 0.0
	if prov.Options.NoData != nil {
		noData = *prov.Options.NoData
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), tileRenderTimeout)
	defer ctxCancel()
	errChan := make(chan error, 100)

	geoReq := &proc.GeoTileRequest{
		ConfigPayLoad: proc.ConfigPayLoad{
			NameSpaces:    nameSpaces,
			BandExpr:      bandExpr,
			ScaleParams:   styleScaleParams(style),
			Palette:       stylePalette(style),
			GrpcConcLimit: defaultConcGrpc,
		},
		Collection: collectionID(res),
		Path:       prov.Data,
		CRS:        "EPSG:4326",
		BBox:       bbox[:],
		Height:     utils.TileSize,
		Width:      utils.TileSize,
		NoData:     noData,
	}

	tp := proc.InitTilePipeline(ctx, conf.Server.MASAddress, conf.Server.WorkerNodes, conf.Server.MaxGrpcRecvMsgSize, errChan)

	select {
	case rs := <-tp.Process(geoReq, *verbose):
		if len(rs) == 0 || (len(rs) == 1 && hasNameSpace(rs, utils.EmptyTileNS)) {
			return utils.GetEmptyTile(utils.TileSize, utils.TileSize)
		}
		if hasNameSpace(rs, "OutOfZoom") {
			tile, err := utils.GetWatermarkTile(utils.DataDir+"/static/zoom.png", utils.TileSize, utils.TileSize)
			if err == nil {
				return tile, nil
			}
			return utils.GetEmptyTile(utils.TileSize, utils.TileSize)
		}

		scaled, err := utils.Scale(rs, styleScaleParams(style))
		if err != nil {
			return nil, err
		}
		if format == "jpeg" {
			return utils.EncodeJPEG(scaled, stylePalette(style))
		}
		return utils.EncodePNG(scaled, stylePalette(style))

	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("tile pipeline: %v", ctx.Err())
	}
}

func tileHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	collector, done := startMetrics(r)
	defer done()

	if *verbose {
		Info.Printf("%s\n", r.URL.String())
	}

	vars := mux.Vars(r)
	id := vars["collectionId"]
	_, res := lookupResource(id)
	if res == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' not found", id), 404)
		return
	}
	collector.Info.Collection = id

	prov := res.Provider(utils.ProviderTypeTile)
	if prov == nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("collection '%s' has no tile provider", id), 404)
		return
	}

	tmsID := vars["tileMatrixSetId"]
	schemeOK := false
	for _, scheme := range providerSchemes(prov) {
		if scheme == tmsID {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("tile matrix set '%s' is not available for collection '%s'", tmsID, id), 404)
		return
	}
	tms, err := utils.GetTileMatrixSet(tmsID)
	if err != nil {
		collector.Info.HTTPStatus = 404
		http.Error(w, err.Error(), 404)
		return
	}

	z, errZ := strconv.Atoi(vars["tileMatrix"])
	y, errY := strconv.Atoi(vars["tileRow"])
	x, errX := strconv.Atoi(vars["tileCol"])
	if errZ != nil || errY != nil || errX != nil {
		collector.Info.HTTPStatus = 400
		http.Error(w, "tile indices must be integers", 400)
		return
	}

	if z < prov.Options.Zoom.Min || (prov.Options.Zoom.Max > 0 && z > prov.Options.Zoom.Max) {
		collector.Info.HTTPStatus = 404
		http.Error(w, fmt.Sprintf("zoom level %d outside the configured range %d..%d", z, prov.Options.Zoom.Min, prov.Options.Zoom.Max), 404)
		return
	}

	// unsupported tile formats fall back to png
	format := "png"
	if f, ok := r.URL.Query()["f"]; ok && len(f) > 0 && strings.ToLower(f[0]) == "jpeg" {
		format = "jpeg"
	}

	serveEmpty := func() {
		tile, err := utils.GetEmptyTile(utils.TileSize, utils.TileSize)
		if err != nil {
			collector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(tile)
	}

	// tiles past the edge of the scheme or outside the collection
	// bounds render as fully transparent so map clients keep panning
	if err := tms.CheckTile(z, x, y); err != nil {
		serveEmpty()
		return
	}

	if b := prov.Options.Bounds; len(b) == 4 {
		x0, y0, x1, y1, ok := tms.TileRange([4]float64{b[0], b[1], b[2], b[3]}, z)
		if !ok || x < x0 || x > x1 || y < y0 || y > y1 {
			serveEmpty()
			return
		}
	}

	var tile []byte
	err = tileCache.Get(nil, tileCacheKey(id, tmsID, z, x, y, format), groupcache.AllocatingByteSliceSink(&tile))
	if err != nil {
		Info.Printf("Error in the tile pipeline: %v\n", err)
		collector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	w.Header().Set("Content-Type", formatMimeTypes[format])
	w.Write(tile)
}

func fileHandler(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
		r.URL.Path = upath
	}
	upath = path.Clean(upath)
	upath = filepath.Join(utils.DataDir+"/static", upath)

	if *verbose {
		Info.Printf("%s -> %s\n", r.URL.String(), upath)
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	http.ServeFile(w, r, upath)
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

func withGzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, r)
	})
}

func main() {
	tileCache = groupcache.NewGroup("tiles", tileCacheSize, groupcache.GetterFunc(tileGetter))

	router := mux.NewRouter()
	router.HandleFunc("/", landingHandler)
	router.HandleFunc("/collections", collectionsHandler)
	router.HandleFunc("/collections/{collectionId}", collectionHandler)
	router.HandleFunc("/collections/{collectionId}/footprint", footprintHandler)
	router.HandleFunc("/collections/{collectionId}/coverage", coverageHandler)
	router.HandleFunc("/collections/{collectionId}/coverage/domainset", domainSetHandler)
	router.HandleFunc("/collections/{collectionId}/coverage/rangetype", rangeTypeHandler)
	router.HandleFunc("/collections/{collectionId}/tiles", tileSetsHandler)
	router.HandleFunc("/collections/{collectionId}/tiles/{tileMatrixSetId}/{tileMatrix}/{tileRow}/{tileCol}", tileHandler)
	router.PathPrefix("/static/").HandlerFunc(fileHandler)

	conf := rootConfig()

	listenPort := *port
	if listenPort == 0 {
		listenPort = 8080
		if conf != nil && conf.Server.Bind.Port > 0 {
			listenPort = conf.Server.Bind.Port
		}
	}
	host := ""
	if conf != nil {
		host = conf.Server.Bind.Host
	}

	var handler http.Handler = router
	if conf != nil && conf.Server.Gzip {
		handler = withGzip(handler)
	}

	// the default mux keeps the pprof endpoints reachable
	http.Handle("/", handler)

	addr := fmt.Sprintf("%s:%d", host, listenPort)
	listener, err := reuseport.Listen("tcp", addr)
	if err != nil {
		Error.Fatalf("Failed to listen on %s: %v", addr, err)
	}

	Info.Printf("GIMI OWS is ready on %s", addr)
	log.Fatal(http.Serve(listener, nil))
}
