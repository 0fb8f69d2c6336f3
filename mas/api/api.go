// Granule metadata API.
//
// Serves the image item catalogue the crawler extracts from GIMI
// files. The tile and coverage pipelines query it with ?intersects,
// the crawler posts new granules with ?ingest.

package main

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
)

var (
	db       *sql.DB
	mc       *memcache.Client
	dbName   = flag.String("database", "mas", "database name")
	dbUser   = flag.String("user", "api", "database user name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

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
	NoData       *float64   `json:"no_data"`
	TimeStamp    *time.Time `json:"timestamp"`
}

type IngestDocument struct {
	Dataset  string     `json:"dataset"`
	Granules []*Granule `json:"gimi"`
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

// wktEnvelope computes the bounding box of the POLYGON wkt the
// pipelines send. Only the outer ring is looked at.
func wktEnvelope(wkt string) ([]float64, error) {
	var coords []float64
	var x, y float64
	n, err := fmt.Sscanf(wkt, "POLYGON ((%f %f", &x, &y)
	if err != nil || n != 2 {
		return nil, fmt.Errorf("unsupported wkt geometry: %v", wkt)
	}

	env := []float64{x, y, x, y}
	rest := wkt
	for {
		idx := -1
		for i := 0; i < len(rest); i++ {
			if rest[i] == ',' {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		rest = rest[idx+1:]
		if n, err := fmt.Sscanf(rest, "%f %f", &x, &y); err != nil || n != 2 {
			return nil, fmt.Errorf("unsupported wkt geometry: %v", wkt)
		}
		if x < env[0] {
			env[0] = x
		}
		if y < env[1] {
			env[1] = y
		}
		if x > env[2] {
			env[2] = x
		}
		if y > env[3] {
			env[3] = y
		}
		coords = append(coords, x, y)
	}

	if len(coords) < 6 {
		return nil, fmt.Errorf("wkt polygon ring too short: %v", wkt)
	}
	return env, nil
}

func intersectsHandler(response http.ResponseWriter, request *http.Request) {
	wkt := request.FormValue("wkt")
	env := []float64{-180, -90, 180, 90}
	if len(wkt) > 0 {
		var err error
		env, err = wktEnvelope(wkt)
		if err != nil {
			httpJSONError(response, err, 400)
			return
		}
	}

	// nullif() coerces Go's empty string zero values for missing
	// parameters into proper null arguments
	rows, err := db.Query(
		`select path, item_id, codec, codec_config, extents, array_type,
			n_bands, geo_transform, minx, miny, maxx, maxy, no_data, ts
		from granules
		where dataset = $1
			and maxx > $2 and minx < $4 and maxy > $3 and miny < $5
			and (nullif($6,'')::timestamptz is null or ts is null or ts >= nullif($6,'')::timestamptz)
			and (nullif($7,'')::timestamptz is null or ts is null or ts <= nullif($7,'')::timestamptz)
		order by ts, path, item_id`,
		request.URL.Path,
		env[0], env[1], env[2], env[3],
		request.FormValue("time"),
		request.FormValue("until"),
	)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}
	defer rows.Close()

	granules := make([]*Granule, 0)
	for rows.Next() {
		g := &Granule{}
		var extents pq.Int64Array
		var geot pq.Float64Array
		var minx, miny, maxx, maxy float64
		var noData sql.NullFloat64
		var ts pq.NullTime
		err = rows.Scan(&g.Path, &g.ItemID, &g.Codec, &g.CodecConfig,
			&extents, &g.ArrayType, &g.NBands,
			&geot, &minx, &miny, &maxx, &maxy, &noData, &ts)
		if err != nil {
			httpJSONError(response, err, 500)
			return
		}

		for _, e := range extents {
			g.Extents = append(g.Extents, uint64(e))
		}
		g.GeoTransform = []float64(geot)
		g.BBox = []float64{minx, miny, maxx, maxy}
		if noData.Valid {
			g.NoData = &noData.Float64
		}
		if ts.Valid {
			g.TimeStamp = &ts.Time
		}
		granules = append(granules, g)
	}
	if err = rows.Err(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	payload, err := json.Marshal(map[string]interface{}{"gimi": granules})
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	response.Write(payload)

	if mc != nil {
		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash := hex.EncodeToString(buff[:])
		// don't care about errors; memcache may not necessarily retain this anyway
		mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}

func ingestHandler(response http.ResponseWriter, request *http.Request) {
	if request.Method != "POST" {
		httpJSONError(response, errors.New("ingest requires POST"), 405)
		return
	}

	body, err := ioutil.ReadAll(request.Body)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}

	var doc IngestDocument
	if err = json.Unmarshal(body, &doc); err != nil {
		httpJSONError(response, err, 400)
		return
	}
	if len(doc.Dataset) == 0 {
		doc.Dataset = request.URL.Path
	}

	tx, err := db.Begin()
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	stmt, err := tx.Prepare(
		`insert into granules (dataset, path, item_id, codec, codec_config,
			extents, array_type, n_bands, geo_transform,
			minx, miny, maxx, maxy, no_data, ts)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		on conflict (dataset, path, item_id) do update set
			codec = excluded.codec, codec_config = excluded.codec_config,
			extents = excluded.extents, array_type = excluded.array_type,
			n_bands = excluded.n_bands, geo_transform = excluded.geo_transform,
			minx = excluded.minx, miny = excluded.miny,
			maxx = excluded.maxx, maxy = excluded.maxy,
			no_data = excluded.no_data, ts = excluded.ts`)
	if err != nil {
		tx.Rollback()
		httpJSONError(response, err, 500)
		return
	}

	for _, g := range doc.Granules {
		if len(g.BBox) != 4 || len(g.GeoTransform) != 6 {
			tx.Rollback()
			httpJSONError(response, fmt.Errorf("granule %s/%d has no georeference", g.Path, g.ItemID), 400)
			return
		}

		extents := make([]int64, len(g.Extents))
		for i, e := range g.Extents {
			extents[i] = int64(e)
		}

		var noData interface{}
		if g.NoData != nil {
			noData = *g.NoData
		}
		var ts interface{}
		if g.TimeStamp != nil {
			ts = *g.TimeStamp
		}

		_, err = stmt.Exec(doc.Dataset, g.Path, g.ItemID, g.Codec, g.CodecConfig,
			pq.Array(extents), g.ArrayType, g.NBands, pq.Array(g.GeoTransform),
			g.BBox[0], g.BBox[1], g.BBox[2], g.BBox[3], noData, ts)
		if err != nil {
			tx.Rollback()
			httpJSONError(response, err, 500)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	fmt.Fprintf(response, `{ "ingested": %d }`, len(doc.Granules))
}

func handler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	query := request.URL.Query()

	if _, ok := query["intersects"]; ok {
		if mc != nil {
			buff := md5.Sum([]byte(request.URL.RequestURI()))
			hash := hex.EncodeToString(buff[:])
			if cached, ok := mc.Get(hash); ok == nil {
				response.Write(cached.Value)
				return
			}
		}
		intersectsHandler(response, request)
		return
	}

	if _, ok := query["ingest"]; ok {
		ingestHandler(response, request)
		return
	}

	httpJSONError(response, errors.New("unknown operation; currently supported: ?intersects, ?ingest"), 400)
}

func ensureSchema() error {
	_, err := db.Exec(
		`create table if not exists granules (
			dataset text not null,
			path text not null,
			item_id bigint not null,
			codec text not null,
			codec_config bytea,
			extents bigint[],
			array_type text not null,
			n_bands integer not null,
			geo_transform double precision[] not null,
			minx double precision not null,
			miny double precision not null,
			maxx double precision not null,
			maxy double precision not null,
			no_data double precision,
			ts timestamptz,
			primary key (dataset, path, item_id)
		)`)
	return err
}

func main() {
	flag.Parse()

	log.Printf("dbUser %s dbName %s dbPool %d httpPort %d", *dbUser, *dbName, *dbPool, *httpPort)

	dbinfo := fmt.Sprintf("user=%s host=/var/run/postgresql dbname=%s sslmode=disable", *dbUser, *dbName)

	var err error
	db, err = sql.Open("postgres", dbinfo)

	if err != nil {
		panic(err)
	}

	defer db.Close()

	db.SetMaxIdleConns(*dbPool)
	db.SetMaxOpenConns(*dbLimit)

	if err = ensureSchema(); err != nil {
		log.Fatal(err)
	}

	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		mc = memcache.New(*mcURI)
	}

	http.HandleFunc("/", handler)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *httpPort), nil))
}
