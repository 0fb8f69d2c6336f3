package metrics

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMetricsInfoToJSON(t *testing.T) {
	info := &MetricsInfo{
		ReqTime:     time.Now().Format(time.RFC3339),
		ReqDuration: 120 * time.Millisecond,
		URL:         URLInfo{RawURL: "http://localhost:5000/collections/hawaii/coverage?f=json&subset=Lat(18:21)"},
		RemoteAddr:  "10.0.0.1:51234",
		HTTPStatus:  200,
		Collection:  "hawaii",
		Indexer:     &IndexerInfo{NumGranules: 2, BBox: []float64{-156.3, 18.8, -154.7, 20.4}},
		Decode:      &DecodeInfo{NumGranules: 2, BytesRead: 4096},
	}

	out, err := info.ToJSON()
	if err != nil {
		t.Fatalf("metrics json test failed, %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("metrics json round trip test failed, %v", err)
	}

	if decoded["remote_host"] != "10.0.0.1" || decoded["remote_port"] != "51234" {
		t.Errorf("remote addr test failed, actual %v/%v", decoded["remote_host"], decoded["remote_port"])
	}

	urlInfo := decoded["url"].(map[string]interface{})
	if urlInfo["path"] != "/collections/hawaii/coverage" {
		t.Errorf("url path test failed, actual %v", urlInfo["path"])
	}
	query := urlInfo["query"].(map[string]interface{})
	if query["subset"] != "Lat(18:21)" {
		t.Errorf("url query test failed, actual %v", query)
	}

	if decoded["collection"] != "hawaii" {
		t.Errorf("collection test failed, actual %v", decoded["collection"])
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	l := &FileLogger{LogDir: dir, MaxLogFileSize: 1, MaxLogFiles: 2}

	for i := 0; i < 4; i++ {
		if err := ioutil.WriteFile(l.shardPath(0), []byte("{}\n"), 0644); err != nil {
			t.Fatalf("rotation test failed, %v", err)
		}
		if err := l.rotateShard(0); err != nil {
			t.Fatalf("rotation test failed, %v", err)
		}
	}

	matches, err := filepath.Glob(l.shardPath(0) + ".*")
	if err != nil {
		t.Fatalf("rotation test failed, %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("rotation prune test failed, expecting 2 files, actual %d", len(matches))
	}
	if _, err := os.Stat(l.shardPath(0)); !os.IsNotExist(err) {
		t.Errorf("rotation test failed, active shard still present")
	}
}
