package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"time"

	proc "github.com/gimi-testbed/gimi-ows/processor"
	"golang.org/x/crypto/ssh/terminal"
)

var landingURL string = "http://%s/"
var collectionsURL string = "http://%s/collections"
var passed string = "Passed"
var failed string = "Failed"

func Get200(host, req string) bool {
	resp, err := http.Get(fmt.Sprintf(req, host))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200
}

// Collections fetches the collection list and walks every advertised
// metadata endpoint of every collection.
func Collections(host string) bool {
	resp, err := http.Get(fmt.Sprintf(collectionsURL, host))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return false
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	var doc struct {
		Collections []struct {
			ID    string `json:"id"`
			Links []struct {
				Href string `json:"href"`
			} `json:"links"`
		} `json:"collections"`
	}
	if err = json.Unmarshal(body, &doc); err != nil {
		fmt.Println(string(body))
		return false
	}
	if len(doc.Collections) == 0 {
		fmt.Println("no collections published")
		return false
	}

	for _, coll := range doc.Collections {
		for _, link := range coll.Links {
			resp, err := http.Get(link.Href)
			if err != nil {
				log.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != 200 {
				fmt.Printf("%s returned %d\n", link.Href, resp.StatusCode)
				return false
			}
		}
	}
	return true
}

// Tiles fires the tile requests listed in urlList at the server.
// Each line is a URL template with a %s placeholder for the host.
func Tiles(host, urlList string, concLevel int) (bool, time.Duration) {
	out := true
	start := time.Now()
	f, err := os.Open(urlList)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	conc := proc.NewConcLimiter(concLevel)
	results := make(chan int)
	defer close(results)
	go func() {
		for res := range results {
			if res != 200 {
				out = false
			}
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		conc.Increase()
		go func(url string) {
			resp, err := http.Get(fmt.Sprintf(url, host))
			if err != nil {
				log.Fatal(err)
			}
			resp.Body.Close()
			results <- resp.StatusCode
			conc.Decrease()
		}(scanner.Text())
	}

	conc.Wait()

	return out, time.Since(start)
}

// Coverage requests a CoverageJSON subset from every collection that
// advertises a coverage link and checks the document parses.
func Coverage(host string) bool {
	resp, err := http.Get(fmt.Sprintf(collectionsURL, host))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	var doc struct {
		Collections []struct {
			ID    string `json:"id"`
			Links []struct {
				Href string `json:"href"`
				Rel  string `json:"rel"`
			} `json:"links"`
		} `json:"collections"`
	}
	if err = json.Unmarshal(body, &doc); err != nil {
		return false
	}

	for _, coll := range doc.Collections {
		for _, link := range coll.Links {
			if link.Rel != "http://www.opengis.net/def/rel/ogc/1.0/coverage" {
				continue
			}
			resp, err := http.Get(link.Href + "?f=json")
			if err != nil {
				log.Fatal(err)
			}
			covBody, _ := ioutil.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode != 200 {
				fmt.Printf("%s returned %d\n", link.Href, resp.StatusCode)
				return false
			}

			var cov struct {
				Type string `json:"type"`
			}
			if err = json.Unmarshal(covBody, &cov); err != nil || cov.Type != "Coverage" {
				fmt.Printf("%s did not return a Coverage document\n", link.Href)
				return false
			}
		}
	}
	return true
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func main() {
	host := flag.String("h", "localhost:8080", "OWS host name or address")
	suite := flag.String("s", "api", "Test suite [api, tiles, coverage]")
	conc := flag.Int("n", 6, "Concurrency level for acceptance tests")
	flag.Parse()

	var t time.Duration
	var ok bool

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	switch *suite {
	case "api":
		fmt.Printf("Testing landing page: ")
		if !Get200(*host, landingURL) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)

		fmt.Printf("Testing collection metadata: ")
		if !Collections(*host) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)
	case "tiles":
		fmt.Printf("Testing tile rendering: ")
		if ok, t = Tiles(*host, "acpt_url.tpl", *conc); !ok {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed, t)
	case "coverage":
		fmt.Printf("Testing coverage subsets: ")
		if !Coverage(*host) {
			fmt.Println(failed)
			os.Exit(1)
		}
		fmt.Println(passed)
	}
}
