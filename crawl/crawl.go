package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"os"

	extr "github.com/gimi-testbed/gimi-ows/crawl/extractor"
	yaml "gopkg.in/yaml.v2"
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	conc := flag.Int("conc", 16, "crawl concurrency for directory trees")
	pattern := flag.String("pattern", "", "file match expression, e.g. type == 'f' && path =~ '.heif$'")
	followSymlink := flag.Bool("follow_symlink", false, "follow symlinks while crawling")
	outputFormat := flag.String("fmt", "json", "output format: json, yaml or tsv")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Please provide a path to a file or directory, or '-' for reading from stdin")
	}

	path := flag.Arg(0)

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		path = scanner.Text()
	}

	fStat, err := os.Stat(path)
	ensure(err)

	if fStat.IsDir() {
		ensure(extr.ExtractPosix(path, *conc, *pattern, *followSymlink, *outputFormat))
		return
	}

	geoFile, err := extr.ExtractGIMIInfo(path)
	ensure(err)

	var out []byte
	if *outputFormat == "yaml" {
		out, err = yaml.Marshal(geoFile)
	} else {
		out, err = json.Marshal(geoFile)
	}
	ensure(err)

	_, err = os.Stdout.Write(out)
	ensure(err)
}
