package utils

import (
	"fmt"
	"image/color"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	yaml "gopkg.in/yaml.v2"
)

var LibexecDir = "."
var EtcDir = "."
var DataDir = "."

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

const DefaultRecvMsgSize = 10 * 1024 * 1024

// ProviderTypeCoverage and ProviderTypeTile are the two provider kinds
// a resource may declare.
const (
	ProviderTypeCoverage = "coverage"
	ProviderTypeTile     = "tile"
)

type BindConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MapConfig struct {
	URL         string `yaml:"url"`
	Attribution string `yaml:"attribution"`
}

type ServerConfig struct {
	Bind               BindConfig `yaml:"bind"`
	URL                string     `yaml:"url"`
	MimeType           string     `yaml:"mimetype"`
	Encoding           string     `yaml:"encoding"`
	Gzip               bool       `yaml:"gzip"`
	Languages          []string   `yaml:"languages"`
	Limit              int        `yaml:"limit"`
	Map                MapConfig  `yaml:"map"`
	TempDir            string     `yaml:"temp_dir"`
	MASAddress         string     `yaml:"mas_address"`
	WorkerNodes        []string   `yaml:"worker_nodes"`
	MaxGrpcRecvMsgSize int        `yaml:"max_grpc_recv_msg_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type IdentificationConfig struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	TermsOfService string `yaml:"terms_of_service"`
	URL         string   `yaml:"url"`
}

type LicenseConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type ProviderInfoConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type ContactConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	City    string `yaml:"city"`
	Country string `yaml:"country"`
	Email   string `yaml:"email"`
	Role    string `yaml:"role"`
}

type MetadataConfig struct {
	Identification IdentificationConfig `yaml:"identification"`
	License        LicenseConfig        `yaml:"license"`
	Provider       ProviderInfoConfig   `yaml:"provider"`
	Contact        ContactConfig        `yaml:"contact"`
}

type SpatialExtentConfig struct {
	Bbox []float64 `yaml:"bbox"`
	CRS  string    `yaml:"crs"`
}

type TemporalExtentConfig struct {
	Begin string `yaml:"begin"`
	End   string `yaml:"end"`
}

type ExtentsConfig struct {
	Spatial  SpatialExtentConfig  `yaml:"spatial"`
	Temporal TemporalExtentConfig `yaml:"temporal"`
}

type FormatConfig struct {
	Name     string `yaml:"name"`
	MimeType string `yaml:"mimetype"`
}

type ZoomConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Palette is a colour ramp applied to single-band renderings. Colours
// are given as `#RRGGBB` or `#RRGGBBAA` strings in the config.
type Palette struct {
	Interpolate bool         `yaml:"interpolate"`
	Colours     []color.RGBA `yaml:"-"`
	RawColours  []string     `yaml:"colours"`
}

func (p *Palette) parseColours() error {
	p.Colours = make([]color.RGBA, len(p.RawColours))
	for i, raw := range p.RawColours {
		s := strings.TrimPrefix(raw, "#")
		var r, g, b, a uint8 = 0, 0, 0, 0xFF
		var err error
		switch len(s) {
		case 6:
			_, err = fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b)
		case 8:
			_, err = fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a)
		default:
			err = fmt.Errorf("bad length")
		}
		if err != nil {
			return fmt.Errorf("invalid palette colour '%s'", raw)
		}
		p.Colours[i] = color.RGBA{R: r, G: g, B: b, A: a}
	}
	return nil
}

// StyleConfig is a named rendering of a coverage: a set of band
// expressions with scaling and an optional palette.
type StyleConfig struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Expressions []string `yaml:"expressions"`
	OffsetValue float64  `yaml:"offset_value"`
	ScaleValue  float64  `yaml:"scale_value"`
	ClipValue   float64  `yaml:"clip_value"`
	Palette     *Palette `yaml:"palette"`

	BandExprs *BandExpressions `yaml:"-"`
}

type ProviderOptions struct {
	Zoom           ZoomConfig `yaml:"zoom"`
	Schemes        []string   `yaml:"schemes"`
	Bounds         []float64  `yaml:"bounds"`
	MetadataFormat string     `yaml:"metadata_format"`

	CRS    string        `yaml:"crs"`
	NoData *float64      `yaml:"nodata"`
	Styles []StyleConfig `yaml:"styles"`
}

// ProviderConfig binds a GIMI data file to a coverage or tile provider.
type ProviderConfig struct {
	Type    string          `yaml:"type"`
	Name    string          `yaml:"name"`
	Data    string          `yaml:"data"`
	Options ProviderOptions `yaml:"options"`
	Format  FormatConfig    `yaml:"format"`
}

// Resource is one published collection.
type Resource struct {
	Type        string           `yaml:"type"`
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Keywords    []string         `yaml:"keywords"`
	Extents     ExtentsConfig    `yaml:"extents"`
	Providers   []ProviderConfig `yaml:"providers"`

	// ID is the resource key, filled at load.
	ID string `yaml:"-"`
	// NameSpace is the config subdirectory, filled at load.
	NameSpace string `yaml:"-"`
}

// Provider returns the resource's provider of the given type, or nil.
func (r *Resource) Provider(typ string) *ProviderConfig {
	for i := range r.Providers {
		if r.Providers[i].Type == typ {
			return &r.Providers[i]
		}
	}
	return nil
}

// Config is the parsed config.yaml document.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Logging   LoggingConfig        `yaml:"logging"`
	Metadata  MetadataConfig       `yaml:"metadata"`
	Resources map[string]*Resource `yaml:"resources"`
}

var knownSchemes = map[string]bool{
	"WorldCRS84Quad":  true,
	"WebMercatorQuad": true,
}

// LoadConfigFile unmarshals a config.yaml document and validates it.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = yaml.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
	}

	if config.Server.MimeType == "" {
		config.Server.MimeType = "application/json"
	}
	if config.Server.Limit <= 0 {
		config.Server.Limit = 10
	}
	if config.Server.MaxGrpcRecvMsgSize <= 0 {
		config.Server.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
	}

	for id, res := range config.Resources {
		res.ID = id
		if res.Type != "collection" {
			return fmt.Errorf("resource %s: unsupported type '%s'", id, res.Type)
		}
		if len(res.Providers) == 0 {
			return fmt.Errorf("resource %s: no providers", id)
		}

		for i := range res.Providers {
			prov := &res.Providers[i]
			if prov.Type != ProviderTypeCoverage && prov.Type != ProviderTypeTile {
				return fmt.Errorf("resource %s: unsupported provider type '%s'", id, prov.Type)
			}
			if prov.Data == "" {
				return fmt.Errorf("resource %s: provider %s has no data file", id, prov.Type)
			}
			if !filepath.IsAbs(prov.Data) {
				prov.Data = filepath.Join(DataDir, prov.Data)
			}

			if prov.Type == ProviderTypeTile {
				opts := &prov.Options
				if len(opts.Schemes) == 0 {
					opts.Schemes = []string{"WorldCRS84Quad", "WebMercatorQuad"}
				}
				for _, scheme := range opts.Schemes {
					if !knownSchemes[scheme] {
						return fmt.Errorf("resource %s: unknown tile matrix set '%s'", id, scheme)
					}
				}
				if opts.Zoom.Max < opts.Zoom.Min {
					return fmt.Errorf("resource %s: zoom.max %d below zoom.min %d", id, opts.Zoom.Max, opts.Zoom.Min)
				}
				if len(opts.Bounds) != 0 && len(opts.Bounds) != 4 {
					return fmt.Errorf("resource %s: bounds must have 4 values, got %d", id, len(opts.Bounds))
				}
			}

			for s := range prov.Options.Styles {
				style := &prov.Options.Styles[s]
				if len(style.Expressions) > 0 {
					style.BandExprs, err = ParseBandExpressions(style.Expressions)
					if err != nil {
						return fmt.Errorf("resource %s: style %s: %v", id, style.Name, err)
					}
				}
				if style.Palette != nil {
					if len(style.Palette.RawColours) < 2 {
						return fmt.Errorf("resource %s: style %s: the colour palette must contain at least 2 colours", id, style.Name)
					}
					if err := style.Palette.parseColours(); err != nil {
						return fmt.Errorf("resource %s: style %s: %v", id, style.Name, err)
					}
				}
			}
		}
	}
	return nil
}

// LoadAllConfigFiles walks rootDir looking for config.yaml documents.
// Each subdirectory forms a namespace prefixed to its resource IDs.
func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == "config.yaml" {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config

			ns := relPath
			if relPath == "." {
				ns = ""
			}
			for _, res := range config.Resources {
				res.NameSpace = ns
			}
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

// DumpConfig renders the loaded configuration back to YAML.
func DumpConfig(configMap map[string]*Config) (string, error) {
	out, err := yaml.Marshal(configMap)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config) {
	// Catch SIGHUP to automatically reload config
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-sighup:
				infoLog.Println("Caught SIGHUP, reloading config...")
				confMap, err := LoadAllConfigFiles(EtcDir)
				if err != nil {
					errLog.Printf("Error in loading config files: %v\n", err)
					return
				}

				for k := range *configMap {
					delete(*configMap, k)
				}

				for k := range confMap {
					(*configMap)[k] = confMap[k]
				}
			}
		}
	}()
}
