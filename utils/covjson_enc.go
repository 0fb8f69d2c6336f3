package utils

import (
	"encoding/json"
	"fmt"
)

const CRS84URI = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"

type CovJSONAxis struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Num   int     `json:"num"`
}

type CovJSONReferenceSystem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type CovJSONReferencing struct {
	Coordinates []string               `json:"coordinates"`
	System      CovJSONReferenceSystem `json:"system"`
}

type CovJSONDomain struct {
	Type        string                 `json:"type"`
	DomainType  string                 `json:"domainType"`
	Axes        map[string]CovJSONAxis `json:"axes"`
	Referencing []CovJSONReferencing   `json:"referencing"`
}

type CovJSONObservedProperty struct {
	ID    *string           `json:"id"`
	Label map[string]*string `json:"label"`
}

type CovJSONParameter struct {
	Type             string                  `json:"type"`
	Description      *string                 `json:"description"`
	Unit             map[string]*string      `json:"unit"`
	ObservedProperty CovJSONObservedProperty `json:"observedProperty"`
}

type CovJSONRange struct {
	Type      string     `json:"type"`
	DataType  string     `json:"dataType"`
	AxisNames []string   `json:"axisNames"`
	Shape     []int      `json:"shape"`
	Values    []*float64 `json:"values"`
}

type CovJSON struct {
	Type       string                      `json:"type"`
	Domain     CovJSONDomain               `json:"domain"`
	Parameters map[string]CovJSONParameter `json:"parameters"`
	Ranges     map[string]CovJSONRange     `json:"ranges"`
}

func rasterValues(r Raster) []*float64 {
	val := func(v, noData float64) *float64 {
		if v == noData {
			return nil
		}
		return &v
	}

	switch t := r.(type) {
	case *ByteRaster:
		out := make([]*float64, len(t.Data))
		for i, v := range t.Data {
			out[i] = val(float64(v), t.NoData)
		}
		return out
	case *Int16Raster:
		out := make([]*float64, len(t.Data))
		for i, v := range t.Data {
			out[i] = val(float64(v), t.NoData)
		}
		return out
	case *UInt16Raster:
		out := make([]*float64, len(t.Data))
		for i, v := range t.Data {
			out[i] = val(float64(v), t.NoData)
		}
		return out
	case *Float32Raster:
		out := make([]*float64, len(t.Data))
		for i, v := range t.Data {
			out[i] = val(float64(v), t.NoData)
		}
		return out
	}
	return nil
}

// EncodeCoverageJSON renders band rasters into a CoverageJSON grid
// coverage over bbox (minx, miny, maxx, maxy in CRS84). bandIDs names
// the range keys, one per raster, usually the 1-based band indexes.
func EncodeCoverageJSON(rs []Raster, bbox [4]float64, bandIDs []string) ([]byte, error) {
	width, height, _, err := ValidateRasterSlice(rs)
	if err != nil {
		return nil, fmt.Errorf("Error validating raster: %v", err)
	}
	if len(bandIDs) != len(rs) {
		return nil, fmt.Errorf("%d band ids for %d rasters", len(bandIDs), len(rs))
	}

	cj := &CovJSON{
		Type: "Coverage",
		Domain: CovJSONDomain{
			Type:       "Domain",
			DomainType: "Grid",
			Axes: map[string]CovJSONAxis{
				"x": {Start: bbox[0], Stop: bbox[2], Num: width},
				"y": {Start: bbox[3], Stop: bbox[1], Num: height},
			},
			Referencing: []CovJSONReferencing{{
				Coordinates: []string{"x", "y"},
				System:      CovJSONReferenceSystem{Type: "GeographicCRS", ID: CRS84URI},
			}},
		},
		Parameters: make(map[string]CovJSONParameter),
		Ranges:     make(map[string]CovJSONRange),
	}

	for i, r := range rs {
		key := bandIDs[i]
		cj.Parameters[key] = CovJSONParameter{
			Type: "Parameter",
			Unit: map[string]*string{"symbol": nil},
			ObservedProperty: CovJSONObservedProperty{
				Label: map[string]*string{"en": nil},
			},
		}
		cj.Ranges[key] = CovJSONRange{
			Type:      "NdArray",
			DataType:  "float",
			AxisNames: []string{"y", "x"},
			Shape:     []int{height, width},
			Values:    rasterValues(r),
		}
	}

	return json.Marshal(cj)
}
