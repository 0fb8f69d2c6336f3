package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CoverageParams contains the serialised version
// of the parameters contained in a coverage request.
type CoverageParams struct {
	BBox       []float64 `json:"bbox,omitempty"`
	BBoxCRS    *string   `json:"bbox_crs,omitempty"`
	Properties []string  `json:"properties,omitempty"`
	Format     *string   `json:"f,omitempty"`

	// Subsets maps axis label to lo:hi bounds, filled outside the
	// JSON round trip.
	Subsets map[string][2]float64 `json:"-"`
}

// CoverageRegexpMap maps coverage request parameters to
// regular expressions for doing validation
// when parsing.
var CoverageRegexpMap = map[string]string{
	"bbox":       `^[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?(,[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?){3}$`,
	"bbox-crs":   `^(?i)(?:[A-Z]+):(?:[0-9]+)$|^http.+$`,
	"properties": `^[A-Za-z_0-9\s.+\-*/()=,]+$`,
	"f":          `^(?i)(json|png|jpeg|geotiff|html|native)$`,
	"subset":     `^(Lat|Long)\(([-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?)\)$`,
}

func CompileCoverageRegexMap() map[string]*regexp.Regexp {
	REMap := make(map[string]*regexp.Regexp)
	for key, re := range CoverageRegexpMap {
		REMap[key] = regexp.MustCompile(re)
	}

	return REMap
}

// CoverageParamsChecker checks and marshals the content
// of the parameters of a coverage request into a
// CoverageParams struct.
func CoverageParamsChecker(params map[string][]string, compREMap map[string]*regexp.Regexp) (CoverageParams, error) {

	jsonFields := []string{}

	if bbox, bboxOK := params["bbox"]; bboxOK {
		if !compREMap["bbox"].MatchString(bbox[0]) {
			return CoverageParams{}, fmt.Errorf("invalid bbox '%s'", bbox[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"bbox":[%s]`, bbox[0]))
	}

	if crs, crsOK := params["bbox-crs"]; crsOK {
		if !compREMap["bbox-crs"].MatchString(crs[0]) {
			return CoverageParams{}, fmt.Errorf("invalid bbox-crs '%s'", crs[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"bbox_crs":"%s"`, crs[0]))
	}

	if props, propsOK := params["properties"]; propsOK {
		if !compREMap["properties"].MatchString(props[0]) {
			return CoverageParams{}, fmt.Errorf("invalid properties '%s'", props[0])
		}
		bands := strings.Split(props[0], ",")
		for i, b := range bands {
			bands[i] = fmt.Sprintf(`"%s"`, strings.TrimSpace(b))
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"properties":[%s]`, strings.Join(bands, ",")))
	}

	if format, formatOK := params["f"]; formatOK {
		if !compREMap["f"].MatchString(format[0]) {
			return CoverageParams{}, fmt.Errorf("unsupported format '%s'", format[0])
		}
		jsonFields = append(jsonFields, fmt.Sprintf(`"f":"%s"`, strings.ToLower(format[0])))
	}

	jsonParams := fmt.Sprintf("{%s}", strings.Join(jsonFields, ","))

	var covParams CoverageParams
	err := json.Unmarshal([]byte(jsonParams), &covParams)
	if err != nil {
		return covParams, err
	}

	if subsets, subsetsOK := params["subset"]; subsetsOK {
		covParams.Subsets = make(map[string][2]float64)
		for _, subset := range subsets {
			m := compREMap["subset"].FindStringSubmatch(subset)
			if m == nil {
				return covParams, fmt.Errorf("invalid subset '%s', expecting Lat(lo:hi) or Long(lo:hi)", subset)
			}
			var lo, hi float64
			fmt.Sscanf(m[2], "%g", &lo)
			fmt.Sscanf(m[4], "%g", &hi)
			covParams.Subsets[m[1]] = [2]float64{lo, hi}
		}
	}

	if len(covParams.BBox) > 0 && len(covParams.BBox) != 4 {
		return covParams, fmt.Errorf("bbox must have 4 values, got %d", len(covParams.BBox))
	}

	// bbox and coordinate subsetting are exclusive
	if len(covParams.BBox) > 0 && covParams.Subsets != nil {
		_, hasLat := covParams.Subsets["Lat"]
		_, hasLong := covParams.Subsets["Long"]
		if hasLat && hasLong {
			return covParams, fmt.Errorf("bbox and subsetting by coordinates are exclusive")
		}
	}

	return covParams, nil
}
