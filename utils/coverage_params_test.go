package utils

import (
	"testing"
)

func TestCoverageParamsChecker(t *testing.T) {
	reMap := CompileCoverageRegexMap()

	params, err := CoverageParamsChecker(map[string][]string{
		"bbox":       {"140.0,-40.0,150.0,-30.0"},
		"properties": {"1,3"},
		"f":          {"json"},
	}, reMap)
	if err != nil {
		t.Fatalf("params test failed, %v", err)
	}
	if len(params.BBox) != 4 || params.BBox[0] != 140.0 || params.BBox[3] != -30.0 {
		t.Errorf("bbox test failed, actual %v", params.BBox)
	}
	if len(params.Properties) != 2 || params.Properties[1] != "3" {
		t.Errorf("properties test failed, actual %v", params.Properties)
	}
	if params.Format == nil || *params.Format != "json" {
		t.Errorf("format test failed, actual %v", params.Format)
	}

	params, err = CoverageParamsChecker(map[string][]string{
		"subset": {"Lat(-40:-30)", "Long(140:150)"},
	}, reMap)
	if err != nil {
		t.Fatalf("subset test failed, %v", err)
	}
	if params.Subsets["Lat"] != [2]float64{-40, -30} {
		t.Errorf("subset lat test failed, actual %v", params.Subsets["Lat"])
	}
	if params.Subsets["Long"] != [2]float64{140, 150} {
		t.Errorf("subset long test failed, actual %v", params.Subsets["Long"])
	}

	_, err = CoverageParamsChecker(map[string][]string{
		"bbox":   {"140.0,-40.0,150.0,-30.0"},
		"subset": {"Lat(-40:-30)", "Long(140:150)"},
	}, reMap)
	if err == nil {
		t.Errorf("bbox and subset exclusivity test failed, expecting error")
	}

	_, err = CoverageParamsChecker(map[string][]string{
		"subset": {"Elev(0:100)"},
	}, reMap)
	if err == nil {
		t.Errorf("unknown subset axis test failed, expecting error")
	}

	_, err = CoverageParamsChecker(map[string][]string{
		"bbox": {"140.0,-40.0,150.0"},
	}, reMap)
	if err == nil {
		t.Errorf("short bbox test failed, expecting error")
	}

	_, err = CoverageParamsChecker(map[string][]string{
		"f": {"docx"},
	}, reMap)
	if err == nil {
		t.Errorf("bad format test failed, expecting error")
	}
}

func TestParseQuerySubsets(t *testing.T) {
	m, err := ParseQuery("subset=Lat(-40:-30)&subset=Long(140:150)&f=json")
	if err != nil {
		t.Fatalf("query parsing test failed, %v", err)
	}
	if len(m["subset"]) != 2 || m["subset"][0] != "Lat(-40:-30)" {
		t.Errorf("query subset test failed, actual %v", m["subset"])
	}
	if len(m["f"]) != 1 || m["f"][0] != "json" {
		t.Errorf("query format test failed, actual %v", m["f"])
	}
}
