package main

import (
	"testing"
)

func TestWKTEnvelope(t *testing.T) {
	wkt := "POLYGON ((-156.300000 18.800000, -154.700000 18.800000, -154.700000 20.400000, -156.300000 20.400000, -156.300000 18.800000))"
	env, err := wktEnvelope(wkt)
	if err != nil {
		t.Fatalf("wkt envelope test failed, %v", err)
	}

	exp := []float64{-156.3, 18.8, -154.7, 20.4}
	for i, v := range exp {
		if env[i] != v {
			t.Errorf("envelope test failed at %d, expecting %v, actual %v", i, v, env[i])
		}
	}
}

func TestWKTEnvelopeRejectsNonPolygon(t *testing.T) {
	if _, err := wktEnvelope("POINT (1 2)"); err == nil {
		t.Errorf("wkt envelope test failed, expecting error for POINT")
	}

	if _, err := wktEnvelope("POLYGON ((0 0, 1 1))"); err == nil {
		t.Errorf("wkt envelope test failed, expecting error for short ring")
	}
}
