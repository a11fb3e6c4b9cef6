package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{30.0444, 31.2357},
		{-33.8688, 151.2093},
		{89.9, -179.9},
	}
	for _, p := range points {
		if d := DistanceMeters(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("distance(%v, %v) to itself = %v, want 0", p[0], p[1], d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	d1 := DistanceMeters(30.0444, 31.2357, 30.0450, 31.2400)
	d2 := DistanceMeters(30.0450, 31.2400, 30.0444, 31.2357)
	if math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// ~0.0003 deg of longitude at latitude 30 is roughly 29m.
	d := DistanceMeters(30.0444, 31.2357, 30.0444, 31.2360)
	if d < 20 || d > 35 {
		t.Fatalf("short hop distance = %vm, want 20-35m", d)
	}

	// Paris to London is about 344km.
	d = DistanceMeters(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330000 || d > 360000 {
		t.Fatalf("Paris-London = %vm, want ~344km", d)
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(30.0444, 31.2360, 30.0444, 31.2357, 50) {
		t.Fatal("point ~29m away not admitted by 50m radius")
	}
	if WithinRadius(30.0444, 31.2360, 30.0444, 31.2357, 10) {
		t.Fatal("point ~29m away admitted by 10m radius")
	}
	// Zero radius admits the exact center only.
	if !WithinRadius(30.0444, 31.2357, 30.0444, 31.2357, 0) {
		t.Fatal("exact center rejected by zero radius")
	}
	if WithinRadius(30.0444, 31.23571, 30.0444, 31.2357, 0) {
		t.Fatal("offset point admitted by zero radius")
	}
}

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
		ok       bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, 180.0001, false},
		{-91, 0, false},
	}
	for _, tc := range cases {
		if got := ValidCoordinates(tc.lat, tc.lon); got != tc.ok {
			t.Fatalf("ValidCoordinates(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.ok)
		}
	}
}
