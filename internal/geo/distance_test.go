package geo

import (
	"math"
	"testing"
)

func TestHaversineMeters_ZeroDistance(t *testing.T) {
	d := HaversineMeters(10, 20, 10, 20)
	if d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_AlongEquator(t *testing.T) {
	// 0.18 degrees of longitude on the equator is ~20.0 km.
	got := HaversineKm(0, 0, 0, 0.18)
	if math.Abs(got-20.0) > 0.05 {
		t.Fatalf("HaversineKm = %v, want ~20.0", got)
	}
}

func TestHaversine_Symmetric(t *testing.T) {
	a := HaversineMeters(-33.8688, 151.2093, 51.5074, -0.1278)
	b := HaversineMeters(51.5074, -0.1278, -33.8688, 151.2093)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("asymmetric distance: %v vs %v", a, b)
	}
}
