package geo

import (
	"math"
	"testing"
)

func TestDistanceSymmetricAndZero(t *testing.T) {
	pts := []Coordinate{
		{Lat: -19.9167, Lon: -43.9345},
		{Lat: -19.9208, Lon: -43.9376},
		{Lat: -19.8519, Lon: -43.9695},
		{Lat: 51.5074, Lon: -0.1278},
		{Lat: 0, Lon: 179.9},
		{Lat: 0, Lon: -179.9},
	}
	for i := range pts {
		a := pts[i]
		if d := DistanceKm(&a, &a); d != 0 {
			t.Fatalf("d(a,a) = %v, want 0", d)
		}
		for j := range pts {
			b := pts[j]
			ab, ba := DistanceKm(&a, &b), DistanceKm(&b, &a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric distance %v vs %v for %v %v", ab, ba, a, b)
			}
		}
	}
}

func TestOneDegreeLatitudeAtEquator(t *testing.T) {
	a := Coordinate{Lat: 0, Lon: 0}
	b := Coordinate{Lat: 1, Lon: 0}
	got := DistanceKm(&a, &b)
	if math.Abs(got-111.2)/111.2 > 0.01 {
		t.Fatalf("1 degree latitude = %.3f km, want ~111.2", got)
	}
}

func TestDistanceMissingCoordinate(t *testing.T) {
	a := Coordinate{Lat: 10, Lon: 10}
	if got := DistanceKm(&a, nil); got != UnreachableKm {
		t.Fatalf("missing b: got %v", got)
	}
	if got := DistanceKm(nil, &a); got != UnreachableKm {
		t.Fatalf("missing a: got %v", got)
	}
	if got := DistanceKm(nil, nil); got != UnreachableKm {
		t.Fatalf("both missing: got %v", got)
	}
}

func TestOpenPathKm(t *testing.T) {
	if got := OpenPathKm(nil); got != 0 {
		t.Fatalf("empty path: %v", got)
	}
	if got := OpenPathKm([]Coordinate{{Lat: 1, Lon: 1}}); got != 0 {
		t.Fatalf("single point: %v", got)
	}
	path := []Coordinate{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 0}, {Lat: 2, Lon: 0}}
	want := Haversine(0, 0, 1, 0) + Haversine(1, 0, 2, 0)
	if got := OpenPathKm(path); math.Abs(got-want) > 1e-9 {
		t.Fatalf("open path = %v, want %v (no return leg)", got, want)
	}
}

func TestCentroid(t *testing.T) {
	if _, ok := Centroid(nil); ok {
		t.Fatal("empty centroid should report !ok")
	}
	c, ok := Centroid([]Coordinate{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 4}})
	if !ok || c.Lat != 1 || c.Lon != 2 {
		t.Fatalf("centroid = %+v ok=%v", c, ok)
	}
}

func TestHaversineAntipodalIsFinite(t *testing.T) {
	half := math.Pi * EarthRadiusKm
	for lat := -89.0; lat <= 89.0; lat += 0.37 {
		for lon := -180.0; lon < 0; lon += 1.0 {
			d := Haversine(lat, lon, -lat, lon+180)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				t.Fatalf("Haversine(%v,%v) antipode = %v", lat, lon, d)
			}
			if math.Abs(d-half) > 1e-6*half {
				t.Fatalf("antipodal distance %v, want %v", d, half)
			}
		}
	}
	if d := Haversine(-86.78, -179, 86.78, 1); math.IsNaN(d) {
		t.Fatal("NaN for (-86.78,-179)")
	}
}
