// Package geo implements the great-circle distance model used by the routing engine.
package geo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// UnreachableKm is returned by DistanceKm when a coordinate is missing. It is
// larger than any terrestrial distance so the point is never picked as nearest,
// and finite so open-path sums stay comparable.
const UnreachableKm = 1e9

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine returns the great-circle distance in km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a just outside [0,1] for antipodal pairs
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceKm returns the distance between a and b, or UnreachableKm when either is nil.
func DistanceKm(a, b *Coordinate) float64 {
	if a == nil || b == nil {
		return UnreachableKm
	}
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// OpenPathKm sums consecutive distances along path without a return leg.
func OpenPathKm(path []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1].Lat, path[i-1].Lon, path[i].Lat, path[i].Lon)
	}
	return total
}

// Centroid is the plain arithmetic mean of the coordinates. It is not
// geodesically corrected; for city-scale clusters the error is negligible.
func Centroid(points []Coordinate) (Coordinate, bool) {
	if len(points) == 0 {
		return Coordinate{}, false
	}
	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	return Coordinate{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}, true
}
