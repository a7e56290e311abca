package opt

import (
	"wasteroute/internal/geo"
)

// WeightedPoint is one routable collection request as seen by the engine.
// Identity is the ID, never the coordinates: two requests at the same
// address are distinct points.
type WeightedPoint struct {
	ID       string
	Lat, Lon float64
	WeightKg float64
	Material string
}

// Coordinate returns the point location.
func (p WeightedPoint) Coordinate() geo.Coordinate { return geo.Coordinate{Lat: p.Lat, Lon: p.Lon} }

// Metrics describes one optimizer run.
type Metrics struct {
	Algorithm     string  `json:"algorithm"`
	Iterations    int     `json:"iterations"`
	Improvements  int     `json:"improvements"`
	AcceptedWorse int     `json:"acceptedWorse"`
	InitialKm     float64 `json:"initialKm"`
	BestKm        float64 `json:"bestKm"`
}

// Gain is the relative distance saved against the initial order, in [0,1].
func (m Metrics) Gain() float64 {
	if m.InitialKm <= 0 {
		return 0
	}
	g := (m.InitialKm - m.BestKm) / m.InitialKm
	if g < 0 {
		return 0
	}
	return g
}

// Result is a refined stop order plus the metrics of the run that produced it.
type Result struct {
	Order   []WeightedPoint
	Metrics Metrics
}

// pointSet is flat, index-addressed coordinate storage for the hot loops.
type pointSet struct {
	lat []float64
	lon []float64
}

func newPointSet(points []WeightedPoint) pointSet {
	ps := pointSet{lat: make([]float64, len(points)), lon: make([]float64, len(points))}
	for i, p := range points {
		ps.lat[i] = p.Lat
		ps.lon[i] = p.Lon
	}
	return ps
}

func (ps pointSet) len() int { return len(ps.lat) }

func (ps pointSet) dist(i, j int) float64 {
	return geo.Haversine(ps.lat[i], ps.lon[i], ps.lat[j], ps.lon[j])
}

// distMatrix caches pairwise distances, row-major.
type distMatrix struct {
	n int
	d []float64
}

func newDistMatrix(ps pointSet, workers int) distMatrix {
	n := ps.len()
	m := distMatrix{n: n, d: make([]float64, n*n)}
	parallelFor(n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					m.d[i*n+j] = ps.dist(i, j)
				}
			}
		}
	})
	return m
}

func (m distMatrix) at(i, j int) float64 { return m.d[i*m.n+j] }

// pathKm is the open-path length of order.
func (m distMatrix) pathKm(order []int) float64 {
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += m.at(order[i-1], order[i])
	}
	return total
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func pick(points []WeightedPoint, order []int) []WeightedPoint {
	out := make([]WeightedPoint, len(order))
	for i, idx := range order {
		out[i] = points[idx]
	}
	return out
}

// PathKm is the open-path length of points in the given order.
func PathKm(points []WeightedPoint) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += geo.Haversine(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}
	return total
}
