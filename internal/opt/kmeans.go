package opt

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"wasteroute/internal/geo"
)

// ErrInvalidK is returned by Cluster when k < 1.
var ErrInvalidK = errors.New("opt: cluster count must be at least 1")

// Cluster partitions points into at most k non-empty groups by K-means.
// Initial centroids are k distinct input points; assignment uses haversine
// distance and centroids move to the arithmetic mean of their members.
// When len(points) <= k every point becomes its own group.
func Cluster(points []WeightedPoint, k int, cfg Config, rng *rand.Rand) ([][]WeightedPoint, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(points) == 0 {
		return nil, nil
	}
	if len(points) <= k {
		out := make([][]WeightedPoint, len(points))
		for i, p := range points {
			out[i] = []WeightedPoint{p}
		}
		return out, nil
	}

	ps := newPointSet(points)
	cLat := make([]float64, k)
	cLon := make([]float64, k)
	for c, i := range rng.Perm(len(points))[:k] {
		cLat[c], cLon[c] = ps.lat[i], ps.lon[i]
	}

	assign := make([]int, len(points))
	maxPasses := cfg.KMeans.MaxPasses
	if maxPasses < 1 {
		maxPasses = 1
	}
	for pass := 0; pass < maxPasses; pass++ {
		parallelFor(len(points), cfg.Workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				assign[i] = nearestCentroid(ps.lat[i], ps.lon[i], cLat, cLon)
			}
		})
		if !recenter(ps, assign, cLat, cLon, cfg.KMeans.Tolerance) {
			break
		}
	}

	groups := make([][]WeightedPoint, k)
	for i, c := range assign {
		groups[c] = append(groups[c], points[i])
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out, nil
}

// nearestCentroid ties go to the lowest centroid index.
func nearestCentroid(lat, lon float64, cLat, cLon []float64) int {
	best, bestD := 0, math.Inf(1)
	for c := range cLat {
		if d := geo.Haversine(lat, lon, cLat[c], cLon[c]); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// recenter moves each centroid to the mean of its members and reports whether
// any centroid moved by at least tol in either axis. A centroid with no
// members stays where it is.
func recenter(ps pointSet, assign []int, cLat, cLon []float64, tol float64) bool {
	k := len(cLat)
	lats := make([][]float64, k)
	lons := make([][]float64, k)
	for i, c := range assign {
		lats[c] = append(lats[c], ps.lat[i])
		lons[c] = append(lons[c], ps.lon[i])
	}
	moved := false
	for c := 0; c < k; c++ {
		if len(lats[c]) == 0 {
			continue
		}
		nl, nn := stat.Mean(lats[c], nil), stat.Mean(lons[c], nil)
		if math.Abs(nl-cLat[c]) >= tol || math.Abs(nn-cLon[c]) >= tol {
			moved = true
		}
		cLat[c], cLon[c] = nl, nn
	}
	return moved
}
