package opt

import (
	"math"

	"wasteroute/internal/geo"
)

// StartStrategy selects the first stop of a nearest-neighbor sequence.
type StartStrategy string

const (
	// StartCentroid begins at the point closest to the group centroid.
	StartCentroid StartStrategy = "centroid"
	// StartFirst begins at the first point in input order.
	StartFirst StartStrategy = "first"
)

// Sequence orders points greedily: from the start point, repeatedly visit the
// closest unvisited point. Distance ties go to the earliest input position.
// Groups of 0 or 1 points are returned unchanged.
func Sequence(points []WeightedPoint, start StartStrategy) []WeightedPoint {
	if len(points) <= 1 {
		return points
	}
	return pick(points, sequenceOrder(newPointSet(points), start))
}

func sequenceOrder(ps pointSet, start StartStrategy) []int {
	n := ps.len()
	first := 0
	if start != StartFirst {
		first = centroidNearest(ps)
	}
	visited := make([]bool, n)
	order := make([]int, 0, n)
	cur := first
	visited[cur] = true
	order = append(order, cur)
	for len(order) < n {
		next, nextD := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			if d := ps.dist(cur, j); d < nextD {
				next, nextD = j, d
			}
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	return order
}

func centroidNearest(ps pointSet) int {
	coords := make([]geo.Coordinate, ps.len())
	for i := range coords {
		coords[i] = geo.Coordinate{Lat: ps.lat[i], Lon: ps.lon[i]}
	}
	c, ok := geo.Centroid(coords)
	if !ok {
		return 0
	}
	best, bestD := 0, math.Inf(1)
	for i := range coords {
		if d := geo.Haversine(c.Lat, c.Lon, ps.lat[i], ps.lon[i]); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
