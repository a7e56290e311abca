package opt

// TwoOpt reverses segments of the open path while that shortens it, up to
// passes full sweeps. The first stop stays fixed.
func TwoOpt(points []WeightedPoint, passes int, workers int) Result {
	n := len(points)
	if n <= 3 {
		return unchanged(points, string(StrategyTwoOpt))
	}
	if passes <= 0 {
		passes = 1
	}
	dm := newDistMatrix(newPointSet(points), workers)
	best := identity(n)
	bestKm := dm.pathKm(best)
	m := Metrics{Algorithm: string(StrategyTwoOpt), InitialKm: bestKm}
	for it := 0; it < passes; it++ {
		m.Iterations++
		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := reverseSegment(best, i, k)
				if d := dm.pathKm(cand); d+1e-9 < bestKm {
					best, bestKm = cand, d
					improved = true
					m.Improvements++
				}
			}
		}
		if !improved {
			break
		}
	}
	m.BestKm = bestKm
	return Result{Order: pick(points, best), Metrics: m}
}

func reverseSegment(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}
