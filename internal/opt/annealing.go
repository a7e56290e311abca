package opt

import (
	"math"
	"math/rand"
)

// Anneal runs simulated annealing from the input order. Each step swaps two
// random stops; a longer candidate is accepted with probability
// exp(-delta/T). T starts at InitialTemp, is multiplied by Cooling every step
// and the run stops once T falls below MinTemp. The best order seen is kept.
func Anneal(points []WeightedPoint, cfg Config, rng *rand.Rand) Result {
	n := len(points)
	if n <= 2 {
		return unchanged(points, string(StrategyAnnealing))
	}
	ac := cfg.Annealing
	dm := newDistMatrix(newPointSet(points), cfg.Workers)

	cur := identity(n)
	curKm := dm.pathKm(cur)
	best := append([]int(nil), cur...)
	bestKm := curKm
	m := Metrics{Algorithm: string(StrategyAnnealing), InitialKm: curKm}

	cand := make([]int, n)
	for t := ac.InitialTemp; t >= ac.MinTemp; t *= ac.Cooling {
		m.Iterations++
		copy(cand, cur)
		i, j := twoPositions(n, rng)
		cand[i], cand[j] = cand[j], cand[i]
		candKm := dm.pathKm(cand)
		delta := candKm - curKm
		if delta < 0 || rng.Float64() < math.Exp(-delta/t) {
			if delta > 0 {
				m.AcceptedWorse++
			}
			cur, cand = cand, cur
			curKm = candKm
			if curKm < bestKm {
				bestKm = curKm
				copy(best, cur)
				m.Improvements++
			}
		}
		if ac.Cooling <= 0 || ac.Cooling >= 1 {
			break
		}
	}
	m.BestKm = bestKm
	return Result{Order: pick(points, best), Metrics: m}
}
