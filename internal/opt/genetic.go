package opt

import (
	"math/rand"
)

// Genetic searches stop permutations with tournament selection, order
// crossover and swap mutation. The first generation is not fully random:
// individual 0 is the input order and only the other Population-1
// individuals are random permutations, so the result is never longer than
// the input.
func Genetic(points []WeightedPoint, cfg Config, rng *rand.Rand) Result {
	n := len(points)
	if n <= 2 {
		return unchanged(points, string(StrategyGenetic))
	}
	gc := cfg.Genetic
	popSize := max(gc.Population, 2)
	dm := newDistMatrix(newPointSet(points), cfg.Workers)

	pop := make([][]int, popSize)
	pop[0] = identity(n)
	for i := 1; i < popSize; i++ {
		pop[i] = rng.Perm(n)
	}
	fit := make([]float64, popSize)

	best := append([]int(nil), pop[0]...)
	bestKm := dm.pathKm(best)
	m := Metrics{Algorithm: string(StrategyGenetic), InitialKm: bestKm}

	keepBest := func() {
		for i := range pop {
			if fit[i] < bestKm {
				bestKm = fit[i]
				best = append(best[:0], pop[i]...)
				m.Improvements++
			}
		}
	}

	for gen := 0; gen < gc.Generations; gen++ {
		m.Iterations++
		evaluate(pop, fit, dm, cfg.Workers)
		keepBest()

		next := make([][]int, 0, popSize)
		for len(next) < popSize {
			a := tournament(pop, fit, gc.TournamentSize, rng)
			b := tournament(pop, fit, gc.TournamentSize, rng)
			var c1, c2 []int
			if rng.Float64() < gc.CrossoverRate {
				c1 = orderCrossover(a, b, rng)
				c2 = orderCrossover(b, a, rng)
			} else {
				c1 = append([]int(nil), a...)
				c2 = append([]int(nil), b...)
			}
			if rng.Float64() < gc.MutationRate {
				swapMutate(c1, rng)
			}
			if rng.Float64() < gc.MutationRate {
				swapMutate(c2, rng)
			}
			next = append(next, c1)
			if len(next) < popSize {
				next = append(next, c2)
			}
		}
		pop = next
	}
	evaluate(pop, fit, dm, cfg.Workers)
	keepBest()

	m.BestKm = bestKm
	return Result{Order: pick(points, best), Metrics: m}
}

// evaluate fills fit with the open-path length of every individual.
func evaluate(pop [][]int, fit []float64, dm distMatrix, workers int) {
	parallelFor(len(pop), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fit[i] = dm.pathKm(pop[i])
		}
	})
}

// tournament draws size individuals with replacement and returns the fittest.
func tournament(pop [][]int, fit []float64, size int, rng *rand.Rand) []int {
	size = max(size, 1)
	best := rng.Intn(len(pop))
	for i := 1; i < size; i++ {
		if c := rng.Intn(len(pop)); fit[c] < fit[best] {
			best = c
		}
	}
	return pop[best]
}

// orderCrossover copies a random slice of a into the child at the same
// positions and fills the rest with b's remaining genes in b's order.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	n := len(a)
	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}
	child := make([]int, n)
	used := make([]bool, n)
	for k := i; k <= j; k++ {
		child[k] = a[k]
		used[a[k]] = true
	}
	pos := 0
	for _, g := range b {
		if used[g] {
			continue
		}
		if pos == i {
			pos = j + 1
		}
		child[pos] = g
		pos++
	}
	return child
}

func swapMutate(ind []int, rng *rand.Rand) {
	if len(ind) < 2 {
		return
	}
	i, j := twoPositions(len(ind), rng)
	ind[i], ind[j] = ind[j], ind[i]
}

func unchanged(points []WeightedPoint, algo string) Result {
	km := PathKm(points)
	return Result{
		Order:   append([]WeightedPoint(nil), points...),
		Metrics: Metrics{Algorithm: algo, InitialKm: km, BestKm: km},
	}
}
