package opt

import (
	"fmt"
	"math/rand"
)

// Strategy names a refinement applied to a sequenced group.
type Strategy string

const (
	StrategyGenetic   Strategy = "genetic"
	StrategyAnnealing Strategy = "annealing"
	StrategyTwoOpt    Strategy = "twoopt"
	StrategyNone      Strategy = "none"
)

// ParseStrategy maps a name to a Strategy; "" means the genetic default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyGenetic, nil
	case StrategyGenetic, StrategyAnnealing, StrategyTwoOpt, StrategyNone:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("opt: unknown strategy %q", s)
}

// Refine runs the configured strategy over an already sequenced group.
// A refined order longer than the input is discarded in favor of the input.
func Refine(points []WeightedPoint, cfg Config, rng *rand.Rand) Result {
	var r Result
	switch cfg.Strategy {
	case StrategyAnnealing:
		r = Anneal(points, cfg, rng)
	case StrategyTwoOpt:
		r = TwoOpt(points, 10, cfg.Workers)
	case StrategyNone:
		r = unchanged(points, string(StrategyNone))
	default:
		r = Genetic(points, cfg, rng)
	}
	if r.Metrics.BestKm > r.Metrics.InitialKm {
		r.Order = append([]WeightedPoint(nil), points...)
		r.Metrics.BestKm = r.Metrics.InitialKm
	}
	return r
}
