package opt

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

const hoursPerYear = 24 * 365.25

// Collector is the engine's view of an agent.
type Collector struct {
	ID         string
	CapacityKg float64
	JoinedAt   *time.Time
}

// Assignment is the set of groups handed to one collector.
type Assignment struct {
	CollectorID string
	ScoreKg     float64
	LoadKg      float64
	Groups      [][]WeightedPoint
}

// CapacityScore is base capacity scaled by an experience factor of
// 1 + years*rate, capped at MaxExperienceFactor. Missing capacity falls back
// to DefaultKg and a missing join date counts as no experience.
func CapacityScore(c Collector, cfg Config, now time.Time) float64 {
	base := c.CapacityKg
	if base <= 0 {
		base = cfg.Capacity.DefaultKg
	}
	factor := 1.0
	if c.JoinedAt != nil && !c.JoinedAt.IsZero() {
		years := math.Max(0, now.Sub(*c.JoinedAt).Hours()/hoursPerYear)
		factor = math.Min(1+years*cfg.Capacity.ExperienceRatePerYear, math.Max(1, cfg.Capacity.MaxExperienceFactor))
	}
	return base * factor
}

// GroupWeight is the summed weight of a group.
func GroupWeight(g []WeightedPoint) float64 {
	w := make([]float64, len(g))
	for i, p := range g {
		w[i] = p.WeightKg
	}
	return floats.Sum(w)
}

// Balance hands each group, heaviest first, to the collector with the lowest
// load/score ratio. Ties go to the collector holding fewer groups, then to
// input order. Capacity is a score here, not a hard limit. Empty groups are
// skipped; collectors that receive nothing are omitted.
func Balance(collectors []Collector, groups [][]WeightedPoint, cfg Config, now time.Time) []Assignment {
	if len(collectors) == 0 || len(groups) == 0 {
		return nil
	}
	slots := make([]Assignment, len(collectors))
	for i, c := range collectors {
		slots[i] = Assignment{CollectorID: c.ID, ScoreKg: CapacityScore(c, cfg, now)}
	}

	type weighted struct {
		idx int
		kg  float64
	}
	order := make([]weighted, 0, len(groups))
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		order = append(order, weighted{i, GroupWeight(g)})
	}
	// heaviest first; equal weights keep input order
	sort.SliceStable(order, func(i, j int) bool { return order[i].kg > order[j].kg })

	for _, w := range order {
		best := 0
		for i := 1; i < len(slots); i++ {
			if lessLoaded(slots[i], slots[best]) {
				best = i
			}
		}
		slots[best].Groups = append(slots[best].Groups, groups[w.idx])
		slots[best].LoadKg += w.kg
	}

	out := slots[:0]
	for _, s := range slots {
		if len(s.Groups) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func lessLoaded(a, b Assignment) bool {
	ra, rb := a.LoadKg/a.ScoreKg, b.LoadKg/b.ScoreKg
	if ra != rb {
		return ra < rb
	}
	return len(a.Groups) < len(b.Groups)
}
