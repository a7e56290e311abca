package opt

import "math"

// Measures are the derived totals of an ordered route.
type Measures struct {
	Stops       int
	DistanceKm  float64
	DurationMin int
	WeightKg    float64
}

// Measure computes open-path distance, summed weight, and an estimated
// duration of driving at AverageSpeedKph plus a fixed service time per stop,
// rounded up and never below MinDurationMinutes.
func Measure(ordered []WeightedPoint, cfg Config) Measures {
	m := Measures{
		Stops:      len(ordered),
		DistanceKm: PathKm(ordered),
		WeightKg:   GroupWeight(ordered),
	}
	drive := 0.0
	if cfg.Route.AverageSpeedKph > 0 {
		drive = m.DistanceKm / cfg.Route.AverageSpeedKph * 60
	}
	raw := drive + float64(m.Stops)*cfg.Route.ServiceMinutesPerStop
	m.DurationMin = max(int(math.Ceil(raw-1e-9)), cfg.Route.MinDurationMinutes)
	return m
}
