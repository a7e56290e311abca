package planner

import (
	"time"

	"github.com/google/uuid"

	"wasteroute/internal/model"
	"wasteroute/internal/opt"
)

// Assemble builds a planned route from an ordered group. TotalValue is the
// sum of stop weight times the material price; unpriced materials count 0.
func Assemble(agentID string, ordered []opt.WeightedPoint, cfg opt.Config, prices map[model.Material]float64, now time.Time) model.Route {
	m := opt.Measure(ordered, cfg)
	stops := make([]model.RouteStop, len(ordered))
	value := 0.0
	for i, pt := range ordered {
		mat := model.Material(pt.Material)
		stops[i] = model.RouteStop{
			Seq:       i + 1,
			RequestID: pt.ID,
			Location:  model.GeoPoint{Lat: pt.Lat, Lng: pt.Lon},
			WeightKg:  pt.WeightKg,
			Material:  mat,
		}
		value += pt.WeightKg * prices[mat]
	}
	algo := cfg.Strategy
	if algo == "" {
		algo = opt.StrategyGenetic
	}
	now = now.UTC()
	return model.Route{
		ID:                   uuid.NewString(),
		AgentID:              agentID,
		Status:               model.RoutePlanned,
		Algorithm:            string(algo),
		Stops:                stops,
		TotalDistanceKm:      m.DistanceKm,
		EstimatedDurationMin: m.DurationMin,
		TotalWeightKg:        m.WeightKg,
		TotalValue:           value,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func stopsToPoints(stops []model.RouteStop) []opt.WeightedPoint {
	out := make([]opt.WeightedPoint, len(stops))
	for i, s := range stops {
		out[i] = opt.WeightedPoint{ID: s.RequestID, Lat: s.Location.Lat, Lon: s.Location.Lng, WeightKg: s.WeightKg, Material: string(s.Material)}
	}
	return out
}
