package model

import "time"

// Core domain types shared by the store, planner and API.

type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type Material string

const (
	MaterialPaper      Material = "paper"
	MaterialPlastic    Material = "plastic"
	MaterialGlass      Material = "glass"
	MaterialMetal      Material = "metal"
	MaterialOrganic    Material = "organic"
	MaterialElectronic Material = "electronic"
	MaterialOther      Material = "other"
)

// Materials lists every known material in display order.
var Materials = []Material{
	MaterialPaper, MaterialPlastic, MaterialGlass, MaterialMetal,
	MaterialOrganic, MaterialElectronic, MaterialOther,
}

func (m Material) Valid() bool {
	for _, x := range Materials {
		if x == m {
			return true
		}
	}
	return false
}

// Request statuses.
const (
	RequestRequested   = "requested"
	RequestUnderReview = "under_review"
	RequestAssigned    = "assigned"
	RequestCompleted   = "completed"
	RequestCancelled   = "cancelled"
)

// CollectionRequest is a citizen's request to have material picked up.
// Only requested/under_review requests with a location are routable.
type CollectionRequest struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
	Address     string    `json:"address,omitempty"`
	WeightKg    float64   `json:"weightKg" validate:"gte=0"`
	Material    Material  `json:"material"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Pending reports whether the request still waits for a route.
func (r CollectionRequest) Pending() bool {
	return r.Status == RequestRequested || r.Status == RequestUnderReview
}

// Agent kinds and statuses.
const (
	AgentCollector = "collector"
	AgentActive    = "active"
	AgentInactive  = "inactive"
)

// Agent is a collector that can be handed routes.
type Agent struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Location   *GeoPoint  `json:"location,omitempty"`
	CapacityKg float64    `json:"capacityKg,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// Route statuses.
const (
	RoutePlanned   = "planned"
	RouteActive    = "active"
	RouteFinished  = "finished"
	RouteCancelled = "cancelled"
)

// RouteStop is one visit on a route, in visiting order.
type RouteStop struct {
	Seq       int      `json:"seq"`
	RequestID string   `json:"requestId"`
	Location  GeoPoint `json:"location"`
	WeightKg  float64  `json:"weightKg"`
	Material  Material `json:"material"`
}

type Route struct {
	ID                   string      `json:"id"`
	AgentID              string      `json:"agentId"`
	Status               string      `json:"status"`
	Material             Material    `json:"material,omitempty"`
	Algorithm            string      `json:"algorithm,omitempty"`
	Stops                []RouteStop `json:"stops"`
	TotalDistanceKm      float64     `json:"totalDistanceKm"`
	EstimatedDurationMin int         `json:"estimatedDurationMinutes"`
	TotalWeightKg        float64     `json:"totalWeightKg"`
	TotalValue           float64     `json:"totalValue"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// RequestIDs returns stop request ids in visiting order.
func (r Route) RequestIDs() []string {
	out := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		out[i] = s.RequestID
	}
	return out
}

// Cycle triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerMaterial  = "material"
)

// RouteSummary is the per-route part of a CycleSummary.
type RouteSummary struct {
	RouteID string `json:"routeId"`
	AgentID string `json:"agentId"`
	// Stops lists request ids in visiting order.
	Stops           []string `json:"stops"`
	TotalDistanceKm float64  `json:"totalDistanceKm"`
	DurationMin     int      `json:"estimatedDurationMinutes"`
	TotalWeightKg   float64  `json:"totalWeightKg"`
}

// CycleSummary reports what one optimization cycle did.
type CycleSummary struct {
	Trigger           string         `json:"trigger"`
	Material          Material       `json:"material,omitempty"`
	RoutesCreated     int            `json:"routesCreated"`
	RequestsProcessed int            `json:"requestsProcessed"`
	SkippedRequests   int            `json:"skippedRequests"`
	StartedAt         time.Time      `json:"startedAt"`
	DurationMs        int64          `json:"durationMs"`
	PerRoute          []RouteSummary `json:"perRoute"`
}

// Cycle outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// CycleRun is the persisted record of a cycle.
type CycleRun struct {
	ID      string       `json:"id"`
	Outcome string       `json:"outcome"`
	Error   string       `json:"error,omitempty"`
	Summary CycleSummary `json:"summary"`
}

// AddRequestInput appends a request to an existing route.
type AddRequestInput struct {
	RequestID string `json:"requestId" validate:"required"`
}

// ScheduleInput replaces the cron spec of the automatic cycle.
type ScheduleInput struct {
	Spec string `json:"spec" validate:"required"`
}

// RoutePatch updates mutable route fields.
type RoutePatch struct {
	Status string `json:"status" validate:"required,oneof=planned active finished cancelled"`
}
