package integrations

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wasteroute/internal/model"
)

// RequestSource defines the minimal interface for request/agent import sources.
type RequestSource interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// Batch is everything one Fetch produced. Rows that could not be mapped are
// reported in Rejected instead of failing the batch.
type Batch struct {
	Requests []model.CollectionRequest
	Agents   []model.Agent
	Rejected []Rejection
}

type Rejection struct {
	Row    int
	Reason string
}

// MapStatus maps an external status code to a request status. Unknown codes
// become requested.
func MapStatus(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "REVIEW", "UNDER_REVIEW", "PENDING_REVIEW":
		return model.RequestUnderReview
	case "ASSIGNED", "SCHEDULED":
		return model.RequestAssigned
	case "DONE", "COLLECTED", "COMPLETED":
		return model.RequestCompleted
	case "CANCELLED", "CANCELED", "VOID":
		return model.RequestCancelled
	}
	return model.RequestRequested
}

// Header indexes column names case-insensitively.
type Header map[string]int

func NewHeader(cells []string) Header {
	h := Header{}
	for i, c := range cells {
		h[strings.ToLower(strings.TrimSpace(c))] = i
	}
	return h
}

func (h Header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseRequest maps one row. Columns: id, lat, lng, weight_kg, material,
// status, requester_id, address, created_at (RFC 3339). Blank coordinates
// produce a request without location.
func ParseRequest(h Header, row []string) (model.CollectionRequest, error) {
	r := model.CollectionRequest{
		ID:          h.get(row, "id"),
		RequesterID: h.get(row, "requester_id"),
		Address:     h.get(row, "address"),
		Material:    model.Material(strings.ToLower(h.get(row, "material"))),
		Status:      MapStatus(h.get(row, "status")),
	}
	if r.ID == "" {
		return r, fmt.Errorf("missing id")
	}
	if r.Material == "" {
		r.Material = model.MaterialOther
	}
	if !r.Material.Valid() {
		return r, fmt.Errorf("unknown material %q", r.Material)
	}
	if w := h.get(row, "weight_kg"); w != "" {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil || v < 0 {
			return r, fmt.Errorf("bad weight_kg %q", w)
		}
		r.WeightKg = v
	}
	lat, lng := h.get(row, "lat"), h.get(row, "lng")
	if lat != "" && lng != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		ln, err2 := strconv.ParseFloat(lng, 64)
		if err1 != nil || err2 != nil || la < -90 || la > 90 || ln < -180 || ln > 180 {
			return r, fmt.Errorf("bad coordinates %q,%q", lat, lng)
		}
		r.Location = &model.GeoPoint{Lat: la, Lng: ln}
	}
	if ts := h.get(row, "created_at"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return r, fmt.Errorf("bad created_at %q", ts)
		}
		r.CreatedAt = t
	}
	return r, nil
}

// ParseAgent maps one row. Columns: id, name, capacity_kg, status, joined_at.
func ParseAgent(h Header, row []string) (model.Agent, error) {
	a := model.Agent{
		ID:     h.get(row, "id"),
		Name:   h.get(row, "name"),
		Kind:   model.AgentCollector,
		Status: strings.ToLower(h.get(row, "status")),
	}
	if a.ID == "" {
		return a, fmt.Errorf("missing id")
	}
	if a.Status == "" {
		a.Status = model.AgentActive
	}
	if a.Status != model.AgentActive && a.Status != model.AgentInactive {
		return a, fmt.Errorf("unknown status %q", a.Status)
	}
	if c := h.get(row, "capacity_kg"); c != "" {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil || v < 0 {
			return a, fmt.Errorf("bad capacity_kg %q", c)
		}
		a.CapacityKg = v
	}
	if ts := h.get(row, "joined_at"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return a, fmt.Errorf("bad joined_at %q", ts)
		}
		a.CreatedAt = &t
	}
	return a, nil
}
