package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"wasteroute/internal/model"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	_, _, err := m.UpsertRequests(ctx, []model.CollectionRequest{
		{ID: "r2", Location: &model.GeoPoint{Lat: -19.92, Lng: -43.94}, WeightKg: 22.3, Material: model.MaterialPlastic, CreatedAt: base.Add(time.Minute)},
		{ID: "r1", Location: &model.GeoPoint{Lat: -19.91, Lng: -43.93}, WeightKg: 15.5, Material: model.MaterialPaper, CreatedAt: base},
		{ID: "r3", WeightKg: 5, Material: model.MaterialGlass, Status: model.RequestUnderReview, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "r4", WeightKg: 5, Material: model.MaterialGlass, Status: model.RequestCompleted, CreatedAt: base},
	})
	if err != nil {
		t.Fatalf("UpsertRequests: %v", err)
	}
	_, _, err = m.UpsertAgents(ctx, []model.Agent{
		{ID: "a1", Name: "Ana"},
		{ID: "a2", Name: "Bruno", Status: model.AgentInactive},
		{ID: "a3", Name: "Carla", Kind: "supervisor"},
	})
	if err != nil {
		t.Fatalf("UpsertAgents: %v", err)
	}
	return m
}

func TestMemoryPendingRequestsOrderedAndFiltered(t *testing.T) {
	m := seedMemory(t)
	got, err := m.PendingRequests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"r1", "r2", "r3"}
	if len(got) != len(want) {
		t.Fatalf("want %d pending, got %d", len(want), len(got))
	}
	for i, r := range got {
		if r.ID != want[i] {
			t.Fatalf("pos %d: want %s got %s", i, want[i], r.ID)
		}
	}
}

func TestMemoryActiveAgentsOnlyActiveCollectors(t *testing.T) {
	m := seedMemory(t)
	got, _ := m.ActiveAgents(context.Background())
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("want only a1, got %+v", got)
	}
}

func TestMemoryPersistRouteMarksAssigned(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	id, err := m.PersistRoute(ctx, model.Route{AgentID: "a1", Status: model.RoutePlanned, Stops: []model.RouteStop{{Seq: 1, RequestID: "r1"}}})
	if err != nil || id == "" {
		t.Fatalf("PersistRoute: %q %v", id, err)
	}
	r, err := m.GetRequest(ctx, "r1")
	if err != nil || r.Status != model.RequestAssigned {
		t.Fatalf("r1 should be assigned: %+v %v", r, err)
	}
	pending, _ := m.PendingRequests(ctx)
	if len(pending) != 2 {
		t.Fatalf("want 2 pending after persist, got %d", len(pending))
	}
	rt, err := m.GetRoute(ctx, id)
	if err != nil || rt.CreatedAt.IsZero() || rt.AgentID != "a1" {
		t.Fatalf("GetRoute: %+v %v", rt, err)
	}
}

func TestMemoryUpdateRouteUnknown(t *testing.T) {
	m := NewMemory()
	if err := m.UpdateRoute(context.Background(), model.Route{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := m.GetRoute(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryListRoutesPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := model.RoutePlanned
		if i == 4 {
			status = model.RouteFinished
		}
		if _, err := m.PersistRoute(ctx, model.Route{Status: status}); err != nil {
			t.Fatal(err)
		}
	}
	page, next, _ := m.ListRoutes(ctx, "", "", 2)
	if len(page) != 2 || next == "" {
		t.Fatalf("first page: %d items next=%q", len(page), next)
	}
	page2, _, _ := m.ListRoutes(ctx, "", next, 2)
	if len(page2) != 2 || page2[0].ID == page[0].ID {
		t.Fatalf("second page should advance")
	}
	planned, next, _ := m.ListRoutes(ctx, model.RoutePlanned, "", 10)
	if len(planned) != 4 || next != "" {
		t.Fatalf("want 4 planned and no cursor, got %d %q", len(planned), next)
	}
}

func TestMemoryCycleRunsNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, trig := range []string{model.TriggerScheduled, model.TriggerManual} {
		if _, err := m.SaveCycleRun(ctx, model.CycleRun{Outcome: model.OutcomeOK, Summary: model.CycleSummary{Trigger: trig}}); err != nil {
			t.Fatal(err)
		}
	}
	runs, _ := m.ListCycleRuns(ctx, 0)
	if len(runs) != 2 || runs[0].Summary.Trigger != model.TriggerManual {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestMemoryUpsertCounts(t *testing.T) {
	m := seedMemory(t)
	created, updated, err := m.UpsertRequests(context.Background(), []model.CollectionRequest{{ID: "r1", WeightKg: 1}, {ID: "r9"}})
	if err != nil || created != 1 || updated != 1 {
		t.Fatalf("want 1/1, got %d/%d %v", created, updated, err)
	}
}
