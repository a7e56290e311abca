//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"wasteroute/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	if _, _, err := p.UpsertRequests(t.Context(), []model.CollectionRequest{{
		ID: "it-req-1", Location: &model.GeoPoint{Lat: -19.9167, Lng: -43.9345}, WeightKg: 15.5, Material: model.MaterialPaper,
	}}); err != nil {
		t.Fatalf("UpsertRequests: %v", err)
	}
	id, err := p.PersistRoute(t.Context(), model.Route{Status: model.RoutePlanned, Stops: []model.RouteStop{{Seq: 1, RequestID: "it-req-1"}}})
	if err != nil {
		t.Fatalf("PersistRoute: %v", err)
	}
	r, err := p.GetRoute(t.Context(), id)
	if err != nil || len(r.Stops) != 1 {
		t.Fatalf("GetRoute: %v %+v", err, r)
	}
	req, err := p.GetRequest(t.Context(), "it-req-1")
	if err != nil || req.Status != model.RequestAssigned {
		t.Fatalf("request not assigned: %v %+v", err, req)
	}
	if _, _, err := p.ListRoutes(t.Context(), "", "", 1); err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
}
