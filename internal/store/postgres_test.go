package store

import (
	"database/sql"
	"testing"

	"wasteroute/internal/model"
)

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected, got %v", v)
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("want x, got %v", v)
	}
}

func TestCoordsAndGeoPoint(t *testing.T) {
	lat, lng := coords(nil)
	if lat != nil || lng != nil {
		t.Fatalf("nil point -> nil columns expected")
	}
	lat, lng = coords(&model.GeoPoint{Lat: -19.9, Lng: -43.9})
	if lat != -19.9 || lng != -43.9 {
		t.Fatalf("unexpected columns %v %v", lat, lng)
	}
	if g := geoPoint(sql.NullFloat64{Float64: 1, Valid: true}, sql.NullFloat64{}); g != nil {
		t.Fatalf("half-set coordinates must yield nil, got %+v", g)
	}
	g := geoPoint(sql.NullFloat64{Float64: 1, Valid: true}, sql.NullFloat64{Float64: 2, Valid: true})
	if g == nil || g.Lat != 1 || g.Lng != 2 {
		t.Fatalf("unexpected point %+v", g)
	}
}

func TestPageSize(t *testing.T) {
	cases := map[int]int{0: 100, -1: 100, 10: 10, 500: 500, 501: 100}
	for in, want := range cases {
		if got := pageSize(in); got != want {
			t.Fatalf("pageSize(%d)=%d want %d", in, got, want)
		}
	}
}
