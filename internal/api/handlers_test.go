package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"wasteroute/internal/auth"
	"wasteroute/internal/events"
	"wasteroute/internal/lease"
	"wasteroute/internal/metrics"
	"wasteroute/internal/model"
	"wasteroute/internal/opt"
	"wasteroute/internal/planner"
	"wasteroute/internal/store"
)

func init() { planner.Logf = func(string, ...any) {} }

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeScheduler struct{ spec string }

func (f *fakeScheduler) Spec() string    { return f.spec }
func (f *fakeScheduler) Next() time.Time { return fixedNow.Add(30 * time.Minute) }
func (f *fakeScheduler) UpdateSchedule(spec string) error {
	if !strings.HasPrefix(spec, "@every") {
		return errors.New("bad spec")
	}
	f.spec = spec
	return nil
}

func at(lat, lng float64) *model.GeoPoint { return &model.GeoPoint{Lat: lat, Lng: lng} }

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()
	_, _, err := s.UpsertRequests(ctx, []model.CollectionRequest{
		{ID: "req-1", Location: at(-19.9167, -43.9345), WeightKg: 15.5, Material: model.MaterialPaper, CreatedAt: fixedNow.Add(-4 * time.Hour)},
		{ID: "req-2", Location: at(-19.9208, -43.9376), WeightKg: 22.3, Material: model.MaterialPlastic, CreatedAt: fixedNow.Add(-3 * time.Hour)},
		{ID: "req-3", Location: at(-19.8519, -43.9695), WeightKg: 18.7, Material: model.MaterialPaper, CreatedAt: fixedNow.Add(-2 * time.Hour)},
		{ID: "req-4", Location: at(-19.9667, -44.0167), WeightKg: 12.9, Material: model.MaterialPlastic, CreatedAt: fixedNow.Add(-1 * time.Hour)},
	})
	require.NoError(t, err)
	_, _, err = s.UpsertAgents(ctx, []model.Agent{
		{ID: "agent-1", Name: "Ana", CapacityKg: 1000},
		{ID: "agent-2", Name: "Bruno", CapacityKg: 1000},
	})
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, mutate ...func(*planner.Options, *Server)) *Server {
	t.Helper()
	st := seedStore(t)
	broker := events.NewMemory()
	opts := planner.Options{
		Engine:       opt.DefaultConfig(),
		Seed:         42,
		SingleFlight: true,
		PricesPerKg:  map[model.Material]float64{model.MaterialPaper: 0.45, model.MaterialPlastic: 0.9},
		Broker:       broker,
		Now:          func() time.Time { return fixedNow },
	}
	s := &Server{
		Store:     st,
		Auth:      auth.NewVerifier(auth.ModeDev, ""),
		Broker:    broker,
		Scheduler: &fakeScheduler{spec: "@every 30m"},
	}
	for _, m := range mutate {
		m(&opts, s)
	}
	s.Planner = planner.New(st, opts)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var asAdmin = []string{"X-Role", "admin"}

func TestHealthReady(t *testing.T) {
	h := newTestServer(t).Routes()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
}

func TestOptimizeRequiresAdmin(t *testing.T) {
	h := newTestServer(t).Routes()
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/v1/admin/optimize", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/v1/admin/optimize", "", "X-Role", "collector").Code)
}

func TestOptimizeCreatesRoutes(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	rr := do(t, h, http.MethodPost, "/v1/admin/optimize", "", asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var sum model.CycleSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, model.TriggerManual, sum.Trigger)
	assert.Equal(t, 2, sum.RoutesCreated)
	assert.Equal(t, 4, sum.RequestsProcessed)

	rr = do(t, h, http.MethodGet, "/v1/routes", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var idx struct {
		Items []model.Route `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &idx))
	require.Len(t, idx.Items, 2)

	rr = do(t, h, http.MethodGet, "/v1/routes/"+idx.Items[0].ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"estimatedDurationMinutes"`)

	rr = do(t, h, http.MethodGet, "/v1/admin/cycles", "", asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs struct {
		Items []model.CycleRun `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs.Items, 1)
	assert.Equal(t, model.OutcomeOK, runs.Items[0].Outcome)
}

func TestOptimizeByMaterial(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodPost, "/v1/admin/optimize/by-material", "", asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sum model.CycleSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, model.TriggerMaterial, sum.Trigger)
	assert.Equal(t, 4, sum.RequestsProcessed)

	rr = do(t, h, http.MethodGet, "/v1/routes?status=planned", "")
	var idx struct {
		Items []model.Route `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &idx))
	for _, r := range idx.Items {
		for _, st := range r.Stops {
			assert.Equal(t, r.Material, st.Material)
		}
	}
}

func TestOptimizeConflictWhileCycleRuns(t *testing.T) {
	held := lease.NewLocal()
	release, err := held.TryAcquire(context.Background())
	require.NoError(t, err)
	defer release()

	h := newTestServer(t, func(o *planner.Options, _ *Server) { o.Lease = held }).Routes()
	rr := do(t, h, http.MethodPost, "/v1/admin/optimize", "", asAdmin...)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestOptimizeRateLimited(t *testing.T) {
	h := newTestServer(t, func(_ *planner.Options, s *Server) {
		s.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	}).Routes()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/admin/optimize", "", asAdmin...).Code)
	rr := do(t, h, http.MethodPost, "/v1/admin/optimize", "", asAdmin...)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRoutesQueryErrors(t *testing.T) {
	h := newTestServer(t).Routes()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/routes?status=lost", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/routes?limit=x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/routes/nope", "").Code)
}

func plannedRouteID(t *testing.T, s *Server) string {
	t.Helper()
	_, err := s.Planner.RunCycle(context.Background(), model.TriggerManual)
	require.NoError(t, err)
	routes, _, err := s.Store.ListRoutes(context.Background(), "", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, routes)
	return routes[0].ID
}

func TestAddRequestToRoute(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	id := plannedRouteID(t, s)
	st := s.Store.(*store.Memory)
	_, _, err := st.UpsertRequests(context.Background(), []model.CollectionRequest{
		{ID: "late", Location: at(-19.93, -43.94), WeightKg: 5, Material: model.MaterialPaper},
		{ID: "huge", Location: at(-19.93, -43.94), WeightKg: 5000, Material: model.MaterialMetal},
		{ID: "nowhere", WeightKg: 1, Material: model.MaterialPaper},
	})
	require.NoError(t, err)

	before, err := st.GetRoute(context.Background(), id)
	require.NoError(t, err)

	rr := do(t, h, http.MethodPost, "/v1/routes/"+id+"/requests", `{"requestId":"late"}`, asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got model.Route
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got.Stops, len(before.Stops)+1)
	assert.Equal(t, "late", got.Stops[len(got.Stops)-1].RequestID)
	assert.InDelta(t, before.TotalWeightKg+5, got.TotalWeightKg, 1e-9)

	cases := []struct {
		name, route, body string
		want              int
	}{
		{"over capacity", id, `{"requestId":"huge"}`, http.StatusConflict},
		{"already assigned", id, `{"requestId":"late"}`, http.StatusConflict},
		{"no location", id, `{"requestId":"nowhere"}`, http.StatusUnprocessableEntity},
		{"unknown request", id, `{"requestId":"ghost"}`, http.StatusNotFound},
		{"unknown route", "ghost", `{"requestId":"late"}`, http.StatusNotFound},
		{"missing field", id, `{}`, http.StatusBadRequest},
		{"unknown field", id, `{"requestId":"late","x":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/routes/"+tc.route+"/requests", tc.body, asAdmin...)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
		})
	}
}

func TestRouteStatusPatch(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	id := plannedRouteID(t, s)

	rr := do(t, h, http.MethodPatch, "/v1/routes/"+id, `{"status":"finished"}`, asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPatch, "/v1/routes/"+id, `{"status":"active"}`, asAdmin...).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/v1/routes/"+id, `{"status":"lost"}`, asAdmin...).Code)
}

func TestScheduleEndpoints(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/v1/admin/schedule", "", asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "@every 30m")

	rr = do(t, h, http.MethodPut, "/v1/admin/schedule", `{"spec":"@every 1h"}`, asAdmin...)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "@every 1h")

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/v1/admin/schedule", `{"spec":"never"}`, asAdmin...).Code)
}

func TestOptimizerConfig(t *testing.T) {
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/v1/optimizer/config", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Engine      opt.Config                 `json:"engine"`
		PricesPerKg map[model.Material]float64 `json:"pricesPerKg"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, opt.StrategyGenetic, body.Engine.Strategy)
	assert.Equal(t, 50, body.Engine.Genetic.Population)
	assert.InDelta(t, 0.45, body.PricesPerKg[model.MaterialPaper], 1e-9)
}

func TestAgentRoutesVisibility(t *testing.T) {
	s := newTestServer(t)
	h := s.Routes()
	plannedRouteID(t, s)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/agents/agent-1/routes", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/v1/agents/agent-1/routes", "", "X-Role", "collector", "X-Subject", "agent-2").Code)
	rr := do(t, h, http.MethodGet, "/v1/agents/agent-1/routes", "", "X-Role", "collector", "X-Subject", "agent-1")
	require.Equal(t, http.StatusOK, rr.Code)
	var idx struct {
		Items []model.Route `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &idx))
	for _, r := range idx.Items {
		assert.Equal(t, "agent-1", r.AgentID)
	}
}

func TestHMACAuth(t *testing.T) {
	const secret = "s3cret"
	h := newTestServer(t, func(_ *planner.Options, s *Server) {
		s.Auth = auth.NewVerifier(auth.ModeHMAC, secret)
	}).Routes()

	// headers alone are not trusted outside dev mode
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/admin/cycles", "", asAdmin...).Code)

	v := auth.NewVerifier(auth.ModeHMAC, secret)
	tok, err := v.Sign("ops", auth.RoleAdmin, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/admin/cycles", "", "Authorization", "Bearer "+tok).Code)

	bad, err := auth.NewVerifier(auth.ModeHMAC, "other").Sign("ops", auth.RoleAdmin, jwt.RegisteredClaims{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/admin/cycles", "", "Authorization", "Bearer "+bad).Code)
}

func TestMetricsAndDebug(t *testing.T) {
	metrics.RegisterDefault()
	h := newTestServer(t).Routes()
	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = do(t, h, http.MethodGet, "/debug/info", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"schedule"`)
}

func TestAgentStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agents/agent-1/routes/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Role": {"admin"}})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var evt events.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, SnapshotEvent, evt.Type)
	assert.Equal(t, "agent-1", evt.Data["agentId"])

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/admin/optimize", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("X-Role", "admin")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, events.RoutePlanned, evt.Type)
	assert.NotEmpty(t, evt.Data["routeId"])
}

func TestAgentStreamRejectsOtherAgent(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Routes())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agents/agent-1/routes/stream?token=agent-2:collector"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
