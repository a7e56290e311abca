package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"wasteroute/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every pending migration found in dir.
func (p *Postgres) MigrateDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("migrate: resolve %s: %w", dir, err)
	}
	driver, err := migratepgx.WithInstance(p.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migrate: driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+abs, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	// m is not closed: closing it would close p.db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

const requestCols = `id, requester_id, lat, lng, address, weight_kg, material, status, created_at`

func scanRequest(row interface{ Scan(...any) error }) (model.CollectionRequest, error) {
	var r model.CollectionRequest
	var requester, address sql.NullString
	var lat, lng sql.NullFloat64
	if err := row.Scan(&r.ID, &requester, &lat, &lng, &address, &r.WeightKg, &r.Material, &r.Status, &r.CreatedAt); err != nil {
		return r, err
	}
	r.RequesterID = requester.String
	r.Address = address.String
	r.Location = geoPoint(lat, lng)
	return r, nil
}

func (p *Postgres) PendingRequests(ctx context.Context) ([]model.CollectionRequest, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+requestCols+` FROM collection_requests WHERE status IN ($1,$2) ORDER BY created_at, id`,
		model.RequestRequested, model.RequestUnderReview)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CollectionRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRequest(ctx context.Context, id string) (model.CollectionRequest, error) {
	r, err := scanRequest(p.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM collection_requests WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

const agentCols = `id, name, kind, status, lat, lng, capacity_kg, created_at`

func scanAgent(row interface{ Scan(...any) error }) (model.Agent, error) {
	var a model.Agent
	var name sql.NullString
	var lat, lng sql.NullFloat64
	var created sql.NullTime
	if err := row.Scan(&a.ID, &name, &a.Kind, &a.Status, &lat, &lng, &a.CapacityKg, &created); err != nil {
		return a, err
	}
	a.Name = name.String
	a.Location = geoPoint(lat, lng)
	if created.Valid {
		t := created.Time
		a.CreatedAt = &t
	}
	return a, nil
}

func (p *Postgres) ActiveAgents(ctx context.Context) ([]model.Agent, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+agentCols+` FROM agents WHERE kind=$1 AND status=$2 ORDER BY created_at NULLS LAST, id`,
		model.AgentCollector, model.AgentActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	a, err := scanAgent(p.db.QueryRowContext(ctx, `SELECT `+agentCols+` FROM agents WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// PersistRoute inserts the route and marks its requests assigned in one transaction.
func (p *Postgres) PersistRoute(ctx context.Context, r model.Route) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return "", err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `INSERT INTO routes (id, agent_id, status, material, algorithm, stops, total_distance_km, estimated_duration_min, total_weight_kg, total_value, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, nullIfEmpty(r.AgentID), r.Status, nullIfEmpty(string(r.Material)), nullIfEmpty(r.Algorithm), stops,
		r.TotalDistanceKm, r.EstimatedDurationMin, r.TotalWeightKg, r.TotalValue, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return "", err
	}
	if err := markAssigned(ctx, tx, r); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *Postgres) UpdateRoute(ctx context.Context, r model.Route) error {
	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `UPDATE routes SET agent_id=$2, status=$3, stops=$4, total_distance_km=$5, estimated_duration_min=$6, total_weight_kg=$7, total_value=$8, updated_at=now() WHERE id=$1`,
		r.ID, nullIfEmpty(r.AgentID), r.Status, stops, r.TotalDistanceKm, r.EstimatedDurationMin, r.TotalWeightKg, r.TotalValue)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := markAssigned(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func markAssigned(ctx context.Context, tx *sql.Tx, r model.Route) error {
	ids := r.RequestIDs()
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `UPDATE collection_requests SET status=$1 WHERE id = ANY($2) AND status IN ($3,$4)`,
		model.RequestAssigned, ids, model.RequestRequested, model.RequestUnderReview)
	return err
}

const routeCols = `id, agent_id, status, material, algorithm, stops, total_distance_km, estimated_duration_min, total_weight_kg, total_value, created_at, updated_at`

func scanRoute(row interface{ Scan(...any) error }) (model.Route, error) {
	var r model.Route
	var agentID, material, algo sql.NullString
	var stops []byte
	if err := row.Scan(&r.ID, &agentID, &r.Status, &material, &algo, &stops, &r.TotalDistanceKm, &r.EstimatedDurationMin,
		&r.TotalWeightKg, &r.TotalValue, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.AgentID = agentID.String
	r.Material = model.Material(material.String)
	r.Algorithm = algo.String
	r.Stops = []model.RouteStop{}
	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &r.Stops); err != nil {
			return r, fmt.Errorf("decode stops of route %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (p *Postgres) GetRoute(ctx context.Context, id string) (model.Route, error) {
	r, err := scanRoute(p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// ListRoutes pages by id; the cursor is the last id of the previous page.
func (p *Postgres) ListRoutes(ctx context.Context, status, cursor string, limit int) ([]model.Route, string, error) {
	limit = pageSize(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id > $2) ORDER BY id LIMIT $3`, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Route{}
	var last string
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = r.ID
	}
	var next string
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) ListRoutesForAgent(ctx context.Context, agentID string) ([]model.Route, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes WHERE agent_id=$1 ORDER BY created_at`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveCycleRun(ctx context.Context, run model.CycleRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return "", err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO cycle_runs (id, trigger, outcome, error, summary, started_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		run.ID, run.Summary.Trigger, run.Outcome, nullIfEmpty(run.Error), summary, run.Summary.StartedAt)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (p *Postgres) ListCycleRuns(ctx context.Context, limit int) ([]model.CycleRun, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, outcome, error, summary FROM cycle_runs ORDER BY started_at DESC LIMIT $1`, pageSize(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CycleRun{}
	for rows.Next() {
		var run model.CycleRun
		var msg sql.NullString
		var summary []byte
		if err := rows.Scan(&run.ID, &run.Outcome, &msg, &summary); err != nil {
			return nil, err
		}
		run.Error = msg.String
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, fmt.Errorf("decode cycle run %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpsertRequests inserts or replaces requests by id. (xmax = 0) tells a
// fresh insert from a conflict update.
func (p *Postgres) UpsertRequests(ctx context.Context, reqs []model.CollectionRequest) (int, int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()
	created, updated := 0, 0
	for _, r := range reqs {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Status == "" {
			r.Status = model.RequestRequested
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		lat, lng := coords(r.Location)
		var inserted bool
		err := tx.QueryRowContext(ctx, `INSERT INTO collection_requests (`+requestCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET requester_id=EXCLUDED.requester_id, lat=EXCLUDED.lat, lng=EXCLUDED.lng, address=EXCLUDED.address,
			weight_kg=EXCLUDED.weight_kg, material=EXCLUDED.material, status=EXCLUDED.status
			RETURNING (xmax = 0)`,
			r.ID, nullIfEmpty(r.RequesterID), lat, lng, nullIfEmpty(r.Address), r.WeightKg, r.Material, r.Status, r.CreatedAt).Scan(&inserted)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert request %s: %w", r.ID, err)
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func (p *Postgres) UpsertAgents(ctx context.Context, agents []model.Agent) (int, int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()
	created, updated := 0, 0
	for _, a := range agents {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Kind == "" {
			a.Kind = model.AgentCollector
		}
		if a.Status == "" {
			a.Status = model.AgentActive
		}
		lat, lng := coords(a.Location)
		var createdAt any
		if a.CreatedAt != nil {
			createdAt = *a.CreatedAt
		}
		var inserted bool
		err := tx.QueryRowContext(ctx, `INSERT INTO agents (`+agentCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, kind=EXCLUDED.kind, status=EXCLUDED.status, lat=EXCLUDED.lat,
			lng=EXCLUDED.lng, capacity_kg=EXCLUDED.capacity_kg, created_at=COALESCE(EXCLUDED.created_at, agents.created_at)
			RETURNING (xmax = 0)`,
			a.ID, nullIfEmpty(a.Name), a.Kind, a.Status, lat, lng, a.CapacityKg, createdAt).Scan(&inserted)
		if err != nil {
			return 0, 0, fmt.Errorf("upsert agent %s: %w", a.ID, err)
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// coords splits an optional point into nullable columns.
func coords(g *model.GeoPoint) (any, any) {
	if g == nil {
		return nil, nil
	}
	return g.Lat, g.Lng
}

// geoPoint is nil unless both columns are set.
func geoPoint(lat, lng sql.NullFloat64) *model.GeoPoint {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
}
