package main

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"wasteroute/internal/api"
	"wasteroute/internal/auth"
	"wasteroute/internal/config"
	"wasteroute/internal/events"
	"wasteroute/internal/lease"
	"wasteroute/internal/metrics"
	"wasteroute/internal/planner"
	"wasteroute/internal/scheduler"
	"wasteroute/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metrics.RegisterDefault()

	// Store selection: Postgres when DATABASE_URL is set, in-memory otherwise.
	var st store.Store
	if cfg.DatabaseURL == "" {
		st = store.NewMemory()
		log.Printf("store: in-memory")
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
		defer pg.Close()
		if cfg.DBMigrate {
			if err := pg.MigrateDir(cfg.MigrationsDir); err != nil {
				log.Fatalf("store: %v", err)
			}
		}
		st = pg
		log.Printf("store: postgres migrate=%t", cfg.DBMigrate)
	}

	// Broker and cycle lease: Redis when REDIS_URL is set, in-process otherwise.
	var (
		broker events.Broker = events.NewMemory()
		locker lease.Locker
	)
	if cfg.RedisURL != "" {
		ropt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rdb := redis.NewClient(ropt)
		defer rdb.Close()
		broker = events.NewRedis(rdb)
		locker = lease.NewRedis(rdb, "", 0)
		log.Printf("broker: redis")
	}

	pl := planner.New(st, planner.Options{
		Engine:       cfg.Optimizer.Engine,
		Seed:         cfg.Optimizer.Seed,
		PricesPerKg:  cfg.Optimizer.PricesPerKg,
		SingleFlight: cfg.Optimizer.SingleFlight,
		Lease:        locker,
		CycleTimeout: cfg.CycleTimeout,
		Broker:       broker,
	})
	sched := scheduler.New(pl, cfg.Schedule)
	if err := sched.Start(); err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	srv := &api.Server{
		Store:     st,
		Planner:   pl,
		Scheduler: sched,
		Auth:      auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret),
		Broker:    broker,
		Limiter:   rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
		Debug: map[string]any{
			"PORT":              cfg.Port,
			"AUTH_MODE":         cfg.AuthMode,
			"RATE_RPS":          cfg.RateRPS,
			"RATE_BURST":        cfg.RateBurst,
			"OPTIMIZE_SCHEDULE": cfg.Schedule,
			"STRATEGY":          cfg.Optimizer.Engine.Strategy,
			"HAS_DATABASE_URL":  cfg.DatabaseURL != "",
			"HAS_REDIS_URL":     cfg.RedisURL != "",
		},
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(srv.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Printf("API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	sched.Stop()
	log.Printf("graceful shutdown complete")
}

// statusRecorder captures the response status. It forwards Hijack so the
// route stream can upgrade to a WebSocket.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}
