// Command seed imports collection requests (and, from workbooks, agents)
// into the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wasteroute/internal/config"
	"wasteroute/internal/integrations"
	"wasteroute/internal/integrations/csvfile"
	"wasteroute/internal/integrations/xlsxfile"
	"wasteroute/internal/store"
)

func sourceFor(path string) (integrations.RequestSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvfile.Source{Path: path}, nil
	case ".xlsx":
		return xlsxfile.Source{Path: path}, nil
	}
	return nil, errors.New("unsupported file type (want .csv or .xlsx)")
}

func main() {
	file := flag.String("file", "", "requests file (.csv or .xlsx)")
	flag.Parse()
	if *file == "" {
		log.Fatal("seed: -file is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("seed: DATABASE_URL is required")
	}
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

	src, err := sourceFor(*file)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	batch, err := src.Fetch(ctx)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	for _, rej := range batch.Rejected {
		log.Printf("source=%s row=%d rejected: %s", src.Name(), rej.Row, rej.Reason)
	}
	if len(batch.Agents) > 0 {
		created, updated, err := pg.UpsertAgents(ctx, batch.Agents)
		if err != nil {
			log.Fatalf("seed: agents: %v", err)
		}
		log.Printf("agents created=%d updated=%d", created, updated)
	}
	created, updated, err := pg.UpsertRequests(ctx, batch.Requests)
	if err != nil {
		log.Fatalf("seed: requests: %v", err)
	}
	log.Printf("requests created=%d updated=%d rejected=%d", created, updated, len(batch.Rejected))
}
