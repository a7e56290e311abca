// Package config assembles service configuration from environment variables
// and an optional YAML optimizer file, then validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"wasteroute/internal/model"
	"wasteroute/internal/opt"
)

// Config is the full service configuration.
type Config struct {
	Port           string        `validate:"required,numeric"`
	DatabaseURL    string        `validate:"omitempty"`
	DBMigrate      bool
	MigrationsDir  string        `validate:"required"`
	RedisURL       string        `validate:"omitempty,url"`
	Schedule       string        `validate:"required"`
	OptimizerPath  string        `validate:"omitempty"`
	AuthMode       string        `validate:"oneof=dev hmac"`
	AuthHMACSecret string        `validate:"required_if=AuthMode hmac"`
	RateRPS        float64       `validate:"gt=0"`
	RateBurst      int           `validate:"gte=1"`
	CycleTimeout   time.Duration `validate:"gte=0"`
	Optimizer      Optimizer
}

// Optimizer is the YAML-backed part of the configuration.
type Optimizer struct {
	// Seed fixes the per-cycle random stream; 0 picks a time-based seed.
	Seed int64 `yaml:"seed" json:"seed"`
	// SingleFlight rejects a cycle while another one runs.
	SingleFlight bool       `yaml:"singleFlight" json:"singleFlight"`
	Engine       opt.Config `yaml:"engine" json:"engine"`
	// PricesPerKg values a route: sum of stop weight times its material price.
	PricesPerKg map[model.Material]float64 `yaml:"pricesPerKg" json:"pricesPerKg" validate:"dive,gte=0"`
}

// DefaultOptimizer returns the optimizer configuration used without a YAML file.
func DefaultOptimizer() Optimizer {
	return Optimizer{
		SingleFlight: true,
		Engine:       opt.DefaultConfig(),
		PricesPerKg: map[model.Material]float64{
			model.MaterialPaper:      0.45,
			model.MaterialPlastic:    0.90,
			model.MaterialGlass:      0.15,
			model.MaterialMetal:      3.20,
			model.MaterialOrganic:    0.05,
			model.MaterialElectronic: 4.50,
			model.MaterialOther:      0,
		},
	}
}

// Load reads the process environment and the optimizer file it points to.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset variables take their defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	c := Config{
		Port:           env("PORT", "8080"),
		DatabaseURL:    env("DATABASE_URL", ""),
		DBMigrate:      env("DB_MIGRATE", "true") != "false",
		MigrationsDir:  env("MIGRATIONS_DIR", "db/migrations"),
		RedisURL:       env("REDIS_URL", ""),
		Schedule:       env("OPTIMIZE_SCHEDULE", "@every 30m"),
		OptimizerPath:  env("OPTIMIZER_CONFIG", ""),
		AuthMode:       strings.ToLower(env("AUTH_MODE", "dev")),
		AuthHMACSecret: env("AUTH_HMAC_SECRET", ""),
		Optimizer:      DefaultOptimizer(),
	}
	var err error
	if c.RateRPS, err = strconv.ParseFloat(env("RATE_RPS", "1"), 64); err != nil {
		return c, fmt.Errorf("config: RATE_RPS: %w", err)
	}
	if c.RateBurst, err = strconv.Atoi(env("RATE_BURST", "3")); err != nil {
		return c, fmt.Errorf("config: RATE_BURST: %w", err)
	}
	if c.CycleTimeout, err = time.ParseDuration(env("CYCLE_TIMEOUT", "0s")); err != nil {
		return c, fmt.Errorf("config: CYCLE_TIMEOUT: %w", err)
	}
	if v := getenv("OPTIMIZER_SEED"); v != "" {
		if c.Optimizer.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return c, fmt.Errorf("config: OPTIMIZER_SEED: %w", err)
		}
	}
	if c.OptimizerPath != "" {
		if c.Optimizer, err = LoadOptimizer(c.OptimizerPath); err != nil {
			return c, err
		}
	}
	return c, Validate(c)
}

const maxOptimizerFileSize = 1 << 20

// LoadOptimizer reads a YAML optimizer file. Omitted fields keep their defaults.
func LoadOptimizer(path string) (Optimizer, error) {
	o := DefaultOptimizer()
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".yaml" && ext != ".yml" {
		return o, fmt.Errorf("config: optimizer file must be .yaml or .yml, got %q", ext)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return o, fmt.Errorf("config: stat optimizer file: %w", err)
	}
	if info.Size() > maxOptimizerFileSize {
		return o, fmt.Errorf("config: optimizer file too large: %d bytes", info.Size())
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return o, fmt.Errorf("config: read optimizer file: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("config: parse %s: %w", clean, err)
	}
	return o, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags, including the nested engine tuning, and the
// material keys of the price table.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	for m := range c.Optimizer.PricesPerKg {
		if !m.Valid() {
			return fmt.Errorf("config: unknown material %q in pricesPerKg", m)
		}
	}
	return nil
}
