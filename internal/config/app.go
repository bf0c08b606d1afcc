package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type AppConfig struct {
	Env      string
	GRPCAddr string

	JobsEnabled bool
	JobsCron    string

	// Cancellations made more than RefundGrace before the session start get the credit back.
	RefundGrace        time.Duration
	DefaultSlotMinutes int
}

func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// LoadDotEnv reads .env files into the process environment. Variables that
// are already set win. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Env:                getEnv("APP_ENV", "development"),
		GRPCAddr:           getEnv("CORE_GRPC_ADDR", ":50051"),
		JobsEnabled:        getEnvBool("JOBS_ENABLED", true),
		JobsCron:           getEnv("JOBS_CRON", "5 0 * * *"),
		RefundGrace:        time.Duration(getEnvInt("REFUND_GRACE_HOURS", 24)) * time.Hour,
		DefaultSlotMinutes: getEnvInt("DEFAULT_SLOT_MINUTES", 60),
	}

	if cfg.RefundGrace < 0 {
		return nil, fmt.Errorf("invalid app config: REFUND_GRACE_HOURS must not be negative")
	}
	if cfg.DefaultSlotMinutes <= 0 {
		return nil, fmt.Errorf("invalid app config: DEFAULT_SLOT_MINUTES must be positive")
	}
	if _, err := cron.ParseStandard(cfg.JobsCron); err != nil {
		return nil, fmt.Errorf("invalid app config: JOBS_CRON: %w", err)
	}

	return cfg, nil
}
