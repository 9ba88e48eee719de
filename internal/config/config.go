// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	DevMode  bool

	Risk   RiskConfig
	Prices PricesConfig
	Backup BackupConfig
}

// RiskConfig holds the parameters of the performance engine
type RiskConfig struct {
	VaRConfidence     float64 // e.g. 0.95
	WindowDays        int     // lookback window for return series
	RiskFreeRate      float64 // annual, e.g. 0.02
	PeriodsPerYear    int     // 252 trading days
	AllowShortSelling bool    // when false, sells beyond held quantity are rejected
}

// PricesConfig holds the price refresh settings
type PricesConfig struct {
	RefreshSchedule string // cron expression for the daily price refresh
	StaleAfterDays  int    // log a warning when the latest quote is older than this
	CarryForward    bool   // value dates without a quote at the latest prior close
}

// BackupConfig holds ledger backup settings. Backups are disabled unless a
// bucket is configured.
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string // S3-compatible endpoint URL (empty for AWS)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // cron expression
	Retention       int    // number of backups to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ALPHAVIEW_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Risk: RiskConfig{
			VaRConfidence:     getEnvAsFloat("VAR_CONFIDENCE", 0.95),
			WindowDays:        getEnvAsInt("RISK_WINDOW_DAYS", 252),
			RiskFreeRate:      getEnvAsFloat("RISK_FREE_RATE", 0.02),
			PeriodsPerYear:    getEnvAsInt("PERIODS_PER_YEAR", 252),
			AllowShortSelling: getEnvAsBool("ALLOW_SHORT_SELLING", false),
		},
		Prices: PricesConfig{
			RefreshSchedule: getEnv("PRICE_REFRESH_SCHEDULE", "0 30 22 * * MON-FRI"),
			StaleAfterDays:  getEnvAsInt("PRICE_STALE_AFTER_DAYS", 5),
			CarryForward:    getEnvAsBool("PRICE_CARRY_FORWARD", true),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			Retention:       getEnvAsInt("BACKUP_RETENTION", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is consistent
func (c *Config) Validate() error {
	if c.Risk.VaRConfidence <= 0 || c.Risk.VaRConfidence >= 1 {
		return fmt.Errorf("VAR_CONFIDENCE must be in (0, 1), got %v", c.Risk.VaRConfidence)
	}
	if c.Risk.PeriodsPerYear <= 0 {
		return fmt.Errorf("PERIODS_PER_YEAR must be positive, got %d", c.Risk.PeriodsPerYear)
	}
	if c.Risk.WindowDays <= 0 {
		return fmt.Errorf("RISK_WINDOW_DAYS must be positive, got %d", c.Risk.WindowDays)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET is required when backups are enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
