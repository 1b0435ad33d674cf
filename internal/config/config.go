// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"air2graph/internal/domain"
)

// Config holds the configuration for the sync service.
type Config struct {
	// Source base credentials.
	AirtableAPIKey string // bearer token for the source API
	AirtableBaseID string // base identifier (app...)
	MetatableName  string // control table name (default "Metatable")

	// Graph store connection.
	Neo4jURI      string // bolt/neo4j URI (e.g. neo4j://localhost:7687)
	Neo4jUsername string
	Neo4jPassword string
	Neo4jDatabase string // named database; empty uses the server default

	RunDBPath  string // path to SQLite run-history file
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Ingestion tuning.
	EdgeBatchSize        int    // page size for the store-side edge upsert (default 1000)
	FetchConcurrency     int    // bounded-parallel table fetches (default 4)
	ValidationSampleSize int    // records sampled per table by validate (default 1000)
	IngestSchedule       string // cron expression for periodic resync; empty disables

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the service is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		AirtableAPIKey: os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		MetatableName:  os.Getenv("METATABLE_NAME"),
		Neo4jURI:       os.Getenv("NEO4J_URI"),
		Neo4jUsername:  os.Getenv("NEO4J_USERNAME"),
		Neo4jPassword:  os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase:  os.Getenv("NEO4J_DATABASE"),
		RunDBPath:      os.Getenv("RUN_DB_PATH"),
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Env:            os.Getenv("ENV"),
		IngestSchedule: os.Getenv("INGEST_SCHEDULE"),
	}

	if v := os.Getenv("EDGE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EdgeBatchSize = n
		}
	}
	if v := os.Getenv("FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchConcurrency = n
		}
	}
	if v := os.Getenv("VALIDATION_SAMPLE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ValidationSampleSize = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// Defaults
	if cfg.MetatableName == "" {
		cfg.MetatableName = "Metatable"
	}
	if cfg.RunDBPath == "" {
		cfg.RunDBPath = "air2graph_runs.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.EdgeBatchSize == 0 {
		cfg.EdgeBatchSize = 1000
	}
	if cfg.FetchConcurrency == 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.ValidationSampleSize == 0 {
		cfg.ValidationSampleSize = 1000
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Required credentials.
	if cfg.AirtableAPIKey == "" {
		return nil, domain.ErrConfig("AIRTABLE_API_KEY must be set")
	}
	if cfg.AirtableBaseID == "" {
		return nil, domain.ErrConfig("AIRTABLE_BASE_ID must be set")
	}
	if cfg.Neo4jURI == "" {
		return nil, domain.ErrConfig("NEO4J_URI must be set")
	}
	if cfg.Neo4jUsername == "" || cfg.Neo4jPassword == "" {
		return nil, domain.ErrConfig("NEO4J_USERNAME and NEO4J_PASSWORD must be set")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, domain.ErrConfig("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	} else if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
		cfg.Warnings = append(cfg.Warnings, "CORS allows all origins — set CORS_ALLOWED_ORIGINS in production")
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
