package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"air2graph/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AIRTABLE_API_KEY", "key123")
	t.Setenv("AIRTABLE_BASE_ID", "appTESTBASE")
	t.Setenv("NEO4J_URI", "neo4j://localhost:7687")
	t.Setenv("NEO4J_USERNAME", "neo4j")
	t.Setenv("NEO4J_PASSWORD", "secret")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("METATABLE_NAME", "Control")
	t.Setenv("NEO4J_DATABASE", "graph")
	t.Setenv("RUN_DB_PATH", "/tmp/runs.sqlite")
	t.Setenv("EDGE_BATCH_SIZE", "500")
	t.Setenv("FETCH_CONCURRENCY", "8")
	t.Setenv("INGEST_SCHEDULE", "0 3 * * *")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "key123", cfg.AirtableAPIKey)
	assert.Equal(t, "appTESTBASE", cfg.AirtableBaseID)
	assert.Equal(t, "Control", cfg.MetatableName)
	assert.Equal(t, "graph", cfg.Neo4jDatabase)
	assert.Equal(t, "/tmp/runs.sqlite", cfg.RunDBPath)
	assert.Equal(t, 500, cfg.EdgeBatchSize)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, "0 3 * * *", cfg.IngestSchedule)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("METATABLE_NAME", "")
	t.Setenv("RUN_DB_PATH", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("EDGE_BATCH_SIZE", "")
	t.Setenv("FETCH_CONCURRENCY", "")
	t.Setenv("VALIDATION_SAMPLE_SIZE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Metatable", cfg.MetatableName)
	assert.Equal(t, "air2graph_runs.sqlite", cfg.RunDBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.EdgeBatchSize)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 1000, cfg.ValidationSampleSize)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnv_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "api_key", unset: "AIRTABLE_API_KEY"},
		{name: "base_id", unset: "AIRTABLE_BASE_ID"},
		{name: "neo4j_uri", unset: "NEO4J_URI"},
		{name: "neo4j_password", unset: "NEO4J_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadFromEnv()
			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadFromEnv_ProductionRejectsCORSWildcard(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	_, err := LoadFromEnv()
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{level: "debug", want: "DEBUG"},
		{level: "info", want: "INFO"},
		{level: "warn", want: "WARN"},
		{level: "error", want: "ERROR"},
		{level: "", want: "INFO"},
		{level: "bogus", want: "INFO"},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel().String())
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	require.NoError(t, err)
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := "# comment\nDOTENV_TEST_A=plain\nDOTENV_TEST_B=\"quoted\"\n\nnot a pair\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))
	t.Setenv("DOTENV_TEST_A", "")
	t.Setenv("DOTENV_TEST_B", "")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "plain", os.Getenv("DOTENV_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("DOTENV_TEST_B"))
}

func TestLoadDotEnv_EnvTakesPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOTENV_TEST_C=fromfile\n"), 0o644))
	t.Setenv("DOTENV_TEST_C", "fromenv")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "fromenv", os.Getenv("DOTENV_TEST_C"))
}
