package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("sqlcopilot", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.AI.Provider != "dashscope" {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.TurboModel != "qwen-turbo" || cfg.AI.CoderModel != "qwen-coder-plus" {
		t.Fatalf("AI models = %q/%q", cfg.AI.TurboModel, cfg.AI.CoderModel)
	}
	if cfg.AI.Temperature != 0.1 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 1000 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout != 0 {
		t.Fatalf("AI.Timeout = %s, want unbounded", cfg.AI.Timeout)
	}
	if cfg.Local.MaxNewTokens != 512 {
		t.Fatalf("Local.MaxNewTokens = %d", cfg.Local.MaxNewTokens)
	}
	if cfg.Database.Port != 3306 || cfg.Database.Charset != "utf8mb4" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.Files.OutputDir != "./output" {
		t.Fatalf("Files.OutputDir = %q", cfg.Files.OutputDir)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.History.Enabled {
		t.Fatal("History.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("sqlcopilot", mapLookup(map[string]string{"SQLCOPILOT_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLCOPILOT_PROFILE":              "test",
		"SQLCOPILOT_AI_PROVIDER":          "openai",
		"SQLCOPILOT_AI_BASE_URL":          "https://api.example.com",
		"DASHSCOPE_API_KEY":               "dash-key",
		"SQLCOPILOT_AI_TURBO_MODEL":       "qwen-plus",
		"SQLCOPILOT_AI_TEMPERATURE":       "0.3",
		"SQLCOPILOT_AI_MAX_TOKENS":        "2048",
		"SQLCOPILOT_AI_TIMEOUT":           "21s",
		"SQLCOPILOT_LOCAL_MODEL_PATH":     "/models/qwen",
		"SQLCOPILOT_LOCAL_MAX_NEW_TOKENS": "256",
		"SQLCOPILOT_DB_URL":               "postgres://example",
		"SQLCOPILOT_DB_PORT":              "33066",
		"SQLCOPILOT_OUTPUT_DIR":           "/tmp/out",
		"SQLCOPILOT_HISTORY_ENABLED":      "true",
		"SQLCOPILOT_HISTORY_DSN":          "postgres://history",
		"SQLCOPILOT_LOG_LEVEL":            "error",
		"SQLCOPILOT_METRICS_FILE":         "/tmp/sqlcopilot.prom",
	})
	cfg, err := Load("sqlcopilot", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "dash-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.TurboModel != "qwen-plus" {
		t.Fatalf("AI.TurboModel = %q", cfg.AI.TurboModel)
	}
	if cfg.AI.Temperature != 0.3 || cfg.AI.MaxTokens != 2048 {
		t.Fatalf("AI knobs = %f/%d", cfg.AI.Temperature, cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Local.ModelPath != "/models/qwen" || cfg.Local.MaxNewTokens != 256 {
		t.Fatalf("Local = %+v", cfg.Local)
	}
	if cfg.Database.URL != "postgres://example" || cfg.Database.Port != 33066 {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if cfg.Files.OutputDir != "/tmp/out" {
		t.Fatalf("Files.OutputDir = %q", cfg.Files.OutputDir)
	}
	if !cfg.History.Enabled || cfg.History.DSN != "postgres://history" {
		t.Fatalf("History = %+v", cfg.History)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsFile != "/tmp/sqlcopilot.prom" {
		t.Fatalf("MetricsFile = %q", cfg.Observability.MetricsFile)
	}
}

func TestLoadPrefersExplicitAIKeyOverDashscopeKey(t *testing.T) {
	cfg, err := Load("sqlcopilot", mapLookup(map[string]string{
		"DASHSCOPE_API_KEY":     "dash-key",
		"SQLCOPILOT_AI_API_KEY": "explicit-key",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.APIKey != "explicit-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLCOPILOT_PROFILE": "oops"},
		{"SQLCOPILOT_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLCOPILOT_AI_TEMPERATURE": "bad"},
		{"SQLCOPILOT_AI_MAX_TOKENS": "0"},
		{"SQLCOPILOT_LOCAL_MAX_NEW_TOKENS": "-1"},
		{"SQLCOPILOT_DB_PORT": "oops"},
		{"SQLCOPILOT_AUTH_REQUIRED": "not-bool"},
		{"SQLCOPILOT_LOG_LEVEL": "verbose"},
		{"SQLCOPILOT_HISTORY_ENABLED": "true"},
	}
	for _, env := range tests {
		_, err := Load("sqlcopilot", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestDotenvLookupPrefersProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SQLCOPILOT_AI_MODEL_HINT=file\nSQLCOPILOT_DB_HOST=db.internal\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lookup, err := DotenvLookup(mapLookup(map[string]string{"SQLCOPILOT_DB_HOST": "from-env"}), envFile, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("DotenvLookup() error = %v", err)
	}
	if value, ok := lookup("SQLCOPILOT_DB_HOST"); !ok || value != "from-env" {
		t.Fatalf("SQLCOPILOT_DB_HOST = %q/%v", value, ok)
	}
	if value, ok := lookup("SQLCOPILOT_AI_MODEL_HINT"); !ok || value != "file" {
		t.Fatalf("SQLCOPILOT_AI_MODEL_HINT = %q/%v", value, ok)
	}
	if _, ok := lookup("SQLCOPILOT_UNSET"); ok {
		t.Fatal("expected unset key to be missing")
	}
}

func TestDotenvLookupEarlierFilesWin(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	shared := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte("SQLCOPILOT_DB_NAME=local\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(shared, []byte("SQLCOPILOT_DB_NAME=shared\nSQLCOPILOT_DB_USER=reader\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	lookup, err := DotenvLookup(nil, local, shared)
	if err != nil {
		t.Fatalf("DotenvLookup() error = %v", err)
	}
	cfg, err := Load("sqlcopilot", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Name != "local" || cfg.Database.User != "reader" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
