package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	AI            AIConfig
	Local         LocalConfig
	Database      DatabaseConfig
	Files         FilesConfig
	History       HistoryConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AIConfig is shared by every hosted generator variant.
type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	TurboModel  string
	CoderModel  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type LocalConfig struct {
	ModelPath    string
	ModelName    string
	RuntimeURL   string
	MaxNewTokens int
	Timeout      time.Duration
}

// DatabaseConfig describes the database generated SQL is evaluated against.
// URL wins over the individual connection parts.
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	Charset         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type FilesConfig struct {
	TableDescription string
	Questions        string
	OutputDir        string
}

type HistoryConfig struct {
	Enabled bool
	DSN     string
}

type ObjectStoreConfig struct {
	ArchiveReports   bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsFile string
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	lookup, err := DotenvLookup(os.LookupEnv, ".env.local", ".env")
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLCOPILOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLCOPILOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "SQLCOPILOT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLCOPILOT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLCOPILOT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLCOPILOT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLCOPILOT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },

		func() error { return applyString(lookup, "SQLCOPILOT_AI_PROVIDER", &cfg.AI.Provider) },
		func() error { return applyString(lookup, "SQLCOPILOT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "DASHSCOPE_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLCOPILOT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLCOPILOT_AI_TURBO_MODEL", &cfg.AI.TurboModel) },
		func() error { return applyString(lookup, "SQLCOPILOT_AI_CODER_MODEL", &cfg.AI.CoderModel) },
		func() error { return applyFloat(lookup, "SQLCOPILOT_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyInt(lookup, "SQLCOPILOT_AI_MAX_TOKENS", &cfg.AI.MaxTokens) },
		func() error { return applyDuration(lookup, "SQLCOPILOT_AI_TIMEOUT", &cfg.AI.Timeout) },

		func() error { return applyString(lookup, "SQLCOPILOT_LOCAL_MODEL_PATH", &cfg.Local.ModelPath) },
		func() error { return applyString(lookup, "SQLCOPILOT_LOCAL_MODEL_NAME", &cfg.Local.ModelName) },
		func() error { return applyString(lookup, "SQLCOPILOT_LOCAL_RUNTIME_URL", &cfg.Local.RuntimeURL) },
		func() error { return applyInt(lookup, "SQLCOPILOT_LOCAL_MAX_NEW_TOKENS", &cfg.Local.MaxNewTokens) },
		func() error { return applyDuration(lookup, "SQLCOPILOT_LOCAL_TIMEOUT", &cfg.Local.Timeout) },

		func() error { return applyString(lookup, "SQLCOPILOT_DB_URL", &cfg.Database.URL) },
		func() error { return applyString(lookup, "SQLCOPILOT_DB_HOST", &cfg.Database.Host) },
		func() error { return applyInt(lookup, "SQLCOPILOT_DB_PORT", &cfg.Database.Port) },
		func() error { return applyString(lookup, "SQLCOPILOT_DB_USER", &cfg.Database.User) },
		func() error { return applyString(lookup, "SQLCOPILOT_DB_PASSWORD", &cfg.Database.Password) },
		func() error { return applyString(lookup, "SQLCOPILOT_DB_NAME", &cfg.Database.Name) },
		func() error { return applyString(lookup, "SQLCOPILOT_DB_CHARSET", &cfg.Database.Charset) },
		func() error { return applyInt(lookup, "SQLCOPILOT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLCOPILOT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SQLCOPILOT_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},

		func() error {
			return applyString(lookup, "SQLCOPILOT_TABLE_DESCRIPTION_FILE", &cfg.Files.TableDescription)
		},
		func() error { return applyString(lookup, "SQLCOPILOT_QUESTIONS_FILE", &cfg.Files.Questions) },
		func() error { return applyString(lookup, "SQLCOPILOT_OUTPUT_DIR", &cfg.Files.OutputDir) },

		func() error { return applyBool(lookup, "SQLCOPILOT_HISTORY_ENABLED", &cfg.History.Enabled) },
		func() error { return applyString(lookup, "SQLCOPILOT_HISTORY_DSN", &cfg.History.DSN) },

		func() error { return applyBool(lookup, "SQLCOPILOT_ARCHIVE_REPORTS", &cfg.ObjectStore.ArchiveReports) },
		func() error { return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "SQLCOPILOT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "SQLCOPILOT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "SQLCOPILOT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},

		func() error { return applyBool(lookup, "SQLCOPILOT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLCOPILOT_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyString(lookup, "SQLCOPILOT_METRICS_FILE", &cfg.Observability.MetricsFile) },

		func() error { return applyBool(lookup, "SQLCOPILOT_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLCOPILOT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.AI.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("ai max tokens must be > 0")
	}
	if cfg.Local.MaxNewTokens <= 0 {
		return Config{}, fmt.Errorf("local max new tokens must be > 0")
	}
	if cfg.History.Enabled && cfg.History.DSN == "" {
		return Config{}, fmt.Errorf("history dsn is required when history is enabled")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlcopilot"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		AI: AIConfig{
			Provider:    "dashscope",
			BaseURL:     "https://dashscope.aliyuncs.com",
			TurboModel:  "qwen-turbo",
			CoderModel:  "qwen-coder-plus",
			Temperature: 0.1,
			MaxTokens:   1000,
		},
		Local: LocalConfig{
			ModelPath:    "models/Qwen2.5-Coder-7B-Instruct",
			RuntimeURL:   "http://127.0.0.1:11434",
			MaxNewTokens: 512,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    3306,
			User:    "sqlcopilot",
			Name:    "sqlcopilot",
			Charset: "utf8mb4",
		},
		Files: FilesConfig{
			TableDescription: "./insurance/data/table_description.txt",
			Questions:        "./insurance/qa_list-2.txt",
			OutputDir:        "./output",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlcopilot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
