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

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	WarehouseBigQuery = "bigquery"
	WarehouseDuckDB   = "duckdb"
	WarehousePostgres = "postgres"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	LLM           LLMConfig
	Warehouse     WarehouseConfig
	ObjectStore   ObjectStoreConfig
	Interaction   InteractionConfig
	History       HistoryConfig
	Seed          SeedConfig
	Observability ObservabilityConfig
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

type LLMConfig struct {
	Provider     string
	BaseURL      string
	OpenAIAPIKey string
	GeminiAPIKey string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	Retries      int
}

// APIKey returns the credential of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

type WarehouseConfig struct {
	Kind                string
	Timeout             time.Duration
	BigQueryProject     string
	BigQueryLocation    string
	BigQueryCredentials string
	DuckDBPath          string
	DuckDBLoadFromStore bool
	PostgresDSN         string
	MaxOpenConns        int
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type InteractionConfig struct {
	LogPath     string
	PreviewRows int
}

type HistoryConfig struct {
	DSN          string
	RecentLimit  int
	MaxOpenConns int
}

type SeedConfig struct {
	Customers int
	Orders    int
	Seed      int64
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYPILOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYPILOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "QUERYPILOT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "QUERYPILOT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "QUERYPILOT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "QUERYPILOT_LLM_PROVIDER", &cfg.LLM.Provider) },
		func() error { return applyString(lookup, "QUERYPILOT_LLM_BASE_URL", &cfg.LLM.BaseURL) },
		func() error { return applyString(lookup, "OPENAI_API_KEY", &cfg.LLM.OpenAIAPIKey) },
		func() error { return applyString(lookup, "GEMINI_API_KEY", &cfg.LLM.GeminiAPIKey) },
		func() error { return applyString(lookup, "QUERYPILOT_LLM_MODEL", &cfg.LLM.Model) },
		func() error { return applyFloat(lookup, "QUERYPILOT_LLM_TEMPERATURE", &cfg.LLM.Temperature) },
		func() error { return applyDuration(lookup, "QUERYPILOT_LLM_TIMEOUT", &cfg.LLM.Timeout) },
		func() error { return applyInt(lookup, "QUERYPILOT_LLM_RETRIES", &cfg.LLM.Retries) },
		func() error { return applyString(lookup, "QUERYPILOT_WAREHOUSE", &cfg.Warehouse.Kind) },
		func() error { return applyDuration(lookup, "QUERYPILOT_WAREHOUSE_TIMEOUT", &cfg.Warehouse.Timeout) },
		func() error { return applyString(lookup, "QUERYPILOT_BIGQUERY_PROJECT", &cfg.Warehouse.BigQueryProject) },
		func() error { return applyString(lookup, "QUERYPILOT_BIGQUERY_LOCATION", &cfg.Warehouse.BigQueryLocation) },
		func() error {
			return applyString(lookup, "GOOGLE_APPLICATION_CREDENTIALS", &cfg.Warehouse.BigQueryCredentials)
		},
		func() error { return applyString(lookup, "QUERYPILOT_DUCKDB_PATH", &cfg.Warehouse.DuckDBPath) },
		func() error {
			return applyBool(lookup, "QUERYPILOT_DUCKDB_LOAD_OBJECTSTORE", &cfg.Warehouse.DuckDBLoadFromStore)
		},
		func() error { return applyString(lookup, "QUERYPILOT_POSTGRES_DSN", &cfg.Warehouse.PostgresDSN) },
		func() error { return applyInt(lookup, "QUERYPILOT_POSTGRES_MAX_OPEN_CONNS", &cfg.Warehouse.MaxOpenConns) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "QUERYPILOT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "QUERYPILOT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "QUERYPILOT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "QUERYPILOT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "QUERYPILOT_INTERACTION_LOG", &cfg.Interaction.LogPath) },
		func() error { return applyInt(lookup, "QUERYPILOT_PREVIEW_ROWS", &cfg.Interaction.PreviewRows) },
		func() error { return applyString(lookup, "QUERYPILOT_HISTORY_DSN", &cfg.History.DSN) },
		func() error { return applyInt(lookup, "QUERYPILOT_HISTORY_RECENT_LIMIT", &cfg.History.RecentLimit) },
		func() error { return applyInt(lookup, "QUERYPILOT_SEED_CUSTOMERS", &cfg.Seed.Customers) },
		func() error { return applyInt(lookup, "QUERYPILOT_SEED_ORDERS", &cfg.Seed.Orders) },
		func() error { return applyInt64(lookup, "QUERYPILOT_SEED_RANDOM", &cfg.Seed.Seed) },
		func() error { return applyBool(lookup, "QUERYPILOT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "QUERYPILOT_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Warehouse.Kind = strings.ToLower(cfg.Warehouse.Kind)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("invalid QUERYPILOT_LLM_PROVIDER: %q", cfg.LLM.Provider)
	}
	switch cfg.Warehouse.Kind {
	case WarehouseBigQuery, WarehouseDuckDB, WarehousePostgres:
	default:
		return Config{}, fmt.Errorf("invalid QUERYPILOT_WAREHOUSE: %q", cfg.Warehouse.Kind)
	}
	if cfg.LLM.Retries < 0 || cfg.LLM.Retries > 1 {
		return Config{}, fmt.Errorf("invalid QUERYPILOT_LLM_RETRIES: %d (allowed: 0 or 1)", cfg.LLM.Retries)
	}
	if cfg.Interaction.PreviewRows <= 0 {
		return Config{}, fmt.Errorf("invalid QUERYPILOT_PREVIEW_ROWS: %d", cfg.Interaction.PreviewRows)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querypilot"},
		HTTP: HTTPConfig{
			Address:      ":8501",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4",
			Temperature: 0,
			Timeout:     60 * time.Second,
			Retries:     1,
		},
		Warehouse: WarehouseConfig{
			Kind:         WarehouseBigQuery,
			Timeout:      90 * time.Second,
			DuckDBPath:   "",
			MaxOpenConns: 4,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querypilot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "datasets",
			AutoCreateBucket: true,
		},
		Interaction: InteractionConfig{
			LogPath:     "querypilot_interactions.log",
			PreviewRows: 5,
		},
		History: HistoryConfig{
			DSN:          "",
			RecentLimit:  20,
			MaxOpenConns: 4,
		},
		Seed: SeedConfig{
			Customers: 50,
			Orders:    400,
			Seed:      42,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18501"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Warehouse.Kind = WarehouseDuckDB
		cfg.LLM.Retries = 0
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
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

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
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
