package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

// DefaultMaxRows caps the rows a single query response carries.
const DefaultMaxRows = 10000

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
	Query         QueryConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
	DatabasesFile string
	Databases     map[string]DatabaseConfig
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

type QueryConfig struct {
	ExecutorSize int
	ReloadDelay  time.Duration
	MaxRows      int
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("DUCKVIEW_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid DUCKVIEW_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	for _, setting := range envSettings(&cfg) {
		raw, ok := lookup(setting.key)
		if !ok {
			continue
		}
		if err := setting.apply(strings.TrimSpace(raw)); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", setting.key, err)
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Query.ExecutorSize < 1 {
		return Config{}, fmt.Errorf("query executor size must be positive")
	}
	if cfg.Query.MaxRows < 1 {
		return Config{}, fmt.Errorf("query max rows must be positive")
	}
	if cfg.Query.ReloadDelay <= 0 {
		return Config{}, fmt.Errorf("query reload delay must be positive")
	}

	if cfg.DatabasesFile != "" {
		databases, err := LoadDatabases(cfg.DatabasesFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Databases = databases
	}
	return cfg, nil
}

// DatabaseNames returns the configured database names in sorted order.
func (c Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "duckview-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Query: QueryConfig{
			ExecutorSize: 8,
			ReloadDelay:  time.Second,
			MaxRows:      DefaultMaxRows,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "duckview",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
			UseSSL:          false,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
		Databases: map[string]DatabaseConfig{},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Query.ReloadDelay = 50 * time.Millisecond
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
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

// envSetting binds one environment variable to a field of cfg.
type envSetting struct {
	key   string
	apply func(raw string) error
}

func envSettings(cfg *Config) []envSetting {
	return []envSetting{
		{"DUCKVIEW_SERVICE_NAME", stringVar(&cfg.Service.Name)},
		{"DUCKVIEW_HTTP_ADDR", stringVar(&cfg.HTTP.Address)},
		{"DUCKVIEW_HTTP_READ_TIMEOUT", durationVar(&cfg.HTTP.ReadTimeout)},
		{"DUCKVIEW_HTTP_WRITE_TIMEOUT", durationVar(&cfg.HTTP.WriteTimeout)},
		{"DUCKVIEW_HTTP_IDLE_TIMEOUT", durationVar(&cfg.HTTP.IdleTimeout)},
		{"DUCKVIEW_QUERY_EXECUTOR_SIZE", intVar(&cfg.Query.ExecutorSize)},
		{"DUCKVIEW_QUERY_RELOAD_DELAY", durationVar(&cfg.Query.ReloadDelay)},
		{"DUCKVIEW_QUERY_MAX_ROWS", intVar(&cfg.Query.MaxRows)},
		{"DUCKVIEW_OBJECTSTORE_ENDPOINT", stringVar(&cfg.ObjectStore.Endpoint)},
		{"DUCKVIEW_OBJECTSTORE_REGION", stringVar(&cfg.ObjectStore.Region)},
		{"DUCKVIEW_OBJECTSTORE_BUCKET", stringVar(&cfg.ObjectStore.Bucket)},
		{"DUCKVIEW_OBJECTSTORE_ACCESS_KEY", stringVar(&cfg.ObjectStore.AccessKeyID)},
		{"DUCKVIEW_OBJECTSTORE_SECRET_KEY", stringVar(&cfg.ObjectStore.SecretAccessKey)},
		{"DUCKVIEW_OBJECTSTORE_USE_SSL", boolVar(&cfg.ObjectStore.UseSSL)},
		{"DUCKVIEW_LOG_JSON", boolVar(&cfg.Observability.LogJSON)},
		{"DUCKVIEW_LOG_LEVEL", logLevelVar(&cfg.Observability.LogLevel)},
		{"DUCKVIEW_AUTH_REQUIRED", boolVar(&cfg.Auth.Required)},
		{"DUCKVIEW_AUTH_STATIC_KEYS", stringVar(&cfg.Auth.StaticKeys)},
		{"DUCKVIEW_DATABASES_FILE", stringVar(&cfg.DatabasesFile)},
	}
}

func stringVar(dst *string) func(string) error {
	return func(raw string) error {
		*dst = raw
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(raw string) error {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}
}

func boolVar(dst *bool) func(string) error {
	return func(raw string) error {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}
}

func intVar(dst *int) func(string) error {
	return func(raw string) error {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}
}

func logLevelVar(dst *slog.Level) func(string) error {
	return func(raw string) error {
		switch strings.ToLower(raw) {
		case "debug":
			*dst = slog.LevelDebug
		case "info":
			*dst = slog.LevelInfo
		case "warn", "warning":
			*dst = slog.LevelWarn
		case "error":
			*dst = slog.LevelError
		default:
			return fmt.Errorf("unknown level %q", raw)
		}
		return nil
	}
}
