package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("duckview-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Query.ExecutorSize != 8 {
		t.Fatalf("Query.ExecutorSize = %d", cfg.Query.ExecutorSize)
	}
	if cfg.Query.ReloadDelay != time.Second {
		t.Fatalf("Query.ReloadDelay = %s", cfg.Query.ReloadDelay)
	}
	if cfg.Query.MaxRows != 10000 {
		t.Fatalf("Query.MaxRows = %d", cfg.Query.MaxRows)
	}
	if len(cfg.Databases) != 0 {
		t.Fatalf("Databases = %#v, want none", cfg.Databases)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"DUCKVIEW_PROFILE": "prod"})
	cfg, err := Load("duckview-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"DUCKVIEW_PROFILE":                "test",
		"DUCKVIEW_HTTP_ADDR":              ":9999",
		"DUCKVIEW_HTTP_READ_TIMEOUT":      "2s",
		"DUCKVIEW_HTTP_WRITE_TIMEOUT":     "3s",
		"DUCKVIEW_LOG_LEVEL":              "error",
		"DUCKVIEW_AUTH_REQUIRED":          "true",
		"DUCKVIEW_AUTH_STATIC_KEYS":       "k1:analyst:trove",
		"DUCKVIEW_SERVICE_NAME":           "duckview-custom",
		"DUCKVIEW_QUERY_EXECUTOR_SIZE":    "3",
		"DUCKVIEW_QUERY_RELOAD_DELAY":     "250ms",
		"DUCKVIEW_QUERY_MAX_ROWS":         "50",
		"DUCKVIEW_OBJECTSTORE_ENDPOINT":   "s3.example.com",
		"DUCKVIEW_OBJECTSTORE_BUCKET":     "duckview-prod",
		"DUCKVIEW_OBJECTSTORE_REGION":     "us-west-2",
		"DUCKVIEW_OBJECTSTORE_ACCESS_KEY": "abc",
		"DUCKVIEW_OBJECTSTORE_SECRET_KEY": "def",
		"DUCKVIEW_OBJECTSTORE_USE_SSL":    "true",
	})
	cfg, err := Load("duckview-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "duckview-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:analyst:trove" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Query.ExecutorSize != 3 {
		t.Fatalf("Query.ExecutorSize = %d", cfg.Query.ExecutorSize)
	}
	if cfg.Query.ReloadDelay != 250*time.Millisecond {
		t.Fatalf("Query.ReloadDelay = %s", cfg.Query.ReloadDelay)
	}
	if cfg.Query.MaxRows != 50 {
		t.Fatalf("Query.MaxRows = %d", cfg.Query.MaxRows)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "duckview-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.Region != "us-west-2" {
		t.Fatalf("ObjectStore.Region = %q", cfg.ObjectStore.Region)
	}
	if cfg.ObjectStore.AccessKeyID != "abc" || cfg.ObjectStore.SecretAccessKey != "def" {
		t.Fatalf("ObjectStore credentials = %q/%q", cfg.ObjectStore.AccessKeyID, cfg.ObjectStore.SecretAccessKey)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"DUCKVIEW_PROFILE": "oops"},
		{"DUCKVIEW_HTTP_READ_TIMEOUT": "NaN"},
		{"DUCKVIEW_QUERY_EXECUTOR_SIZE": "oops"},
		{"DUCKVIEW_QUERY_EXECUTOR_SIZE": "0"},
		{"DUCKVIEW_QUERY_RELOAD_DELAY": "0s"},
		{"DUCKVIEW_QUERY_MAX_ROWS": "0"},
		{"DUCKVIEW_QUERY_MAX_ROWS": "-1"},
		{"DUCKVIEW_AUTH_REQUIRED": "not-bool"},
		{"DUCKVIEW_LOG_LEVEL": "verbose"},
		{"DUCKVIEW_DATABASES_FILE": "/does/not/exist.yaml"},
	}
	for _, env := range tests {
		_, err := Load("duckview-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadReadsDatabasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "databases.yaml")
	body := `
databases:
  trove:
    directory: ./fixtures
    watch: true
    mirror:
      prefix: trove/
  warehouse:
    file: ./fixtures/fixtures.duckdb
  archive:
    directory: ./archive
    httpfs: true
    mirror:
      prefix: archive/
      interval: 5m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load("duckview-api", mapLookup(map[string]string{"DUCKVIEW_DATABASES_FILE": path}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	names := cfg.DatabaseNames()
	if len(names) != 3 || names[0] != "archive" || names[1] != "trove" || names[2] != "warehouse" {
		t.Fatalf("DatabaseNames() = %v", names)
	}
	trove := cfg.Databases["trove"]
	if trove.Directory != "./fixtures" || !trove.Watch {
		t.Fatalf("trove = %#v", trove)
	}
	if trove.Mirror == nil || trove.Mirror.Prefix != "trove/" || trove.Mirror.Interval != 30*time.Second {
		t.Fatalf("trove.Mirror = %#v", trove.Mirror)
	}
	if cfg.Databases["archive"].Mirror.Interval != 5*time.Minute {
		t.Fatalf("archive.Mirror.Interval = %s", cfg.Databases["archive"].Mirror.Interval)
	}
	if !cfg.Databases["archive"].HTTPFS {
		t.Fatal("archive.HTTPFS = false, want true")
	}
	if cfg.Databases["warehouse"].File != "./fixtures/fixtures.duckdb" {
		t.Fatalf("warehouse = %#v", cfg.Databases["warehouse"])
	}
}

func TestParseDatabasesRejectsInvalidEntries(t *testing.T) {
	tests := []string{
		`databases: {}`,
		`databases: {a: {}}`,
		`databases: {a: {directory: x, file: y}}`,
		`databases: {a: {file: y, watch: true}}`,
		`databases: {a: {file: y, mirror: {prefix: p/}}}`,
		`databases: {a: {directory: x, mirror: {interval: -1s}}}`,
		`databases: {"bad name": {directory: x}}`,
		`databases: [1, 2]`,
	}
	for _, body := range tests {
		if _, err := ParseDatabases([]byte(body)); err == nil {
			t.Fatalf("ParseDatabases(%q) expected error", body)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
