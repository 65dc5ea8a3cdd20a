package database

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/duckmesh/duckview/internal/config"
)

// Registry holds the databases a process serves, keyed by name.
type Registry struct {
	databases map[string]*Database
}

func NewRegistry(databases ...*Database) *Registry {
	r := &Registry{databases: make(map[string]*Database, len(databases))}
	for _, database := range databases {
		r.databases[database.Name()] = database
	}
	return r
}

// OpenRegistry opens every configured database. If one fails, the ones
// already opened are closed again.
func OpenRegistry(ctx context.Context, databases map[string]config.DatabaseConfig, executor Executor, reloadDelay time.Duration, logger *slog.Logger) (*Registry, error) {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := NewRegistry()
	for _, name := range names {
		cfg := databases[name]
		database, err := Open(ctx, Options{
			Name:        name,
			Directory:   cfg.Directory,
			File:        cfg.File,
			Watch:       cfg.Watch,
			HTTPFS:      cfg.HTTPFS,
			ReloadDelay: reloadDelay,
			Executor:    executor,
			Logger:      logger,
		})
		if err != nil {
			_ = registry.Close()
			return nil, err
		}
		registry.databases[name] = database
	}
	return registry, nil
}

func (r *Registry) Get(name string) (*Database, bool) {
	database, ok := r.databases[name]
	return database, ok
}

// List returns every database sorted by name.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.databases))
	for _, database := range r.databases {
		out = append(out, database.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Close() error {
	var errs []error
	for _, database := range r.databases {
		if err := database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
