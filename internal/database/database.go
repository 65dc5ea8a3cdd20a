// Package database serves one DuckDB database, either a read-only database
// file or a directory of data files exposed as views. Directory databases can
// watch their directory and rebuild the view set when files change.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duckmesh/duckview/internal/debounce"
	"github.com/duckmesh/duckview/internal/driver"
	"github.com/duckmesh/duckview/internal/observability"
	"github.com/duckmesh/duckview/internal/schema"
)

const DefaultReloadDelay = time.Second

var (
	ErrExecutorRequired = errors.New("database executor is required")
	ErrClosed           = errors.New("database is closed")
)

type Mode string

const (
	ModeDirectory Mode = "directory"
	ModeFile      Mode = "file"
)

type Options struct {
	Name      string
	Directory string
	File      string
	Watch     bool
	// HTTPFS loads DuckDB's httpfs extension on every new connection.
	HTTPFS      bool
	ReloadDelay time.Duration
	Executor    Executor
	Logger      *slog.Logger
}

// Info describes a database for listings.
type Info struct {
	Name  string `json:"name"`
	Mode  Mode   `json:"mode"`
	Path  string `json:"path"`
	Watch bool   `json:"watch"`
	Views int    `json:"views"`
}

type Database struct {
	opts    Options
	logger  *slog.Logger
	conn    atomic.Pointer[driver.Conn]
	views   atomic.Int64
	closed  atomic.Bool
	mu      sync.Mutex
	trigger *debounce.Trigger
	watcher *watcher
}

// Open validates opts, builds the first connection and, for watched
// directories, starts the watcher.
func Open(ctx context.Context, opts Options) (*Database, error) {
	if opts.Executor == nil {
		return nil, ErrExecutorRequired
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Database{
		opts:   opts,
		logger: logger.With(slog.String("database", opts.Name)),
	}
	if err := d.rebuild(ctx); err != nil {
		return nil, err
	}

	if opts.Watch {
		d.trigger = debounce.New(opts.ReloadDelay, d.reloadFromWatch)
		w, err := newWatcher(opts.Directory, d.trigger.Fire, d.logger)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.watcher = w
	}
	return d, nil
}

func validate(opts Options) error {
	switch {
	case opts.Name == "":
		return errors.New("database name is required")
	case opts.Directory == "" && opts.File == "":
		return fmt.Errorf("database %s: one of directory or file is required", opts.Name)
	case opts.Directory != "" && opts.File != "":
		return fmt.Errorf("database %s: directory and file are mutually exclusive", opts.Name)
	case opts.Watch && opts.Directory == "":
		return fmt.Errorf("database %s: watch requires a directory", opts.Name)
	}
	if opts.Directory != "" {
		info, err := os.Stat(opts.Directory)
		if err != nil {
			return fmt.Errorf("database %s: %w", opts.Name, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("database %s: %s is not a directory", opts.Name, opts.Directory)
		}
	}
	return nil
}

func (d *Database) Name() string {
	return d.opts.Name
}

func (d *Database) Info() Info {
	info := Info{Name: d.opts.Name, Watch: d.opts.Watch, Views: int(d.views.Load())}
	if d.opts.File != "" {
		info.Mode = ModeFile
		info.Path = d.opts.File
	} else {
		info.Mode = ModeDirectory
		info.Path = d.opts.Directory
	}
	return info
}

// Conn returns the connection currently serving queries, or nil once the
// database is closed.
func (d *Database) Conn() *driver.Conn {
	return d.conn.Load()
}

// ExecuteFn runs fn with the current connection on the executor. If a reload
// closed that connection before fn could use it, fn is retried once on the
// new connection.
func (d *Database) ExecuteFn(ctx context.Context, fn func(context.Context, *driver.Conn) error) error {
	return d.opts.Executor.Do(ctx, func(ctx context.Context) error {
		conn := d.conn.Load()
		if conn == nil || d.closed.Load() {
			return ErrClosed
		}
		err := fn(ctx, conn)
		if errors.Is(err, driver.ErrConnClosed) {
			if next := d.conn.Load(); next != nil && next != conn {
				return fn(ctx, next)
			}
		}
		return err
	})
}

// Tables lists the tables and views of the current connection.
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := d.ExecuteFn(ctx, func(ctx context.Context, conn *driver.Conn) error {
		cursor, err := conn.Execute(ctx,
			`SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name`, nil)
		if err != nil {
			return err
		}
		defer func() { _ = cursor.Close() }()
		names = names[:0]
		for row, err := range cursor.All() {
			if err != nil {
				return err
			}
			names = append(names, fmt.Sprint(row.At(0)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// Reload rebuilds the connection now. On failure the previous connection
// keeps serving.
func (d *Database) Reload(ctx context.Context) error {
	return d.rebuild(ctx)
}

func (d *Database) reloadFromWatch() {
	// Failures are logged and counted by rebuild.
	_ = d.rebuild(context.Background())
}

func (d *Database) rebuild(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	conn, views, err := d.connect(ctx)
	if err != nil {
		observability.ObserveReload(d.opts.Name, "error", 0, time.Since(start))
		d.logger.ErrorContext(ctx, "schema reload failed", slog.Any("error", err))
		return fmt.Errorf("reload database %s: %w", d.opts.Name, err)
	}

	old := d.conn.Swap(conn)
	d.views.Store(int64(views))
	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.WarnContext(ctx, "close previous connection failed", slog.Any("error", err))
		}
	}
	observability.ObserveReload(d.opts.Name, "ok", views, time.Since(start))
	d.logger.InfoContext(ctx, "schema loaded",
		slog.Int("views", views),
		slog.String("duration", time.Since(start).String()),
	)
	return nil
}

func (d *Database) connect(ctx context.Context) (*driver.Conn, int, error) {
	dsn := ""
	if d.opts.File != "" {
		dsn = d.opts.File + "?access_mode=read_only"
	}
	conn, err := driver.Open(ctx, dsn, driver.WithLogger(d.logger))
	if err != nil {
		return nil, 0, err
	}

	var statements []string
	if d.opts.HTTPFS {
		statements = append(statements, "INSTALL httpfs", "LOAD httpfs")
	}
	views := 0
	if d.opts.Directory != "" {
		created, err := schema.CreateViews(d.opts.Directory)
		if err != nil {
			_ = conn.Close()
			return nil, 0, err
		}
		statements = append(statements, created...)
		views = len(created)
	}
	for _, statement := range statements {
		if err := conn.Exec(ctx, statement); err != nil {
			_ = conn.Close()
			return nil, 0, err
		}
	}
	return conn, views, nil
}

// Close stops watching and closes the active connection.
func (d *Database) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	var errs []error
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.trigger != nil {
		d.trigger.Stop()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if conn := d.conn.Swap(nil); conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
