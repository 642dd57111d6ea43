// Package storage is the query-execution seam: it turns a compiled
// query.Plan into rows by running it against a concrete database.
//
// Backends register an Executor factory for a kind ("sqlite", "postgres",
// ...) from their init functions; callers pick one by name through New and
// never import a backend directly. Import etlmanifest/internal/storage/all
// to enable every built-in backend.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"etlmanifest/internal/query"
	"etlmanifest/pkg/records"
)

var (
	// ErrExecution wraps any failure raised by the database while running a
	// plan.
	ErrExecution = errors.New("query execution failed")
	// ErrUnknownKind is returned by New for kinds nobody registered.
	ErrUnknownKind = errors.New("unsupported storage kind")
)

// Executor runs compiled plans. Implementations own their connection pool
// and release it in Close.
type Executor interface {
	Execute(ctx context.Context, plan *query.Plan) ([]records.Row, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
	// Logger receives backend logs. The zero value discards them.
	Logger zerolog.Logger
}

// ComponentLogger returns Logger tagged with component=storage.<backend>.
func (c Config) ComponentLogger(backend string) zerolog.Logger {
	return c.Logger.With().Str("component", "storage."+backend).Logger()
}

// Factory opens an Executor for cfg.
type Factory func(ctx context.Context, cfg Config) (Executor, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens an Executor of cfg.Kind.
func New(ctx context.Context, cfg Config) (Executor, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q (registered: %v)", cfg.Kind, ListKinds())
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
