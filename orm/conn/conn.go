// Package conn tracks database connections and the number of queries each
// has executed. The per-connection counters are what the N+1 detector
// snapshots before and after a relationship resolution.
package conn

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
)

// Querier is an interface for executing SQL queries, allowing for testing and instrumentation
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Conn wraps a Querier and counts every operation issued through it.
// The counter is monotonically non-decreasing for the life of the process.
type Conn struct {
	name    string
	db      Querier
	queries atomic.Int64
}

// Name returns the name the connection was registered under
func (c *Conn) Name() string {
	return c.name
}

// Queries returns the number of operations executed so far
func (c *Conn) Queries() int64 {
	return c.queries.Load()
}

// QueryContext counts the operation and delegates to the wrapped Querier
func (c *Conn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	c.queries.Add(1)
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext counts the operation and delegates to the wrapped Querier
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	c.queries.Add(1)
	return c.db.QueryRowContext(ctx, query, args...)
}

// ExecContext counts the operation and delegates to the wrapped Querier
func (c *Conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	c.queries.Add(1)
	return c.db.ExecContext(ctx, query, args...)
}

// Registry holds every live connection known to the process
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Default is the process-wide connection registry
var Default = NewRegistry()

// Register wraps db in a counting connection and adds it to the registry.
// Registering the same name again replaces the previous connection.
func (r *Registry) Register(name string, db Querier) *Conn {
	c := &Conn{name: name, db: db}
	r.mu.Lock()
	r.conns[name] = c
	r.mu.Unlock()
	return c
}

// Get returns the connection registered under name
func (r *Registry) Get(name string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[name]
	return c, ok
}

// Names returns the registered connection names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalQueries sums the query counters across every registered connection.
// Returns 0 when no connections are registered.
func (r *Registry) TotalQueries() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, c := range r.conns {
		total += c.Queries()
	}
	return total
}
