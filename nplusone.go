// Package nplusone detects possible N+1 query patterns at development time.
//
// The engine observes every relationship resolution dispatched through the
// orm/resolve interceptor chain. When resolving a relationship causes new
// queries on the registered connections, the engine attributes the lazy
// access to the calling source statement and logs one warning per distinct
// call site. It only observes: resolution arguments, results, and errors
// pass through unmodified, and no engine failure ever reaches the caller.
package nplusone

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/shaffooo/nplusone/orm/conn"
	"github.com/shaffooo/nplusone/orm/resolve"
)

// QueryCounter reports the number of backing-store operations performed so
// far across every known connection. The count must be monotonically
// non-decreasing within a process run.
type QueryCounter interface {
	TotalQueries() int64
}

// Engine snapshots the query counter around relationship resolutions and
// deduplicates the warnings it emits
type Engine struct {
	counter QueryCounter
	logger  *zap.Logger

	mu       sync.Mutex
	reported map[string]struct{}

	// tracked replaces reported when the store is bounded
	tracked    *lru.Cache
	maxTracked int
}

// Option configures an Engine
type Option func(*Engine)

// WithCounter sets the query counter to snapshot. Defaults to the
// process-wide connection registry.
func WithCounter(c QueryCounter) Option {
	return func(e *Engine) {
		e.counter = c
	}
}

// WithLogger sets the logger warnings are emitted through. Defaults to the
// global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxTracked bounds the deduplication store to n rendered warnings,
// evicting least-recently-seen entries. An evicted call site that triggers
// again is reported again; the default unbounded store guarantees at most
// one report per call site but grows with the number of distinct call
// sites for the life of the engine.
func WithMaxTracked(n int) Option {
	return func(e *Engine) {
		e.maxTracked = n
	}
}

var (
	installMu sync.Mutex
	installed *Engine
)

// Install builds an engine and registers it as a resolution interceptor.
// Call it once during application startup; subsequent calls return the
// already-installed engine so the observer is never registered twice.
func Install(opts ...Option) *Engine {
	installMu.Lock()
	defer installMu.Unlock()

	if installed != nil {
		return installed
	}
	installed = newEngine(opts...)
	resolve.RegisterInterceptor(installed.observe)
	return installed
}

// newEngine builds an engine without installing it
func newEngine(opts ...Option) *Engine {
	e := &Engine{
		counter:  conn.Default,
		reported: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.L()
	}
	if e.maxTracked > 0 {
		// lru.New only fails for sizes < 1
		e.tracked, _ = lru.New(e.maxTracked)
	}
	return e
}

// observe wraps one descriptor resolution. It delegates to next exactly
// once with unmodified arguments; everything else is measurement.
func (e *Engine) observe(d resolve.Descriptor, next resolve.ResolveFunc) resolve.ResolveFunc {
	return func(ctx context.Context, owner *resolve.Instance, rest ...interface{}) (interface{}, error) {
		// without an owning instance there is nothing to attribute
		if owner == nil {
			return next(ctx, owner, rest...)
		}

		field, relationship := Classify(d)
		if field == "" {
			e.logger.Debug("no field name for descriptor, skipping analysis",
				zap.String("descriptor", relationship),
				zap.String("model", owner.Schema.Name))
			return next(ctx, owner, rest...)
		}

		pre := e.counter.TotalQueries()
		value, err := next(ctx, owner, rest...)
		if err != nil {
			return value, err
		}
		post := e.counter.TotalQueries()

		if post > pre {
			e.reportWarning(owner.Schema.Name, field, relationship)
		}

		// Multi-valued resolutions return a lazy manager; the query runs
		// only when the manager is materialized. Force materialization
		// under its own snapshot pair so collection N+1s are not
		// under-reported, and hand the caller the original manager.
		if manager, ok := value.(*resolve.RelatedManager); ok {
			pre = e.counter.TotalQueries()
			if _, err := manager.All(ctx); err != nil {
				// measurement only; the caller sees the error on its own All
				return value, nil
			}
			if e.counter.TotalQueries() > pre {
				e.reportWarning(owner.Schema.Name, field, relationship)
			}
		}

		return value, nil
	}
}
