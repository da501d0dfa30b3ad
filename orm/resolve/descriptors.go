// Package resolve executes relationship resolution for resource instances.
// Each relationship variant is handled by a descriptor; every descriptor
// routes its resolution through a process-wide interceptor chain so that
// diagnostic tooling can observe resolutions without altering them.
package resolve

import (
	"context"
	"sync"

	"github.com/shaffooo/nplusone/orm/schema"
)

// ResolveFunc performs the underlying resolution for one descriptor
type ResolveFunc func(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error)

// Interceptor wraps a descriptor's resolve entry point. The returned
// ResolveFunc must delegate to next; interceptors observe, they do not
// change arguments, results, or errors.
type Interceptor func(d Descriptor, next ResolveFunc) ResolveFunc

// Descriptor resolves one kind of relationship on behalf of an owning
// instance. Resolve dispatches through the registered interceptor chain.
type Descriptor interface {
	Relationship() *schema.Relationship
	Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error)
}

var interceptorRegistry = struct {
	mu  sync.RWMutex
	fns []Interceptor
}{}

// RegisterInterceptor adds fn to the chain applied around every descriptor
// resolution. Registration is process-wide and meant to happen once during
// application startup; registering the same observer twice would make it
// see every resolution twice.
func RegisterInterceptor(fn Interceptor) {
	interceptorRegistry.mu.Lock()
	interceptorRegistry.fns = append(interceptorRegistry.fns, fn)
	interceptorRegistry.mu.Unlock()
}

// ResetInterceptors clears the interceptor chain. Intended for tests.
func ResetInterceptors() {
	interceptorRegistry.mu.Lock()
	interceptorRegistry.fns = nil
	interceptorRegistry.mu.Unlock()
}

// Invoke runs base through the registered interceptor chain. Descriptor
// implementations call this from their Resolve method, passing themselves
// so interceptors can inspect the relationship being resolved.
func Invoke(ctx context.Context, d Descriptor, owner *Instance, base ResolveFunc, rest ...interface{}) (interface{}, error) {
	interceptorRegistry.mu.RLock()
	fns := interceptorRegistry.fns
	interceptorRegistry.mu.RUnlock()

	next := base
	for i := len(fns) - 1; i >= 0; i-- {
		next = fns[i](d, next)
	}
	return next(ctx, owner, rest...)
}

// baseDescriptor carries the state shared by every descriptor type
type baseDescriptor struct {
	rel      *schema.Relationship
	resolver *Resolver
}

// Relationship returns the relationship metadata the descriptor is bound to
func (d *baseDescriptor) Relationship() *schema.Relationship {
	return d.rel
}

// ForwardManyToOneDescriptor resolves belongs-to relationships: the owning
// instance holds the foreign key of a single related record
type ForwardManyToOneDescriptor struct {
	baseDescriptor
}

// Resolve returns the related record, from the instance cache when present
func (d *ForwardManyToOneDescriptor) Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error) {
	return Invoke(ctx, d, owner, d.get, rest...)
}

func (d *ForwardManyToOneDescriptor) get(ctx context.Context, owner *Instance, _ ...interface{}) (interface{}, error) {
	if owner == nil {
		return nil, nil
	}
	return d.resolver.resolveForward(ctx, owner, d.rel)
}

// ForwardOneToOneDescriptor resolves forward one-to-one relationships; the
// mechanics are identical to belongs-to with a unique foreign key
type ForwardOneToOneDescriptor struct {
	baseDescriptor
}

// Resolve returns the related record, from the instance cache when present
func (d *ForwardOneToOneDescriptor) Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error) {
	return Invoke(ctx, d, owner, d.get, rest...)
}

func (d *ForwardOneToOneDescriptor) get(ctx context.Context, owner *Instance, _ ...interface{}) (interface{}, error) {
	if owner == nil {
		return nil, nil
	}
	return d.resolver.resolveForward(ctx, owner, d.rel)
}

// ReverseOneToOneDescriptor resolves reverse one-to-one relationships: the
// foreign key lives on the target resource
type ReverseOneToOneDescriptor struct {
	baseDescriptor
}

// Resolve returns the related record, from the instance cache when present
func (d *ReverseOneToOneDescriptor) Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error) {
	return Invoke(ctx, d, owner, d.get, rest...)
}

func (d *ReverseOneToOneDescriptor) get(ctx context.Context, owner *Instance, _ ...interface{}) (interface{}, error) {
	if owner == nil {
		return nil, nil
	}
	return d.resolver.resolveReverseOne(ctx, owner, d.rel)
}

// ReverseManyToOneDescriptor resolves has-many relationships. Resolution
// returns a lazy RelatedManager; the database is only hit when the manager
// is materialized.
type ReverseManyToOneDescriptor struct {
	baseDescriptor
}

// Resolve returns the relationship's lazy collection manager
func (d *ReverseManyToOneDescriptor) Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error) {
	return Invoke(ctx, d, owner, d.get, rest...)
}

func (d *ReverseManyToOneDescriptor) get(_ context.Context, owner *Instance, _ ...interface{}) (interface{}, error) {
	if owner == nil {
		return nil, nil
	}
	return d.resolver.manager(owner, d.rel), nil
}

// ManyToManyDescriptor resolves many-to-many relationships through a join
// table. It shares the lazy-manager entry point of ReverseManyToOneDescriptor;
// only the materialization query differs.
type ManyToManyDescriptor struct {
	ReverseManyToOneDescriptor
}

// Resolve returns the relationship's lazy collection manager
func (d *ManyToManyDescriptor) Resolve(ctx context.Context, owner *Instance, rest ...interface{}) (interface{}, error) {
	return Invoke(ctx, d, owner, d.get, rest...)
}
