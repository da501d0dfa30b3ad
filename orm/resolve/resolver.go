package resolve

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shaffooo/nplusone/orm/conn"
	"github.com/shaffooo/nplusone/orm/schema"
)

// Placeholder renders the i-th (1-based) query placeholder for a dialect
type Placeholder func(i int) string

// DollarPlaceholder is the postgres placeholder style ($1, $2, ...)
func DollarPlaceholder(i int) string {
	return "$" + strconv.Itoa(i)
}

// QuestionPlaceholder is the sqlite/mysql placeholder style
func QuestionPlaceholder(int) string {
	return "?"
}

// Resolver executes relationship queries for a set of resource schemas
// over a single counted connection
type Resolver struct {
	conn        *conn.Conn
	schemas     map[string]*schema.ResourceSchema
	descriptors map[string]map[string]Descriptor // resource -> accessor -> descriptor
	placeholder Placeholder
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithPlaceholder sets the placeholder style used in generated SQL
func WithPlaceholder(p Placeholder) ResolverOption {
	return func(r *Resolver) {
		r.placeholder = p
	}
}

// NewResolver creates a resolver and builds a descriptor for every
// relationship declared in the given schemas
func NewResolver(c *conn.Conn, schemas map[string]*schema.ResourceSchema, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		conn:        c,
		schemas:     schemas,
		descriptors: make(map[string]map[string]Descriptor),
		placeholder: DollarPlaceholder,
	}
	for _, opt := range opts {
		opt(r)
	}

	for name, s := range schemas {
		table := make(map[string]Descriptor, len(s.Relationships))
		for accessor, rel := range s.Relationships {
			table[accessor] = r.newDescriptor(rel)
		}
		r.descriptors[name] = table
	}
	return r
}

// newDescriptor binds a relationship to the descriptor type matching its variant
func (r *Resolver) newDescriptor(rel *schema.Relationship) Descriptor {
	base := baseDescriptor{rel: rel, resolver: r}
	switch rel.Type {
	case schema.RelationshipBelongsTo:
		return &ForwardManyToOneDescriptor{baseDescriptor: base}
	case schema.RelationshipOneToOne:
		return &ForwardOneToOneDescriptor{baseDescriptor: base}
	case schema.RelationshipHasOne:
		return &ReverseOneToOneDescriptor{baseDescriptor: base}
	case schema.RelationshipHasMany:
		return &ReverseManyToOneDescriptor{baseDescriptor: base}
	case schema.RelationshipManyToMany:
		return &ManyToManyDescriptor{ReverseManyToOneDescriptor{baseDescriptor: base}}
	default:
		return nil
	}
}

// Descriptor returns the descriptor for a resource's relationship accessor
func (r *Resolver) Descriptor(resource, accessor string) (Descriptor, bool) {
	table, ok := r.descriptors[resource]
	if !ok {
		return nil, false
	}
	d, ok := table[accessor]
	return d, ok && d != nil
}

// Schema returns the schema registered for a resource
func (r *Resolver) Schema(resource string) (*schema.ResourceSchema, bool) {
	s, ok := r.schemas[resource]
	return s, ok
}

// Instance wraps a loaded record of a resource
func (r *Resolver) Instance(resource string, attrs map[string]interface{}) (*Instance, error) {
	s, ok := r.schemas[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return &Instance{
		Schema:    s,
		Attrs:     attrs,
		resolver:  r,
		relations: make(map[string]interface{}),
	}, nil
}

// Instance is a single record of a resource together with its lazily
// resolved relationships
type Instance struct {
	Schema *schema.ResourceSchema
	Attrs  map[string]interface{}

	resolver  *Resolver
	mu        sync.Mutex
	relations map[string]interface{}
}

// PK returns the instance's primary key value
func (i *Instance) PK() interface{} {
	return i.Attrs[i.Schema.PrimaryKey]
}

// Related resolves the relationship registered under name. Single-valued
// relationships return a record map (or nil); multi-valued relationships
// return a *RelatedManager.
func (i *Instance) Related(ctx context.Context, name string, rest ...interface{}) (interface{}, error) {
	d, ok := i.resolver.Descriptor(i.Schema.Name, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, i.Schema.Name, name)
	}
	return d.Resolve(ctx, i, rest...)
}

// cachedRelation returns a previously resolved relationship value
func (i *Instance) cachedRelation(name string) (interface{}, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.relations[name]
	return v, ok
}

// storeRelation caches a resolved relationship value
func (i *Instance) storeRelation(name string, v interface{}) {
	i.mu.Lock()
	i.relations[name] = v
	i.mu.Unlock()
}
