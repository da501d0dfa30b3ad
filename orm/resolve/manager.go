package resolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"github.com/shaffooo/nplusone/orm/schema"
)

// RelatedManager is the lazy handle returned when resolving a multi-valued
// relationship. No query runs until All is called; the first
// materialization is cached for the life of the owning instance.
type RelatedManager struct {
	resolver *Resolver
	owner    *Instance
	rel      *schema.Relationship

	mu     sync.Mutex
	loaded bool
	items  []map[string]interface{}
}

// Relationship returns the relationship the manager materializes
func (m *RelatedManager) Relationship() *schema.Relationship {
	return m.rel
}

// IsLoaded reports whether the collection has been materialized
func (m *RelatedManager) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// All materializes the collection, hitting the database on first call only
func (m *RelatedManager) All(ctx context.Context) ([]map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.items, nil
	}

	query, err := m.query()
	if err != nil {
		return nil, err
	}

	rows, err := m.resolver.conn.QueryContext(ctx, query, m.owner.PK())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s.%s: %w", m.owner.Schema.Name, m.rel.Accessor(), err)
	}
	defer rows.Close()

	items, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s.%s: %w", m.owner.Schema.Name, m.rel.Accessor(), err)
	}

	m.items = items
	m.loaded = true
	return m.items, nil
}

// preload stores an already-materialized collection, as produced by
// batched prefetching
func (m *RelatedManager) preload(items []map[string]interface{}) {
	m.mu.Lock()
	m.items = items
	m.loaded = true
	m.mu.Unlock()
}

// query builds the materialization SQL for the relationship variant
func (m *RelatedManager) query() (string, error) {
	target, ok := m.resolver.schemas[m.rel.TargetResource]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, m.rel.TargetResource)
	}

	fk := m.rel.ForeignKey
	if fk == "" {
		fk = schema.ForeignKeyColumn(m.owner.Schema.Name)
	}

	switch m.rel.Type {
	case schema.RelationshipHasMany:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
			pq.QuoteIdentifier(target.TableName()),
			pq.QuoteIdentifier(fk),
			m.resolver.placeholder(1)), nil

	case schema.RelationshipManyToMany:
		join := m.rel.JoinTable
		if join == "" {
			join = m.owner.Schema.TableName() + "_" + target.TableName()
		}
		assoc := m.rel.AssociationKey
		if assoc == "" {
			assoc = schema.ForeignKeyColumn(target.Name)
		}
		return fmt.Sprintf("SELECT t.* FROM %s t JOIN %s j ON t.%s = j.%s WHERE j.%s = %s",
			pq.QuoteIdentifier(target.TableName()),
			pq.QuoteIdentifier(join),
			pq.QuoteIdentifier(target.PrimaryKey),
			pq.QuoteIdentifier(assoc),
			pq.QuoteIdentifier(fk),
			m.resolver.placeholder(1)), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRelationType, m.rel.Type)
	}
}
