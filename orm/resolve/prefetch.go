package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/shaffooo/nplusone/orm/schema"
)

// prefetchOwnerColumn is the synthetic column carrying the owning record's
// id through many-to-many prefetch queries
const prefetchOwnerColumn = "_prefetch_owner_id"

// Prefetch batch-loads the named relationships for a set of instances of
// the same resource, populating each instance's relation cache with a
// single IN query per relationship. Subsequent Related calls on the
// instances are cache hits, which is the batched alternative to the lazy
// per-instance access this package's detector warns about.
func (r *Resolver) Prefetch(ctx context.Context, instances []*Instance, names ...string) error {
	if len(instances) == 0 {
		return nil
	}

	resource := instances[0].Schema
	for _, inst := range instances {
		if inst.Schema != resource {
			return fmt.Errorf("prefetch requires instances of a single resource, got %s and %s",
				resource.Name, inst.Schema.Name)
		}
	}

	for _, name := range names {
		rel, ok := resource.Relationships[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, resource.Name, name)
		}

		var err error
		switch rel.Type {
		case schema.RelationshipBelongsTo, schema.RelationshipOneToOne:
			err = r.prefetchForward(ctx, instances, rel)
		case schema.RelationshipHasOne:
			err = r.prefetchReverseOne(ctx, instances, rel)
		case schema.RelationshipHasMany:
			err = r.prefetchHasMany(ctx, instances, rel)
		case schema.RelationshipManyToMany:
			err = r.prefetchManyToMany(ctx, instances, rel)
		default:
			err = fmt.Errorf("%w: %s", ErrInvalidRelationType, rel.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to prefetch %s.%s: %w", resource.Name, name, err)
		}
	}

	return nil
}

// prefetchForward batch-loads belongs-to / one-to-one targets keyed by the
// owning instances' foreign keys
func (r *Resolver) prefetchForward(ctx context.Context, instances []*Instance, rel *schema.Relationship) error {
	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = rel.Name + "_id"
	}
	accessor := rel.Accessor()

	var ids []interface{}
	seen := make(map[string]bool)
	for _, inst := range instances {
		id := inst.Attrs[fk]
		if id == nil {
			continue
		}
		key := idToString(id)
		if !seen[key] {
			seen[key] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		for _, inst := range instances {
			inst.storeRelation(accessor, nil)
		}
		return nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(target.PrimaryKey),
		r.placeholderList(len(ids)))

	rows, err := r.conn.QueryContext(ctx, query, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return err
	}

	byID := make(map[string]map[string]interface{}, len(records))
	for _, record := range records {
		byID[idToString(record[target.PrimaryKey])] = record
	}

	for _, inst := range instances {
		id := inst.Attrs[fk]
		if id == nil {
			inst.storeRelation(accessor, nil)
			continue
		}
		record, ok := byID[idToString(id)]
		if !ok {
			inst.storeRelation(accessor, nil)
			continue
		}
		inst.storeRelation(accessor, record)
	}
	return nil
}

// prefetchReverseOne batch-loads has-one targets keyed by the target-side
// foreign key
func (r *Resolver) prefetchReverseOne(ctx context.Context, instances []*Instance, rel *schema.Relationship) error {
	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = schema.ForeignKeyColumn(instances[0].Schema.Name)
	}
	accessor := rel.Accessor()

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(fk),
		r.placeholderList(len(instances)))

	rows, err := r.conn.QueryContext(ctx, query, ownerIDs(instances)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return err
	}

	byOwner := make(map[string]map[string]interface{}, len(records))
	for _, record := range records {
		byOwner[idToString(record[fk])] = record
	}

	for _, inst := range instances {
		record, ok := byOwner[idToString(inst.PK())]
		if !ok {
			inst.storeRelation(accessor, nil)
			continue
		}
		inst.storeRelation(accessor, record)
	}
	return nil
}

// prefetchHasMany batch-loads has-many collections and preloads each
// instance's manager
func (r *Resolver) prefetchHasMany(ctx context.Context, instances []*Instance, rel *schema.Relationship) error {
	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = schema.ForeignKeyColumn(instances[0].Schema.Name)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(fk),
		r.placeholderList(len(instances)))

	rows, err := r.conn.QueryContext(ctx, query, ownerIDs(instances)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return err
	}

	grouped := make(map[string][]map[string]interface{})
	for _, record := range records {
		key := idToString(record[fk])
		grouped[key] = append(grouped[key], record)
	}

	for _, inst := range instances {
		r.manager(inst, rel).preload(grouped[idToString(inst.PK())])
	}
	return nil
}

// prefetchManyToMany batch-loads many-to-many collections through the join
// table, carrying the owning id alongside each target row
func (r *Resolver) prefetchManyToMany(ctx context.Context, instances []*Instance, rel *schema.Relationship) error {
	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	owner := instances[0].Schema
	fk := rel.ForeignKey
	if fk == "" {
		fk = schema.ForeignKeyColumn(owner.Name)
	}
	join := rel.JoinTable
	if join == "" {
		join = owner.TableName() + "_" + target.TableName()
	}
	assoc := rel.AssociationKey
	if assoc == "" {
		assoc = schema.ForeignKeyColumn(target.Name)
	}

	query := fmt.Sprintf("SELECT j.%s AS %s, t.* FROM %s t JOIN %s j ON t.%s = j.%s WHERE j.%s IN (%s)",
		pq.QuoteIdentifier(fk),
		pq.QuoteIdentifier(prefetchOwnerColumn),
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(join),
		pq.QuoteIdentifier(target.PrimaryKey),
		pq.QuoteIdentifier(assoc),
		pq.QuoteIdentifier(fk),
		r.placeholderList(len(instances)))

	rows, err := r.conn.QueryContext(ctx, query, ownerIDs(instances)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return err
	}

	grouped := make(map[string][]map[string]interface{})
	for _, record := range records {
		key := idToString(record[prefetchOwnerColumn])
		delete(record, prefetchOwnerColumn)
		grouped[key] = append(grouped[key], record)
	}

	for _, inst := range instances {
		r.manager(inst, rel).preload(grouped[idToString(inst.PK())])
	}
	return nil
}

// placeholderList renders n comma-separated placeholders
func (r *Resolver) placeholderList(n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = r.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// ownerIDs collects the primary keys of a set of instances
func ownerIDs(instances []*Instance) []interface{} {
	ids := make([]interface{}, len(instances))
	for i, inst := range instances {
		ids[i] = inst.PK()
	}
	return ids
}

// idToString normalizes id values from different drivers into map keys
func idToString(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
