package resolve

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/shaffooo/nplusone/orm/schema"
)

// resolveForward loads the single record referenced by a forward
// relationship's foreign key. Results are cached on the owning instance, so
// repeated access never re-queries.
func (r *Resolver) resolveForward(ctx context.Context, owner *Instance, rel *schema.Relationship) (interface{}, error) {
	accessor := rel.Accessor()
	if v, ok := owner.cachedRelation(accessor); ok {
		return v, nil
	}

	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = rel.Name + "_id"
	}
	fkValue := owner.Attrs[fk]
	if fkValue == nil {
		owner.storeRelation(accessor, nil)
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(target.PrimaryKey),
		r.placeholder(1))

	record, err := r.queryOne(ctx, query, fkValue)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s.%s: %w", owner.Schema.Name, accessor, err)
	}

	owner.storeRelation(accessor, record)
	return record, nil
}

// resolveReverseOne loads the single record on the target resource whose
// foreign key points back at the owning instance
func (r *Resolver) resolveReverseOne(ctx context.Context, owner *Instance, rel *schema.Relationship) (interface{}, error) {
	accessor := rel.Accessor()
	if v, ok := owner.cachedRelation(accessor); ok {
		return v, nil
	}

	target, ok := r.schemas[rel.TargetResource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, rel.TargetResource)
	}

	fk := rel.ForeignKey
	if fk == "" {
		fk = schema.ForeignKeyColumn(owner.Schema.Name)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		pq.QuoteIdentifier(target.TableName()),
		pq.QuoteIdentifier(fk),
		r.placeholder(1))

	record, err := r.queryOne(ctx, query, owner.PK())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s.%s: %w", owner.Schema.Name, accessor, err)
	}

	owner.storeRelation(accessor, record)
	return record, nil
}

// manager returns the owning instance's collection manager for a
// multi-valued relationship, creating it on first access. Creating the
// manager issues no query.
func (r *Resolver) manager(owner *Instance, rel *schema.Relationship) *RelatedManager {
	accessor := rel.Accessor()
	owner.mu.Lock()
	defer owner.mu.Unlock()

	if v, ok := owner.relations[accessor]; ok {
		if m, ok := v.(*RelatedManager); ok {
			return m
		}
	}
	m := &RelatedManager{resolver: r, owner: owner, rel: rel}
	owner.relations[accessor] = m
	return m
}

// queryOne runs query and returns the first row as a map, or nil when the
// result set is empty
func (r *Resolver) queryOne(ctx context.Context, query string, args ...interface{}) (map[string]interface{}, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// scanRows scans all rows into maps keyed by column name
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{})
		for i, col := range columns {
			record[col] = values[i]
		}

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
