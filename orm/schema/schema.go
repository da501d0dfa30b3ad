// Package schema describes resources and the relationships between them.
// It carries just enough static metadata for the resolver layer to execute
// relationship queries and for the detector to name what it observed.
package schema

import "strings"

// RelationType represents the type of relationship
type RelationType int

const (
	// RelationshipBelongsTo is a forward single-valued relationship;
	// the foreign key lives on the declaring resource
	RelationshipBelongsTo RelationType = iota
	// RelationshipOneToOne is a forward one-to-one relationship;
	// like belongs_to but unique on the foreign key
	RelationshipOneToOne
	// RelationshipHasOne is a reverse one-to-one relationship;
	// the foreign key lives on the target resource
	RelationshipHasOne
	// RelationshipHasMany is a reverse multi-valued relationship
	RelationshipHasMany
	// RelationshipManyToMany is a multi-valued relationship through a join table
	RelationshipManyToMany
)

// String returns the string representation of the relationship type
func (r RelationType) String() string {
	switch r {
	case RelationshipBelongsTo:
		return "belongs_to"
	case RelationshipOneToOne:
		return "one_to_one"
	case RelationshipHasOne:
		return "has_one"
	case RelationshipHasMany:
		return "has_many"
	case RelationshipManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// Relationship represents a relationship between two resources
type Relationship struct {
	// Name is the relation's own name, e.g. "author" for a Post that
	// belongs to a User through its author_id column
	Name string
	Type RelationType
	// TargetResource is the resource on the other end of the relation
	TargetResource string
	// FieldName is the accessor name on the declaring resource; defaults
	// to Name when empty
	FieldName string
	// ForeignKey is the referencing column: on the declaring resource for
	// forward relations, on the target resource for reverse relations,
	// and on the join table for many-to-many relations
	ForeignKey string
	// RelatedName is the explicit accessor name for multi-valued
	// relations; when empty the accessor is synthesized as "{Name}_set"
	RelatedName string
	// JoinTable and AssociationKey are set for many-to-many relations
	JoinTable      string
	AssociationKey string
}

// Accessor returns the name under which the relation is reached from an
// owning instance
func (r *Relationship) Accessor() string {
	switch r.Type {
	case RelationshipHasMany, RelationshipManyToMany:
		if r.RelatedName != "" {
			return r.RelatedName
		}
		return r.Name + "_set"
	default:
		if r.FieldName != "" {
			return r.FieldName
		}
		return r.Name
	}
}

// ResourceSchema describes a single resource and its relationships
type ResourceSchema struct {
	Name          string
	Table         string
	PrimaryKey    string
	Relationships map[string]*Relationship
}

// NewResourceSchema creates a resource schema with sensible defaults
func NewResourceSchema(name string) *ResourceSchema {
	return &ResourceSchema{
		Name:          name,
		Table:         toTableName(name),
		PrimaryKey:    "id",
		Relationships: make(map[string]*Relationship),
	}
}

// AddRelationship registers a relationship under its accessor name
func (s *ResourceSchema) AddRelationship(rel *Relationship) *ResourceSchema {
	s.Relationships[rel.Accessor()] = rel
	return s
}

// TableName returns the backing table for the resource
func (s *ResourceSchema) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return toTableName(s.Name)
}

// ForeignKeyColumn returns the conventional foreign key column referencing
// a resource (User -> user_id)
func ForeignKeyColumn(resourceName string) string {
	return toSnakeCase(resourceName) + "_id"
}

// toTableName converts a resource name to a table name (User -> users)
func toTableName(resourceName string) string {
	return pluralize(toSnakeCase(resourceName))
}

// toSnakeCase converts CamelCase to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}

	return string(result)
}

// pluralize adds simple pluralization
func pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
