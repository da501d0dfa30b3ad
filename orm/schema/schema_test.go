package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelationTypeString(t *testing.T) {
	assert.Equal(t, "belongs_to", RelationshipBelongsTo.String())
	assert.Equal(t, "one_to_one", RelationshipOneToOne.String())
	assert.Equal(t, "has_one", RelationshipHasOne.String())
	assert.Equal(t, "has_many", RelationshipHasMany.String())
	assert.Equal(t, "many_to_many", RelationshipManyToMany.String())
	assert.Equal(t, "unknown", RelationType(99).String())
}

func TestNewResourceSchemaDefaults(t *testing.T) {
	s := NewResourceSchema("BlogPost")

	assert.Equal(t, "BlogPost", s.Name)
	assert.Equal(t, "blog_posts", s.Table)
	assert.Equal(t, "id", s.PrimaryKey)
	assert.Empty(t, s.Relationships)
}

func TestTableNamePluralization(t *testing.T) {
	tests := []struct {
		resource string
		table    string
	}{
		{"User", "users"},
		{"Category", "categories"},
		{"Box", "boxes"},
		{"Address", "addresses"},
		{"BlogPost", "blog_posts"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.table, NewResourceSchema(tt.resource).TableName())
	}
}

func TestTableNameOverride(t *testing.T) {
	s := NewResourceSchema("Person")
	s.Table = "people"
	assert.Equal(t, "people", s.TableName())
}

func TestForeignKeyColumn(t *testing.T) {
	assert.Equal(t, "user_id", ForeignKeyColumn("User"))
	assert.Equal(t, "blog_post_id", ForeignKeyColumn("BlogPost"))
}

func TestAccessorForwardDefaults(t *testing.T) {
	rel := &Relationship{Name: "author", Type: RelationshipBelongsTo}
	assert.Equal(t, "author", rel.Accessor())

	rel.FieldName = "writer"
	assert.Equal(t, "writer", rel.Accessor())
}

func TestAccessorMultiValuedSynthesized(t *testing.T) {
	rel := &Relationship{Name: "comment", Type: RelationshipHasMany}
	assert.Equal(t, "comment_set", rel.Accessor())

	rel.RelatedName = "comments"
	assert.Equal(t, "comments", rel.Accessor())

	m2m := &Relationship{Name: "tag", Type: RelationshipManyToMany}
	assert.Equal(t, "tag_set", m2m.Accessor())
}

func TestAddRelationshipKeysByAccessor(t *testing.T) {
	s := NewResourceSchema("User")
	s.AddRelationship(&Relationship{Name: "post", Type: RelationshipHasMany, TargetResource: "Post"})

	_, ok := s.Relationships["post_set"]
	assert.True(t, ok)
}
