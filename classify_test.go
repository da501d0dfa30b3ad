package nplusone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaffooo/nplusone/orm/resolve"
	"github.com/shaffooo/nplusone/orm/schema"
)

func classifySchemas() map[string]*schema.ResourceSchema {
	user := schema.NewResourceSchema("User")
	user.AddRelationship(&schema.Relationship{
		Name: "post", Type: schema.RelationshipHasMany, TargetResource: "Post",
		RelatedName: "posts",
	})
	user.AddRelationship(&schema.Relationship{
		Name: "comment", Type: schema.RelationshipHasMany, TargetResource: "Comment",
	})
	user.AddRelationship(&schema.Relationship{
		Name: "profile", Type: schema.RelationshipHasOne, TargetResource: "Profile",
	})

	post := schema.NewResourceSchema("Post")
	post.AddRelationship(&schema.Relationship{
		Name: "author", Type: schema.RelationshipBelongsTo, TargetResource: "User",
	})
	post.AddRelationship(&schema.Relationship{
		Name: "editor", Type: schema.RelationshipBelongsTo, TargetResource: "User",
		FieldName: "reviewer",
	})
	post.AddRelationship(&schema.Relationship{
		Name: "cover", Type: schema.RelationshipOneToOne, TargetResource: "Image",
	})
	post.AddRelationship(&schema.Relationship{
		Name: "tag", Type: schema.RelationshipManyToMany, TargetResource: "Tag",
	})

	return map[string]*schema.ResourceSchema{
		"User":    user,
		"Post":    post,
		"Comment": schema.NewResourceSchema("Comment"),
		"Profile": schema.NewResourceSchema("Profile"),
		"Image":   schema.NewResourceSchema("Image"),
		"Tag":     schema.NewResourceSchema("Tag"),
	}
}

func descriptorFor(t *testing.T, resource, accessor string) resolve.Descriptor {
	t.Helper()
	r := resolve.NewResolver(nil, classifySchemas())
	d, ok := r.Descriptor(resource, accessor)
	require.True(t, ok, "missing descriptor %s.%s", resource, accessor)
	return d
}

func TestClassifyForward(t *testing.T) {
	field, relationship := Classify(descriptorFor(t, "Post", "author"))
	assert.Equal(t, "author", field)
	assert.Equal(t, "ForwardManyToOne", relationship)
}

func TestClassifyForwardFieldNameOverride(t *testing.T) {
	field, _ := Classify(descriptorFor(t, "Post", "reviewer"))
	assert.Equal(t, "reviewer", field)
}

func TestClassifyForwardOneToOne(t *testing.T) {
	field, relationship := Classify(descriptorFor(t, "Post", "cover"))
	assert.Equal(t, "cover", field)
	assert.Equal(t, "ForwardOneToOne", relationship)
}

func TestClassifyReverseOneToOne(t *testing.T) {
	field, relationship := Classify(descriptorFor(t, "User", "profile"))
	assert.Equal(t, "profile", field)
	assert.Equal(t, "ReverseOneToOne", relationship)
}

func TestClassifyReverseManyRelatedName(t *testing.T) {
	field, relationship := Classify(descriptorFor(t, "User", "posts"))
	assert.Equal(t, "posts", field)
	assert.Equal(t, "ReverseManyToOne", relationship)
}

func TestClassifyReverseManySynthesizedName(t *testing.T) {
	field, _ := Classify(descriptorFor(t, "User", "comment_set"))
	assert.Equal(t, "comment_set", field)
}

func TestClassifyManyToMany(t *testing.T) {
	field, relationship := Classify(descriptorFor(t, "Post", "tag_set"))
	assert.Equal(t, "tag_set", field)
	assert.Equal(t, "ManyToMany", relationship)
}

// plainHandle has no Descriptor suffix, so its full type name is the label
type plainHandle struct{}

func (d *plainHandle) Relationship() *schema.Relationship { return nil }

func (d *plainHandle) Resolve(ctx context.Context, owner *resolve.Instance, rest ...interface{}) (interface{}, error) {
	return nil, nil
}

func TestClassifyUnrecognizedDescriptor(t *testing.T) {
	field, relationship := Classify(&plainHandle{})
	assert.Equal(t, "", field)
	assert.Equal(t, "plainHandle", relationship)
}
