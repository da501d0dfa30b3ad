package nplusone

import (
	"reflect"
	"strings"

	"github.com/shaffooo/nplusone/orm/resolve"
)

// descriptorSuffix is stripped from descriptor type names to produce the
// relationship label in warnings
const descriptorSuffix = "Descriptor"

// Classify returns the field name a descriptor resolves and a short
// relationship label for it. The field name is empty for descriptor types
// this package does not recognize; callers must treat that as "skip
// analysis", never as an error.
func Classify(d resolve.Descriptor) (field, relationship string) {
	relationship = relationshipLabel(d)

	switch d.(type) {
	case *resolve.ForwardManyToOneDescriptor, *resolve.ForwardOneToOneDescriptor:
		rel := d.Relationship()
		if rel.FieldName != "" {
			return rel.FieldName, relationship
		}
		return rel.Name, relationship

	case *resolve.ReverseOneToOneDescriptor:
		return d.Relationship().Name, relationship

	case *resolve.ReverseManyToOneDescriptor, *resolve.ManyToManyDescriptor:
		rel := d.Relationship()
		if rel.RelatedName != "" {
			return rel.RelatedName, relationship
		}
		return rel.Name + "_set", relationship

	default:
		return "", relationship
	}
}

// relationshipLabel derives the relationship label from the descriptor's
// concrete type name, stripping a trailing "Descriptor" when present
func relationshipLabel(d resolve.Descriptor) string {
	t := reflect.TypeOf(d)
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if strings.HasSuffix(name, descriptorSuffix) {
		return name[:len(name)-len(descriptorSuffix)]
	}
	return name
}
