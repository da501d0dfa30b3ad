package resolve

import "errors"

var (
	// ErrUnknownResource is returned when a resource schema is not registered
	ErrUnknownResource = errors.New("unknown resource")

	// ErrUnknownRelationship is returned when a relationship is not found
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrInvalidRelationType is returned when an invalid relationship type is encountered
	ErrInvalidRelationType = errors.New("invalid relationship type")
)
