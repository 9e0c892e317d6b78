// Package engine applies parsed edit instructions to a document tree.
package engine

import "errors"

var (
	// ErrTargetNotFound indicates a referenced element id does not exist
	// in the document.
	ErrTargetNotFound = errors.New("engine: target element does not exist")

	// ErrAmbiguousSet indicates an annotation type with multiple declared
	// sets and no set specified.
	ErrAmbiguousSet = errors.New("engine: ambiguous annotation set")

	// ErrUnsupported indicates an edit form that is not implemented for
	// the actor's annotation category.
	ErrUnsupported = errors.New("engine: unsupported edit combination")

	// ErrSpanRetarget indicates a span reassignment blocked by nested
	// span annotations.
	ErrSpanRetarget = errors.New("engine: span has nested annotations")

	// ErrMissingActorID indicates an identify-by-id edit without an id.
	ErrMissingActorID = errors.New("engine: edit requires an explicit actor id")
)
