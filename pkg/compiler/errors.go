package compiler

import "errors"

var (
	// ErrInternal reports an element sequence the generator cannot make sense
	// of: unknown identifiers, unbalanced ranges, stray markers.
	ErrInternal = errors.New("internal error")

	// ErrUnsupported reports a construct the generator does not lower.
	ErrUnsupported = errors.New("unsupported construct")
)
