package plist

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when an accessor is applied to a node of the wrong type.
	ErrTypeMismatch = errors.New("plist: type mismatch")

	// ErrIndexOutOfRange is returned for array accesses past the end of the array.
	ErrIndexOutOfRange = errors.New("plist: index out of range")

	// ErrKeyNotFound is returned when a dictionary has no item for a key.
	ErrKeyNotFound = errors.New("plist: key not found")

	// ErrPathNotFound is returned by AccessPath when a segment cannot be resolved.
	ErrPathNotFound = errors.New("plist: path not found")

	// ErrTruncatedInput is returned when a binary plist is shorter than its
	// header, trailer or offset table require.
	ErrTruncatedInput = errors.New("plist: truncated input")

	// ErrCyclicReference is returned when a binary plist object refers back to
	// one of its own ancestors.
	ErrCyclicReference = errors.New("plist: cyclic object reference")

	// ErrUnsupportedVersion is returned for binary plists other than bplist00.
	ErrUnsupportedVersion = errors.New("plist: unsupported binary plist version")

	// ErrInvalidChild is returned when a node cannot be stored in a container:
	// it already has a parent, it would create a cycle, or it is a Key or nil.
	ErrInvalidChild = errors.New("plist: invalid child node")

	// ErrUnsupportedType is returned when a value cannot be represented in the
	// requested encoding.
	ErrUnsupportedType = errors.New("plist: unsupported type")
)

// ParseError describes malformed XML or binary input.
type ParseError struct {
	Format string
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("plist: error parsing %s property list at offset %d: %v", e.Format, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PathError records the path segment at which AccessPath failed. It matches
// ErrPathNotFound as well as the underlying cause.
type PathError struct {
	Segment int
	Value   interface{}
	Err     error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("plist: path segment %d (%v): %v", e.Segment, e.Value, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func (e *PathError) Is(target error) bool {
	return target == ErrPathNotFound
}

func typeMismatch(n *Node, want Type) error {
	return fmt.Errorf("%w: have %v, want %v", ErrTypeMismatch, n.Type(), want)
}
