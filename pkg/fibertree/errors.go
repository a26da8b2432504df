package fibertree

import (
	"errors"
	"fmt"
)

var (
	// ErrLazyFiber is returned when an operation that needs materialized
	// coordinate and payload arrays is applied to a lazy fiber.
	ErrLazyFiber = errors.New("operation requires an eager fiber")

	// ErrNotOrdered is reported when a co-iteration operand is not ordered
	// and unique.
	ErrNotOrdered = errors.New("fiber must be ordered and unique")

	// ErrLengthMismatch is returned by [NewFiber] when coords and payloads
	// have different lengths.
	ErrLengthMismatch = errors.New("coords and payloads must have equal length")

	// ErrBadStep is returned by the split family for a non-positive step,
	// group size or partition count.
	ErrBadStep = errors.New("split step must be positive")

	// ErrNotIntCoord is returned when an operation that does arithmetic on
	// coordinates meets a non-integer coordinate.
	ErrNotIntCoord = errors.New("coordinate must be an integer")

	// ErrNotTupleCoord is returned by UnflattenRanks for scalar coordinates.
	ErrNotTupleCoord = errors.New("coordinate must be a tuple")

	// ErrTooDeep is returned when a depth argument reaches past the leaf rank.
	ErrTooDeep = errors.New("depth exceeds the fiber tree")

	// ErrImmutable is returned by tensor mutators when the tensor has been
	// marked immutable.
	ErrImmutable = errors.New("tensor is immutable")

	// ErrUnknownRank is returned when a rank id is not part of a tensor.
	ErrUnknownRank = errors.New("unknown rank id")
)

// CoordinateError reports an attempt to place a coordinate where it would
// break the ordering or uniqueness of a fiber.
type CoordinateError struct {
	Coord Coord // offending coordinate
	Prev  Coord // coordinate that must precede it (nil if none)
	Next  Coord // coordinate that must follow it (nil if none)
}

func (e *CoordinateError) Error() string {
	switch {
	case e.Prev != nil && e.Next != nil:
		return fmt.Sprintf("coordinate %v must lie strictly between %v and %v", fmtCoord(e.Coord), fmtCoord(e.Prev), fmtCoord(e.Next))
	case e.Prev != nil:
		return fmt.Sprintf("coordinate %v must be greater than %v", fmtCoord(e.Coord), fmtCoord(e.Prev))
	case e.Next != nil:
		return fmt.Sprintf("coordinate %v must be less than %v", fmtCoord(e.Coord), fmtCoord(e.Next))
	}
	return fmt.Sprintf("invalid coordinate %v", fmtCoord(e.Coord))
}

// AssertionError is the panic value raised when a caller violates a
// structural precondition of the lazy algebra (for example co-iterating an
// unordered fiber). The wrapped error is one of the package sentinels.
type AssertionError struct {
	Op  string
	Err error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }

func assertf(op string, err error) *AssertionError {
	return &AssertionError{Op: op, Err: err}
}
