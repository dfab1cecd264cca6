package verlet

import (
	"errors"
	"fmt"
)

// Domain errors for solver operations.
var (
	// ErrInvalidMass indicates a non-positive or non-finite mass.
	ErrInvalidMass = errors.New("verlet: mass must be positive and finite")

	// ErrInvalidHandle indicates a handle that was never issued by this solver.
	ErrInvalidHandle = errors.New("verlet: invalid handle")

	// ErrStaleHandle indicates a handle whose entity has been removed.
	ErrStaleHandle = errors.New("verlet: stale handle (entity was removed)")

	// ErrSelfLink indicates an attempt to link a point mass to itself.
	ErrSelfLink = errors.New("verlet: cannot link a point mass to itself")

	// ErrNegativeLength indicates a negative or non-finite rest length.
	ErrNegativeLength = errors.New("verlet: rest length must be non-negative and finite")

	// ErrNegativeDt indicates a negative or non-finite time step.
	ErrNegativeDt = errors.New("verlet: time step must be non-negative and finite")

	// ErrInvalidIterations indicates an out-of-range relaxation iteration count.
	ErrInvalidIterations = errors.New("verlet: invalid iteration count")

	// ErrNonFinitePosition indicates a NaN or Inf coordinate passed by a caller.
	ErrNonFinitePosition = errors.New("verlet: position must be finite")

	// ErrNonFiniteForce indicates a NaN or Inf force component passed by a caller.
	ErrNonFiniteForce = errors.New("verlet: force must be finite")

	// ErrStepInFlight indicates a query, mutation or step issued while a step is running.
	ErrStepInFlight = errors.New("verlet: step in flight")
)

type HandleKind string

const (
	KindPoint HandleKind = "point"
	KindLink  HandleKind = "link"
)

// HandleError wraps ErrInvalidHandle or ErrStaleHandle with the offending handle.
type HandleError struct {
	Kind    HandleKind
	Index   uint32
	Gen     uint32
	Wrapped error
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("%s %d/%d: %v", e.Kind, e.Index, e.Gen, e.Wrapped)
}

func (e *HandleError) Unwrap() error {
	return e.Wrapped
}
