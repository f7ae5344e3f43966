package tune

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when loop parameters fail validation
	// before any service call is made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyEvaluation indicates SelectK produced no evaluation records.
	// With validated inputs this cannot happen; it is a programming error.
	ErrEmptyEvaluation = errors.New("empty evaluation list")
)

// ServiceError wraps any failure that crossed the modeling-service boundary:
// a rejected request, or an asynchronous job that ended in a faulty state.
// Op names the operation, Resource the resource involved (may be empty for
// failures before a resource id exists).
//
// The underlying error can be accessed via errors.Unwrap.
type ServiceError struct {
	Op       string
	Resource string
	cause    error
}

func (e *ServiceError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("modeling service: %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("modeling service: %s %s: %v", e.Op, e.Resource, e.cause)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// NewServiceError wraps err as a ServiceError. Used by ModelingService
// implementations; returns nil when err is nil.
func NewServiceError(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Op: op, Resource: resource, cause: err}
}

// invalidArgf builds an ErrInvalidArgument with detail.
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
