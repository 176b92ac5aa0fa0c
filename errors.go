package meshkit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/meshkit/attribute"
	"github.com/hupe1980/meshkit/mesh"
)

var (
	// ErrStaleHandle is returned when a handle no longer addresses a live cell.
	ErrStaleHandle = mesh.ErrStaleHandle
	// ErrNotApplicable marks an edit whose topological precondition failed.
	ErrNotApplicable = mesh.ErrNotApplicable
	// ErrUnsupported marks an edit the mesh dimensionality does not define.
	ErrUnsupported = mesh.ErrUnsupported
	// ErrActiveScopes is returned by consolidation while workers hold scopes.
	ErrActiveScopes = mesh.ErrActiveScopes
	// ErrInvalidInput is returned for malformed connectivity.
	ErrInvalidInput = mesh.ErrInvalidInput
	// ErrNoActiveScope is returned when writing an attribute outside a scope.
	ErrNoActiveScope = attribute.ErrNoActiveScope

	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("meshkit: invalid configuration")
)

// ErrInvariantViolation reports that a run was aborted because the mesh
// reached an inconsistent state. The edit that exposed it was rolled back.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvariantViolation struct {
	Op    string
	Msg   string
	cause error
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Msg)
}

func (e *ErrInvariantViolation) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ie *mesh.InvariantError
	if errors.As(err, &ie) {
		return &ErrInvariantViolation{Op: ie.Op, Msg: ie.Msg, cause: err}
	}

	// Attribute range errors only surface through broken connectivity.
	var oor *attribute.OutOfRangeError
	if errors.As(err, &oor) {
		return &ErrInvariantViolation{Op: "attribute", Msg: oor.Error(), cause: err}
	}

	return err
}
