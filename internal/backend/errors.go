package backend

import (
	"errors"
	"fmt"
)

// Failure taxonomy exposed to the engines and the presentation layer.
// Raw transport errors never leak past this package: every remote failure
// is normalized into one of these, and everything not otherwise classified
// becomes a retryable *RemoteError.
var (
	// ErrAuthRequired means there is no acting identity (or the token was
	// rejected). The caller should route the user to authentication.
	ErrAuthRequired = errors.New("authentication required")

	// ErrForbidden is a server-enforced authorization failure.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means a conflicting row already exists, e.g. a friend
	// request where a pending or accepted friendship is present.
	ErrDuplicate = errors.New("already exists")

	// ErrValidation marks locally-detected invalid input. Callers treat
	// these as silent no-ops rather than user-visible errors.
	ErrValidation = errors.New("validation failed")

	// ErrSendFailed marks a failed message send; the failed message leaves
	// no local trace.
	ErrSendFailed = errors.New("send failed")
)

// RemoteError wraps a transport or server failure. Generally retryable by
// re-invoking the operation; prior local state is retained by callers.
type RemoteError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: remote returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// remoteErr builds a transport-level RemoteError.
func remoteErr(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}

// classify maps an HTTP status to the taxonomy. Statuses without a
// specific meaning collapse into RemoteError.
func classify(op string, status int) error {
	switch status {
	case 401:
		return fmt.Errorf("%s: %w", op, ErrAuthRequired)
	case 403:
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	case 404, 406:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case 409:
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return &RemoteError{Op: op, Status: status}
	}
}
