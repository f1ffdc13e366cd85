package attendance

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recognition pipeline. Callers branch on these with
// errors.Is and map them to operator-facing responses.
var (
	// ErrUnknownFace means the matcher found no reference image close enough
	// to the captured frame. Nothing is written to the store.
	ErrUnknownFace = errors.New("unknown face")

	// ErrMalformedIdentity means the matcher returned an identity label that
	// does not follow the studentID_name convention. Nothing is written.
	ErrMalformedIdentity = errors.New("malformed identity label")

	// ErrTimeout means a matcher or store call exceeded its bounded wait.
	ErrTimeout = errors.New("operation timed out")
)

// StorageError wraps a failed store operation with enough context for the
// operator to retry manually.
type StorageError struct {
	Op        string
	StudentID string
	Err       error
}

func (e *StorageError) Error() string {
	if e.StudentID == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s (student %s): %v", e.Op, e.StudentID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, studentID string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, StudentID: studentID, Err: err}
}
