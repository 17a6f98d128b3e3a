package application

import "errors"

var (
	// ErrNotFound is returned when the target document does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrStoreUnavailable is returned when the document store cannot serve a request.
	ErrStoreUnavailable = errors.New("application: store unavailable")
	// ErrAlreadyMarked is returned when attendance for the date is already recorded.
	ErrAlreadyMarked = errors.New("application: attendance already marked")
	// ErrAlreadyExists is returned when registering a user id that is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrPermissionDenied is returned when the caller may not perform the operation.
	ErrPermissionDenied = errors.New("application: permission denied")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
