package docstore

import "errors"

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("docstore: not found")
	// ErrAlreadyExists is returned by conditional creates when the document is present.
	ErrAlreadyExists = errors.New("docstore: already exists")
	// ErrUnavailable is returned when the backend cannot serve the request.
	ErrUnavailable = errors.New("docstore: unavailable")
	// ErrInvalidPath is returned for malformed document or collection paths.
	ErrInvalidPath = errors.New("docstore: invalid path")
	// ErrPermissionDenied is returned by backends that enforce access rules.
	ErrPermissionDenied = errors.New("docstore: permission denied")
)
