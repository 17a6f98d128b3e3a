package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/attendance-tracker/internal/docstore"
)

// mapStoreError translates docstore errors into the application taxonomy.
// The original error stays in the chain for logging.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, docstore.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, docstore.ErrPermissionDenied):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, docstore.ErrInvalidPath):
		vErr := &ValidationError{}
		vErr.add("path", err.Error())
		return vErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
