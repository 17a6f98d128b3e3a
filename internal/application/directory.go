package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/example/attendance-tracker/internal/docstore"
)

// RegisterUserParams captures the fields of a new users/{id} document.
type RegisterUserParams struct {
	// ID is optional; a UUID is generated when empty.
	ID    string
	Email string
	// Role defaults to RoleUser.
	Role Role
}

// Directory registers users and resolves callers into sessions.
type Directory struct {
	store       docstore.Store
	idGenerator func() string
	logger      *slog.Logger
}

// NewDirectory constructs a directory. A nil idGenerator yields random UUIDs.
func NewDirectory(store docstore.Store, idGenerator func() string) *Directory {
	return NewDirectoryWithLogger(store, idGenerator, nil)
}

// NewDirectoryWithLogger constructs a directory with a specified logger.
func NewDirectoryWithLogger(store docstore.Store, idGenerator func() string, logger *slog.Logger) *Directory {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	return &Directory{store: store, idGenerator: idGenerator, logger: defaultLogger(logger)}
}

func (d *Directory) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, d.logger, "Directory", operation, attrs...)
}

// RegisterUser creates the users/{id} document.
func (d *Directory) RegisterUser(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if d == nil || d.store == nil {
		return User{}, fmt.Errorf("directory not configured")
	}

	logger := d.loggerWith(ctx, "RegisterUser", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	email := validateEmail(vErr, "email", params.Email)
	role := params.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		vErr.add("role", "must be user or admin")
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = d.idGenerator()
	}
	id = validateID(vErr, "id", id)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	user = User{ID: id, Email: email, Role: role}
	path := docstore.UserPath(id)

	if creator, ok := d.store.(docstore.Creator); ok {
		if err = creator.CreateDoc(ctx, path, userFields(user)); err != nil {
			return User{}, mapStoreError(err)
		}
		return user, nil
	}

	if _, err = d.store.GetDoc(ctx, path); err == nil {
		return User{}, ErrAlreadyExists
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return User{}, mapStoreError(err)
	}
	if err = d.store.SetDoc(ctx, path, userFields(user), docstore.SetOptions{}); err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// GetUser reads users/{id}.
func (d *Directory) GetUser(ctx context.Context, userID string) (User, error) {
	if d == nil || d.store == nil {
		return User{}, fmt.Errorf("directory not configured")
	}

	vErr := &ValidationError{}
	userID = validateID(vErr, "user_id", userID)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	doc, err := d.store.GetDoc(ctx, docstore.UserPath(userID))
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return DecodeUser(doc), nil
}

// ResolveSession looks up the caller's role. Callers without a users
// document get ErrNotFound.
func (d *Directory) ResolveSession(ctx context.Context, userID string) (Session, error) {
	user, err := d.GetUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: user.ID, Role: user.Role}, nil
}
