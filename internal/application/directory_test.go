package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/attendance-tracker/internal/docstore"
	"github.com/example/attendance-tracker/internal/testfixtures"
)

func TestDirectory_RegisterUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testfixtures.NewMemoryStore(t)
	ids := testfixtures.NewIDGenerator("user")
	directory := NewDirectory(store, ids.NextFunc())

	user, err := directory.RegisterUser(ctx, RegisterUserParams{Email: " alice@example.com "})
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if user.ID != "user-001" || user.Role != RoleUser || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	doc, err := store.GetDoc(ctx, docstore.UserPath("user-001"))
	if err != nil {
		t.Fatalf("GetDoc failed: %v", err)
	}
	if doc.Fields.String("email") != "alice@example.com" || doc.Fields.String("role") != "user" {
		t.Fatalf("unexpected stored fields: %v", doc.Fields)
	}
}

func TestDirectory_RegisterUserDuplicate(t *testing.T) {
	t.Parallel()

	stores := map[string]docstore.Store{
		"conditional create": testfixtures.NewMemoryStore(t),
		"check then act":     testfixtures.PlainStore(testfixtures.NewMemoryStore(t)),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			directory := NewDirectory(store, nil)
			params := RegisterUserParams{ID: "admin-1", Email: "root@example.com", Role: RoleAdmin}

			if _, err := directory.RegisterUser(ctx, params); err != nil {
				t.Fatalf("first RegisterUser failed: %v", err)
			}
			if _, err := directory.RegisterUser(ctx, params); !errors.Is(err, ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists, got %v", err)
			}
		})
	}
}

func TestDirectory_RegisterUserValidation(t *testing.T) {
	t.Parallel()

	directory := NewDirectory(testfixtures.NewMemoryStore(t), nil)
	_, err := directory.RegisterUser(context.Background(), RegisterUserParams{Email: "not-an-email", Role: "owner"})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "role"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestDirectory_ResolveSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testfixtures.NewMemoryStore(t)
	seeder := testfixtures.NewSeeder(t, store)
	admin := seeder.User(testfixtures.WithAdminRole())
	directory := NewDirectory(store, nil)

	session, err := directory.ResolveSession(ctx, admin.ID)
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if session.UserID != admin.ID || !session.IsAdmin() {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := directory.ResolveSession(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectory_UnknownRoleDecodesAsUser(t *testing.T) {
	t.Parallel()

	user := DecodeUser(docstore.Document{ID: "u1", Fields: docstore.Fields{"role": "superuser"}})
	if user.Role != RoleUser {
		t.Fatalf("expected RoleUser, got %q", user.Role)
	}
}
