package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"
)

const dateLayout = "2006-01-02"

var userCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns ReferenceTime formatted as YYYY-MM-DD.
func ReferenceDate() string {
	return referenceTime.Format(dateLayout)
}

// Dates returns n consecutive YYYY-MM-DD dates beginning at start.
func Dates(start time.Time, n int) []string {
	dates := make([]string, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(dateLayout)
	}
	return dates
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic users/{id} document.
type UserFixture struct {
	ID    string
	Email string
	Role  string
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:    id,
		Email: fmt.Sprintf("%s@example.com", id),
		Role:  "user",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithAdminRole marks the fixture as an administrator.
func WithAdminRole() UserOption {
	return func(f *UserFixture) {
		f.Role = "admin"
	}
}

// Fields returns the stored form of the fixture.
func (f UserFixture) Fields() map[string]any {
	return map[string]any{"email": f.Email, "role": f.Role}
}
