package testfixtures

import (
	"context"
	"testing"

	"github.com/example/attendance-tracker/internal/docstore"
)

// Seeder writes fixture documents straight into a store, bypassing the
// application services. Failures abort the test.
type Seeder struct {
	tb    testing.TB
	store docstore.Store
}

// NewSeeder returns a seeder over store.
func NewSeeder(tb testing.TB, store docstore.Store) *Seeder {
	return &Seeder{tb: tb, store: store}
}

func (s *Seeder) set(path string, fields docstore.Fields) {
	s.tb.Helper()
	if err := s.store.SetDoc(context.Background(), path, fields, docstore.SetOptions{}); err != nil {
		s.tb.Fatalf("seed %s: %v", path, err)
	}
}

// User writes a users/{id} document and returns the fixture.
func (s *Seeder) User(opts ...UserOption) UserFixture {
	s.tb.Helper()
	user := NewUserFixture(opts...)
	s.set(docstore.UserPath(user.ID), user.Fields())
	return user
}

// Attendance writes one attendance record.
func (s *Seeder) Attendance(userID, date, status string) {
	s.tb.Helper()
	s.set(docstore.AttendancePath(userID, date), docstore.Fields{"date": date, "status": status})
}

// AttendanceDays writes n consecutive "present" records starting at ReferenceTime.
func (s *Seeder) AttendanceDays(userID string, n int) {
	s.tb.Helper()
	for _, date := range Dates(ReferenceTime(), n) {
		s.Attendance(userID, date, "present")
	}
}

// LeaveRequest writes one leave request.
func (s *Seeder) LeaveRequest(userID, date, reason, status string) {
	s.tb.Helper()
	s.set(docstore.LeaveRequestPath(userID, date), docstore.Fields{"date": date, "reason": reason, "status": status})
}

// DeleteUser removes users/{id}. The store must support deletes.
func (s *Seeder) DeleteUser(userID string) {
	s.tb.Helper()
	deleter, ok := s.store.(interface {
		DeleteDoc(ctx context.Context, path string) error
	})
	if !ok {
		s.tb.Fatalf("store %T cannot delete documents", s.store)
	}
	if err := deleter.DeleteDoc(context.Background(), docstore.UserPath(userID)); err != nil {
		s.tb.Fatalf("delete user %s: %v", userID, err)
	}
}
