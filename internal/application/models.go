package application

import (
	"sort"
	"time"
)

// Role distinguishes ordinary users from administrators.
type Role string

const (
	// RoleUser marks attendance and submits leave requests.
	RoleUser Role = "user"
	// RoleAdmin additionally reviews every user's records.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Session identifies the caller of a gateway operation.
type Session struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// User is the observed users/{id} document.
type User struct {
	ID    string
	Email string
	Role  Role
}

// DefaultAttendanceStatus is recorded when a mark carries no status.
const DefaultAttendanceStatus = "present"

// AttendanceRecord is one day of attendance. ID equals Date.
type AttendanceRecord struct {
	ID     string
	Date   string
	Status string
}

// LeaveStatus is the review state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusRejected LeaveStatus = "rejected"
)

// Valid reports whether s is a known leave status.
func (s LeaveStatus) Valid() bool {
	switch s {
	case LeaveStatusPending, LeaveStatusApproved, LeaveStatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether s is a reviewer decision.
func (s LeaveStatus) IsDecision() bool {
	return s == LeaveStatusApproved || s == LeaveStatusRejected
}

// LeaveRequest is one day of requested leave. ID equals Date.
type LeaveRequest struct {
	ID     string
	Date   string
	Reason string
	Status LeaveStatus
}

// ReadModel is the administrator's projection of every user and their
// records. Every key of Attendance and Leave is also a key of Users.
type ReadModel struct {
	Users      map[string]User
	Attendance map[string]map[string]AttendanceRecord
	Leave      map[string]map[string]LeaveRequest

	// Revision increases with every applied change.
	Revision uint64
	// RefreshedAt is when the last change was applied.
	RefreshedAt time.Time
}

// NewReadModel returns an empty read model.
func NewReadModel() ReadModel {
	return ReadModel{
		Users:      make(map[string]User),
		Attendance: make(map[string]map[string]AttendanceRecord),
		Leave:      make(map[string]map[string]LeaveRequest),
	}
}

// Clone returns a deep copy that shares no maps with the receiver.
func (m ReadModel) Clone() ReadModel {
	out := ReadModel{
		Users:       make(map[string]User, len(m.Users)),
		Attendance:  make(map[string]map[string]AttendanceRecord, len(m.Attendance)),
		Leave:       make(map[string]map[string]LeaveRequest, len(m.Leave)),
		Revision:    m.Revision,
		RefreshedAt: m.RefreshedAt,
	}
	for id, user := range m.Users {
		out.Users[id] = user
	}
	for id, records := range m.Attendance {
		copied := make(map[string]AttendanceRecord, len(records))
		for key, record := range records {
			copied[key] = record
		}
		out.Attendance[id] = copied
	}
	for id, requests := range m.Leave {
		copied := make(map[string]LeaveRequest, len(requests))
		for key, request := range requests {
			copied[key] = request
		}
		out.Leave[id] = copied
	}
	return out
}

// UserIDs returns the ids in Users in ascending order.
func (m ReadModel) UserIDs() []string {
	return sortedKeys(m.Users)
}

// AttendanceUserIDs returns the ids in Attendance in ascending order.
func (m ReadModel) AttendanceUserIDs() []string {
	return sortedKeys(m.Attendance)
}

// SortedAttendance returns a user's attendance ordered by date.
func (m ReadModel) SortedAttendance(userID string) []AttendanceRecord {
	records := m.Attendance[userID]
	out := make([]AttendanceRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedLeave returns a user's leave requests ordered by date.
func (m ReadModel) SortedLeave(userID string) []LeaveRequest {
	requests := m.Leave[userID]
	out := make([]LeaveRequest, 0, len(requests))
	for _, request := range requests {
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
