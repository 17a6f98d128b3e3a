package application

import (
	"github.com/example/attendance-tracker/internal/docstore"
)

// Field names used in stored documents.
const (
	fieldEmail  = "email"
	fieldRole   = "role"
	fieldDate   = "date"
	fieldStatus = "status"
	fieldReason = "reason"
)

// DecodeUser converts a users/{id} document. Unknown roles decode as RoleUser.
func DecodeUser(doc docstore.Document) User {
	role := Role(doc.Fields.String(fieldRole))
	if !role.Valid() {
		role = RoleUser
	}
	return User{
		ID:    doc.ID,
		Email: doc.Fields.String(fieldEmail),
		Role:  role,
	}
}

// DecodeAttendance converts an attendance document. A missing date field
// falls back to the document id.
func DecodeAttendance(doc docstore.Document) AttendanceRecord {
	date := doc.Fields.String(fieldDate)
	if date == "" {
		date = doc.ID
	}
	return AttendanceRecord{
		ID:     doc.ID,
		Date:   date,
		Status: doc.Fields.String(fieldStatus),
	}
}

// DecodeLeaveRequest converts a leave request document. The status is kept
// verbatim so that unexpected values written by other clients stay visible.
func DecodeLeaveRequest(doc docstore.Document) LeaveRequest {
	date := doc.Fields.String(fieldDate)
	if date == "" {
		date = doc.ID
	}
	return LeaveRequest{
		ID:     doc.ID,
		Date:   date,
		Reason: doc.Fields.String(fieldReason),
		Status: LeaveStatus(doc.Fields.String(fieldStatus)),
	}
}

func userFields(user User) docstore.Fields {
	return docstore.Fields{
		fieldEmail: user.Email,
		fieldRole:  string(user.Role),
	}
}

func attendanceFields(record AttendanceRecord) docstore.Fields {
	return docstore.Fields{
		fieldDate:   record.Date,
		fieldStatus: record.Status,
	}
}

func leaveRequestFields(request LeaveRequest) docstore.Fields {
	return docstore.Fields{
		fieldDate:   request.Date,
		fieldReason: request.Reason,
		fieldStatus: string(request.Status),
	}
}
