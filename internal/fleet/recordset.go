package fleet

import (
	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/docstore"
)

// recordSet projects one user's sub-collection keyed by document id.
type recordSet[T any] map[string]T

func buildRecordSet[T any](docs []docstore.Document, decode func(docstore.Document) T) recordSet[T] {
	set := make(recordSet[T], len(docs))
	for _, doc := range docs {
		set[doc.ID] = decode(doc)
	}
	return set
}

func attendanceSet(docs []docstore.Document) map[string]application.AttendanceRecord {
	return buildRecordSet(docs, application.DecodeAttendance)
}

func leaveSet(docs []docstore.Document) map[string]application.LeaveRequest {
	return buildRecordSet(docs, application.DecodeLeaveRequest)
}

func userSet(docs []docstore.Document) map[string]application.User {
	return buildRecordSet(docs, application.DecodeUser)
}
