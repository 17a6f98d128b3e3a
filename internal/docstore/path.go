package docstore

import (
	"fmt"
	"strings"
)

const (
	// UsersCollection is the top-level collection holding one document per user.
	UsersCollection = "users"
	// AttendanceCollection is the per-user sub-collection of attendance records.
	AttendanceCollection = "attendance"
	// LeaveRequestsCollection is the per-user sub-collection of leave requests.
	LeaveRequestsCollection = "leaveRequests"
)

// UserPath returns users/{userID}.
func UserPath(userID string) string {
	return UsersCollection + "/" + userID
}

// AttendanceCollectionPath returns users/{userID}/attendance.
func AttendanceCollectionPath(userID string) string {
	return UserPath(userID) + "/" + AttendanceCollection
}

// AttendancePath returns users/{userID}/attendance/{date}.
func AttendancePath(userID, date string) string {
	return AttendanceCollectionPath(userID) + "/" + date
}

// LeaveRequestsCollectionPath returns users/{userID}/leaveRequests.
func LeaveRequestsCollectionPath(userID string) string {
	return UserPath(userID) + "/" + LeaveRequestsCollection
}

// LeaveRequestPath returns users/{userID}/leaveRequests/{date}.
func LeaveRequestPath(userID, date string) string {
	return LeaveRequestsCollectionPath(userID) + "/" + date
}

// SplitDocumentPath returns the parent collection path and the document id of
// a document path. Document paths have an even number of non-empty segments.
func SplitDocumentPath(path string) (collection, id string, err error) {
	segments, err := segmentsOf(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is a collection path", ErrInvalidPath, path)
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// ValidateCollectionPath reports whether path addresses a collection, that is
// an odd number of non-empty segments.
func ValidateCollectionPath(path string) error {
	segments, err := segmentsOf(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is a document path", ErrInvalidPath, path)
	}
	return nil
}

func segmentsOf(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}
