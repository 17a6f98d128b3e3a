package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/attendance-tracker/internal/docstore"
)

// UserHistory lists one user's attendance and leave requests ordered by date.
type UserHistory struct {
	UserID        string
	Attendance    []AttendanceRecord
	LeaveRequests []LeaveRequest
}

// History answers one-shot reads of a user's records.
type History struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewHistory constructs a history reader. The store must implement docstore.Lister.
func NewHistory(store docstore.Store, logger *slog.Logger) *History {
	return &History{store: store, logger: defaultLogger(logger)}
}

// ForUser reads the records of userID. Users may read their own history and
// administrators anyone's.
func (h *History) ForUser(ctx context.Context, session Session, userID string) (history UserHistory, err error) {
	if h == nil || h.store == nil {
		return UserHistory{}, fmt.Errorf("history not configured")
	}

	logger := serviceLogger(ctx, h.logger, "History", "ForUser",
		"principal_id", session.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "failed to read history", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	userID = validateID(vErr, "user_id", userID)
	if vErr.HasErrors() {
		return UserHistory{}, vErr
	}
	if session.UserID != userID && !session.IsAdmin() {
		return UserHistory{}, ErrPermissionDenied
	}

	lister, ok := h.store.(docstore.Lister)
	if !ok {
		return UserHistory{}, fmt.Errorf("%w: store does not support collection reads", ErrStoreUnavailable)
	}

	attendanceDocs, err := lister.ListCollection(ctx, docstore.AttendanceCollectionPath(userID))
	if err != nil {
		return UserHistory{}, mapStoreError(err)
	}
	leaveDocs, err := lister.ListCollection(ctx, docstore.LeaveRequestsCollectionPath(userID))
	if err != nil {
		return UserHistory{}, mapStoreError(err)
	}

	history = UserHistory{
		UserID:        userID,
		Attendance:    make([]AttendanceRecord, 0, len(attendanceDocs)),
		LeaveRequests: make([]LeaveRequest, 0, len(leaveDocs)),
	}
	for _, doc := range attendanceDocs {
		history.Attendance = append(history.Attendance, DecodeAttendance(doc))
	}
	for _, doc := range leaveDocs {
		history.LeaveRequests = append(history.LeaveRequests, DecodeLeaveRequest(doc))
	}
	return history, nil
}
