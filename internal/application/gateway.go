package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/attendance-tracker/internal/docstore"
)

const tracerName = "github.com/example/attendance-tracker/internal/application"

// Gateway applies validated writes to the document store. It never reads or
// updates the aggregated read model; changes come back through the store's
// live queries.
type Gateway struct {
	store  docstore.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewGateway constructs a gateway over store.
func NewGateway(store docstore.Store) *Gateway {
	return NewGatewayWithLogger(store, nil)
}

// NewGatewayWithLogger constructs a gateway with a specified logger.
func NewGatewayWithLogger(store docstore.Store, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:  store,
		logger: defaultLogger(logger),
		tracer: otel.Tracer(tracerName),
	}
}

// start opens a span for one operation. The returned finish function ends
// the span and logs the outcome.
func (g *Gateway) start(ctx context.Context, operation string, session Session, attrs ...attribute.KeyValue) (context.Context, func(error, string)) {
	attrs = append(attrs, attribute.String("session.user_id", session.UserID))
	ctx, span := g.tracer.Start(ctx, "Gateway."+operation, trace.WithAttributes(attrs...))

	logAttrs := []any{"principal_id", session.UserID}
	for _, attr := range attrs {
		if attr.Key == "session.user_id" {
			continue
		}
		logAttrs = append(logAttrs, string(attr.Key), attr.Value.Emit())
	}
	logger := serviceLogger(ctx, g.logger, "Gateway", operation, logAttrs...)

	return ctx, func(err error, success string) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, ErrorKind(err))
			level := slog.LevelError
			if isExpectedOutcome(err) {
				level = slog.LevelInfo
			}
			logger.Log(ctx, level, "operation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, success)
	}
}

// isExpectedOutcome reports errors that describe caller input rather than faults.
func isExpectedOutcome(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) ||
		errors.Is(err, ErrAlreadyMarked) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied)
}

func (g *Gateway) ready() error {
	if g == nil {
		return fmt.Errorf("Gateway is nil")
	}
	if g.store == nil {
		return fmt.Errorf("document store not configured")
	}
	return nil
}

// DecideLeave approves or rejects a leave request with a single-field update.
// Deciding an already decided request is allowed and overwrites the status.
func (g *Gateway) DecideLeave(ctx context.Context, session Session, userID, leaveID string, status LeaveStatus) (err error) {
	if err = g.ready(); err != nil {
		return err
	}

	ctx, finish := g.start(ctx, "DecideLeave", session,
		attribute.String("user_id", userID),
		attribute.String("leave_id", leaveID),
		attribute.String("status", string(status)),
	)
	defer func() { finish(err, "leave request decided") }()

	vErr := &ValidationError{}
	userID = validateID(vErr, "user_id", userID)
	leaveID = validateID(vErr, "leave_id", leaveID)
	if !status.IsDecision() {
		vErr.add("status", "must be approved or rejected")
	}
	if vErr.HasErrors() {
		return vErr
	}

	path := docstore.LeaveRequestPath(userID, leaveID)
	if err = g.store.UpdateDoc(ctx, path, docstore.Fields{fieldStatus: string(status)}); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// EditAttendanceStatus replaces the status of an existing attendance record.
// A blank status is rejected before any write is issued.
func (g *Gateway) EditAttendanceStatus(ctx context.Context, session Session, userID, attendanceID, status string) (err error) {
	if err = g.ready(); err != nil {
		return err
	}

	ctx, finish := g.start(ctx, "EditAttendanceStatus", session,
		attribute.String("user_id", userID),
		attribute.String("attendance_id", attendanceID),
	)
	defer func() { finish(err, "attendance status edited") }()

	vErr := &ValidationError{}
	userID = validateID(vErr, "user_id", userID)
	attendanceID = validateID(vErr, "attendance_id", attendanceID)
	status = validateRequired(vErr, "status", status)
	if vErr.HasErrors() {
		return vErr
	}

	path := docstore.AttendancePath(userID, attendanceID)
	if err = g.store.UpdateDoc(ctx, path, docstore.Fields{fieldStatus: status}); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// MarkAttendance records the caller's attendance for date. A second mark for
// the same date returns ErrAlreadyMarked and writes nothing.
//
// Stores implementing docstore.Creator make the check and the write one
// atomic step. Otherwise the existence check and the write are separate
// calls and two concurrent marks may both succeed, the later one winning.
func (g *Gateway) MarkAttendance(ctx context.Context, session Session, date, status string) (record AttendanceRecord, err error) {
	if err = g.ready(); err != nil {
		return AttendanceRecord{}, err
	}

	ctx, finish := g.start(ctx, "MarkAttendance", session,
		attribute.String("date", date),
	)
	defer func() { finish(err, "attendance marked") }()

	if strings.TrimSpace(session.UserID) == "" {
		return AttendanceRecord{}, ErrPermissionDenied
	}

	vErr := &ValidationError{}
	userID := validateID(vErr, "user_id", session.UserID)
	date = validateDate(vErr, "date", date)
	if vErr.HasErrors() {
		return AttendanceRecord{}, vErr
	}

	status = strings.TrimSpace(status)
	if status == "" {
		status = DefaultAttendanceStatus
	}
	record = AttendanceRecord{ID: date, Date: date, Status: status}
	path := docstore.AttendancePath(userID, date)

	if creator, ok := g.store.(docstore.Creator); ok {
		if err = creator.CreateDoc(ctx, path, attendanceFields(record)); err != nil {
			if errors.Is(err, docstore.ErrAlreadyExists) {
				return AttendanceRecord{}, ErrAlreadyMarked
			}
			return AttendanceRecord{}, mapStoreError(err)
		}
		return record, nil
	}

	_, err = g.store.GetDoc(ctx, path)
	switch {
	case err == nil:
		return AttendanceRecord{}, ErrAlreadyMarked
	case !errors.Is(err, docstore.ErrNotFound):
		return AttendanceRecord{}, mapStoreError(err)
	}

	if err = g.store.SetDoc(ctx, path, attendanceFields(record), docstore.SetOptions{}); err != nil {
		return AttendanceRecord{}, mapStoreError(err)
	}
	return record, nil
}

// SendLeaveRequest stores a pending leave request for the caller. An existing
// request for the same date is overwritten, including a decided one.
func (g *Gateway) SendLeaveRequest(ctx context.Context, session Session, date, reason string) (request LeaveRequest, err error) {
	if err = g.ready(); err != nil {
		return LeaveRequest{}, err
	}

	ctx, finish := g.start(ctx, "SendLeaveRequest", session,
		attribute.String("date", date),
	)
	defer func() { finish(err, "leave request sent") }()

	if strings.TrimSpace(session.UserID) == "" {
		return LeaveRequest{}, ErrPermissionDenied
	}

	vErr := &ValidationError{}
	userID := validateID(vErr, "user_id", session.UserID)
	date = validateDate(vErr, "date", date)
	reason = validateRequired(vErr, "reason", reason)
	if vErr.HasErrors() {
		return LeaveRequest{}, vErr
	}

	request = LeaveRequest{ID: date, Date: date, Reason: reason, Status: LeaveStatusPending}
	path := docstore.LeaveRequestPath(userID, date)
	if err = g.store.SetDoc(ctx, path, leaveRequestFields(request), docstore.SetOptions{}); err != nil {
		return LeaveRequest{}, mapStoreError(err)
	}
	return request, nil
}
