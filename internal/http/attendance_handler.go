package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/attendance-tracker/internal/application"
)

type attendanceService interface {
	MarkAttendance(ctx context.Context, session application.Session, date, status string) (application.AttendanceRecord, error)
	SendLeaveRequest(ctx context.Context, session application.Session, date, reason string) (application.LeaveRequest, error)
}

type historyReader interface {
	ForUser(ctx context.Context, session application.Session, userID string) (application.UserHistory, error)
}

// AttendanceHandler serves the caller's own attendance operations.
type AttendanceHandler struct {
	service   attendanceService
	history   historyReader
	responder responder
	logger    *slog.Logger
}

func NewAttendanceHandler(service attendanceService, history historyReader, logger *slog.Logger) *AttendanceHandler {
	base := defaultLogger(logger)
	return &AttendanceHandler{service: service, history: history, responder: newResponder(base), logger: base}
}

func (h *AttendanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AttendanceHandler", operation, attrs...)
}

// Mark records the caller's attendance for the requested date.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())

	var req markAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Mark", "principal_id", session.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode attendance request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Mark", "principal_id", session.UserID, "date", req.Date)
	record, err := h.service.MarkAttendance(r.Context(), session, req.Date, req.Status)
	if err != nil {
		logger.WarnContext(r.Context(), "attendance mark failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "attendance marked")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, attendanceResponse{Attendance: toAttendanceDTO(record)})
}

// SendLeave stores a pending leave request for the caller.
func (h *AttendanceHandler) SendLeave(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())

	var req leaveRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SendLeave", "principal_id", session.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode leave request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SendLeave", "principal_id", session.UserID, "date", req.Date)
	request, err := h.service.SendLeaveRequest(r.Context(), session, req.Date, req.Reason)
	if err != nil {
		logger.WarnContext(r.Context(), "leave request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "leave request sent")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, leaveRequestResponse{LeaveRequest: toLeaveRequestDTO(request)})
}

// History returns the records of the caller, or of ?user_id= for administrators.
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.history == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = session.UserID
	}

	logger := h.log(r.Context(), "History", "principal_id", session.UserID, "user_id", userID)
	history, err := h.history.ForUser(r.Context(), session, userID)
	if err != nil {
		logger.WarnContext(r.Context(), "history read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With(
		"attendance_count", len(history.Attendance),
		"leave_count", len(history.LeaveRequests),
	).InfoContext(r.Context(), "history read")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{
		UserID:        history.UserID,
		Attendance:    toAttendanceDTOs(history.Attendance),
		LeaveRequests: toLeaveRequestDTOs(history.LeaveRequests),
	})
}

type markAttendanceRequest struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type leaveRequestRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type attendanceResponse struct {
	Attendance attendanceDTO `json:"attendance"`
}

type leaveRequestResponse struct {
	LeaveRequest leaveRequestDTO `json:"leave_request"`
}

type historyResponse struct {
	UserID        string            `json:"user_id"`
	Attendance    []attendanceDTO   `json:"attendance"`
	LeaveRequests []leaveRequestDTO `json:"leave_requests"`
}

type attendanceDTO struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Status string `json:"status"`
}

type leaveRequestDTO struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
	Status string `json:"status"`
}

func toAttendanceDTO(record application.AttendanceRecord) attendanceDTO {
	return attendanceDTO{ID: record.ID, Date: record.Date, Status: record.Status}
}

func toAttendanceDTOs(records []application.AttendanceRecord) []attendanceDTO {
	out := make([]attendanceDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toAttendanceDTO(record))
	}
	return out
}

func toLeaveRequestDTO(request application.LeaveRequest) leaveRequestDTO {
	return leaveRequestDTO{ID: request.ID, Date: request.Date, Reason: request.Reason, Status: string(request.Status)}
}

func toLeaveRequestDTOs(requests []application.LeaveRequest) []leaveRequestDTO {
	out := make([]leaveRequestDTO, 0, len(requests))
	for _, request := range requests {
		out = append(out, toLeaveRequestDTO(request))
	}
	return out
}
