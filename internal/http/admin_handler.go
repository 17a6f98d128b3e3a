package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/report"
)

type adminService interface {
	DecideLeave(ctx context.Context, session application.Session, userID, leaveID string, status application.LeaveStatus) error
	EditAttendanceStatus(ctx context.Context, session application.Session, userID, attendanceID, status string) error
}

// ReadModelSource yields the live projection maintained by the aggregator.
type ReadModelSource interface {
	Snapshot() application.ReadModel
}

// AdminHandler serves the administrator view. Routes are expected to be
// wrapped with RequireAdmin.
type AdminHandler struct {
	service   adminService
	readModel ReadModelSource
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(service adminService, readModel ReadModelSource, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{service: service, readModel: readModel, responder: newResponder(base), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

// Overview returns the full read-model ordered by user id.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.readModel == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	model := h.readModel.Snapshot()
	users := make([]overviewUserDTO, 0, len(model.Users))
	for _, id := range model.UserIDs() {
		users = append(users, overviewUserDTO{
			userDTO:       toUserDTO(model.Users[id]),
			Attendance:    toAttendanceDTOs(model.SortedAttendance(id)),
			LeaveRequests: toLeaveRequestDTOs(model.SortedLeave(id)),
		})
	}

	h.log(r.Context(), "Overview", "revision", model.Revision, "result_count", len(users)).InfoContext(r.Context(), "overview served")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, overviewResponse{
		Revision:    model.Revision,
		RefreshedAt: formatTime(model.RefreshedAt),
		Users:       users,
	})
}

// Reports returns one grade per user, or the grade of ?user_id= only.
func (h *AdminHandler) Reports(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.readModel == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	logger := h.log(r.Context(), "Reports", "user_id", userID)

	reports, err := report.Generate(h.readModel.Snapshot(), userID)
	if err != nil {
		logger.InfoContext(r.Context(), "report unavailable", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(reports)).InfoContext(r.Context(), "reports generated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reportsResponse{Reports: reports})
}

// Summary returns the system-wide report.
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.readModel == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "Summary")
	summary, err := report.Summary(h.readModel.Snapshot())
	if err != nil {
		logger.InfoContext(r.Context(), "summary unavailable", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "summary generated", "grade", string(summary.Grade))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, summaryResponse{Summary: summary})
}

// DecideLeave approves or rejects the leave request of userID for date.
func (h *AdminHandler) DecideLeave(w http.ResponseWriter, r *http.Request, userID, date string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())

	var req decideLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "DecideLeave", "user_id", userID, "date", date, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode decision", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	status := application.LeaveStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	logger := h.log(r.Context(), "DecideLeave", "user_id", userID, "date", date, "status", string(status))
	if err := h.service.DecideLeave(r.Context(), session, userID, date, status); err != nil {
		logger.WarnContext(r.Context(), "leave decision failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "leave decided")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// EditAttendance replaces the status of userID's attendance record for date.
func (h *AdminHandler) EditAttendance(w http.ResponseWriter, r *http.Request, userID, date string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())

	var req editAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "EditAttendance", "user_id", userID, "date", date, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode attendance edit", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "EditAttendance", "user_id", userID, "date", date)
	if err := h.service.EditAttendanceStatus(r.Context(), session, userID, date, req.Status); err != nil {
		logger.WarnContext(r.Context(), "attendance edit failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "attendance edited")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type decideLeaveRequest struct {
	Status string `json:"status"`
}

type editAttendanceRequest struct {
	Status string `json:"status"`
}

type overviewResponse struct {
	Revision    uint64            `json:"revision"`
	RefreshedAt string            `json:"refreshed_at,omitempty"`
	Users       []overviewUserDTO `json:"users"`
}

type overviewUserDTO struct {
	userDTO
	Attendance    []attendanceDTO   `json:"attendance"`
	LeaveRequests []leaveRequestDTO `json:"leave_requests"`
}

type reportsResponse struct {
	Reports []report.Report `json:"reports"`
}

type summaryResponse struct {
	Summary report.Report `json:"summary"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
