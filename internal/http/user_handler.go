package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/attendance-tracker/internal/application"
)

type userRegistrar interface {
	RegisterUser(ctx context.Context, params application.RegisterUserParams) (application.User, error)
}

type UserHandler struct {
	service   userRegistrar
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userRegistrar, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// Register creates a users document. Anyone may register a plain user;
// registering an administrator requires an administrator session.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, _ := SessionFromContext(r.Context())

	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "principal_id", session.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params := req.toParams()
	logger := h.log(r.Context(), "Register", "principal_id", session.UserID, "role", string(params.Role))

	if params.Role == application.RoleAdmin && !session.IsAdmin() {
		logger.WarnContext(r.Context(), "admin registration refused", "error_kind", "permission_denied")
		h.responder.writeError(r.Context(), w, http.StatusForbidden, errAdminRequired)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), params)
	if err != nil {
		logger.WarnContext(r.Context(), "user registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

type registerUserRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r registerUserRequest) toParams() application.RegisterUserParams {
	return application.RegisterUserParams{
		ID:    strings.TrimSpace(r.ID),
		Email: strings.TrimSpace(r.Email),
		Role:  application.Role(strings.ToLower(strings.TrimSpace(r.Role))),
	}
}

type userResponse struct {
	User userDTO `json:"user"`
}

type userDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{ID: user.ID, Email: user.Email, Role: string(user.Role)}
}
