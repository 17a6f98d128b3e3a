package http

import (
	"log/slog"
	"net/http"
	"strings"
)

type RouterConfig struct {
	Users      *UserHandler
	Attendance *AttendanceHandler
	Admin      *AdminHandler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	responder := newResponder(cfg.Logger)
	requireSession := RequireSession(cfg.Logger)
	requireAdmin := RequireAdmin(cfg.Logger)

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(responder, w, r, http.MethodPost)
				return
			}
			cfg.Users.Register(w, r)
		})
	}

	if cfg.Attendance != nil {
		mux.Handle("/attendance", requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(responder, w, r, http.MethodPost)
				return
			}
			cfg.Attendance.Mark(w, r)
		})))
		mux.Handle("/leave-requests", requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(responder, w, r, http.MethodPost)
				return
			}
			cfg.Attendance.SendLeave(w, r)
		})))
		mux.Handle("/history", requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(responder, w, r, http.MethodGet)
				return
			}
			cfg.Attendance.History(w, r)
		})))
	}

	if cfg.Admin != nil {
		admin := http.NewServeMux()
		admin.HandleFunc("/admin/overview", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(responder, w, r, http.MethodGet)
				return
			}
			cfg.Admin.Overview(w, r)
		})
		admin.HandleFunc("/admin/reports", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(responder, w, r, http.MethodGet)
				return
			}
			cfg.Admin.Reports(w, r)
		})
		admin.HandleFunc("/admin/reports/summary", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(responder, w, r, http.MethodGet)
				return
			}
			cfg.Admin.Summary(w, r)
		})
		admin.HandleFunc("/admin/users/", func(w http.ResponseWriter, r *http.Request) {
			// /admin/users/{id}/{leave-requests|attendance}/{date}
			parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/admin/users/"), "/")
			if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
				http.NotFound(w, r)
				return
			}
			userID, collection, date := parts[0], parts[1], parts[2]

			var handle func(http.ResponseWriter, *http.Request, string, string)
			switch collection {
			case "leave-requests":
				handle = cfg.Admin.DecideLeave
			case "attendance":
				handle = cfg.Admin.EditAttendance
			default:
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(responder, w, r, http.MethodPut)
				return
			}
			handle(w, r, userID, date)
		})
		mux.Handle("/admin/", requireAdmin(admin))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(responder responder, w http.ResponseWriter, r *http.Request, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	responder.writeError(r.Context(), w, http.StatusMethodNotAllowed, errMethodNotAllowed)
}
