package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/middleware"
	"github.com/gmoorevt/socialstyles/internal/services"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Auth           *middleware.Auth
	Accounts       *services.AuthService
	Users          *services.UserService
	Assessments    *services.AssessmentService
	Teams          *services.TeamService
	Broker         events.Broker
	Logger         *slog.Logger
	Version        string
	AllowedOrigins []string
	// Health reports storage reachability for GET /health. Optional.
	Health func(ctx context.Context) error
	// KeepAlive is the SSE comment interval; zero means 25s.
	KeepAlive time.Duration
}

type Router struct {
	Deps
	log *slog.Logger
}

func NewRouter(d Deps) *Router {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if d.KeepAlive <= 0 {
		d.KeepAlive = 25 * time.Second
	}
	return &Router{Deps: d, log: log.With("component", "api")}
}

func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("GET /api/me", authed(rt.handleMe))
	mux.Handle("DELETE /api/me", authed(rt.handleDeleteMe))
	mux.Handle("GET /api/me/export", authed(rt.handleExportMe))

	mux.HandleFunc("GET /api/assessments/active", rt.handleActiveAssessment)
	mux.Handle("GET /api/assessments", authed(rt.handleListAssessments))

	mux.Handle("POST /api/results", authed(rt.handleSubmit))
	mux.Handle("GET /api/results", authed(rt.handleListResults))
	mux.Handle("GET /api/results/{id}", authed(rt.handleGetResult))
	mux.Handle("GET /api/results/{id}/report", authed(rt.handleReport))

	mux.Handle("POST /api/teams", authed(rt.handleCreateTeam))
	mux.Handle("GET /api/teams", authed(rt.handleListTeams))
	mux.Handle("GET /api/teams/{id}", authed(rt.handleTeamDetail))
	mux.Handle("DELETE /api/teams/{id}", authed(rt.handleDeleteTeam))
	mux.Handle("POST /api/teams/{id}/invites", authed(rt.handleInvite))
	mux.Handle("POST /api/teams/{id}/leave", authed(rt.handleLeave))
	mux.Handle("DELETE /api/teams/{id}/members/{userID}", authed(rt.handleRemoveMember))
	mux.Handle("GET /api/teams/{id}/snapshot", authed(rt.handleSnapshot))
	mux.Handle("GET /api/teams/{id}/join-url", authed(rt.handleJoinURL))
	mux.Handle("GET /api/teams/{id}/events", authed(rt.handleTeamEvents))

	mux.Handle("GET /api/invites", authed(rt.handlePendingInvites))
	mux.Handle("POST /api/invites/{token}/accept", authed(rt.handleAcceptInvite))
	mux.Handle("POST /api/invites/{token}/reject", authed(rt.handleRejectInvite))
	// Unauthenticated callers join as a guest.
	mux.HandleFunc("POST /api/join/{token}", rt.handleQuickJoin)

	mux.Handle("GET /api/admin/users", authed(rt.handleListUsers))
	mux.Handle("DELETE /api/admin/users/{id}", authed(rt.handleDeleteUser))
	mux.Handle("POST /api/admin/users/{id}/toggle-admin", authed(rt.handleToggleAdmin))
	mux.Handle("POST /api/admin/assessments/{id}/active", authed(rt.handleSetAssessmentActive))
	mux.Handle("GET /api/admin/assessments/{id}/analytics", authed(rt.handleAnalytics))
	mux.Handle("GET /api/admin/results.csv", authed(rt.handleExportResults))
	mux.Handle("GET /api/admin/responses.csv", authed(rt.handleExportResponses))
}

// Handler returns the full middleware stack around a fresh mux.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	return middleware.Chain(mux,
		rt.logRequests,
		middleware.SecureHeaders,
		middleware.CORS(rt.AllowedOrigins),
		middleware.NoStore,
		rt.Auth.WithAuth,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the Flusher for SSE.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (rt *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		rt.log.DebugContext(r.Context(), "http.request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps service errors onto statuses. Anything else is logged and
// reported as a bare 500.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusFor(se.Code), map[string]string{"error": se.Message, "code": string(se.Code)})
		return
	}
	rt.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "internal"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError("invalid JSON: " + err.Error())
	}
	return nil
}

// currentUser is only called behind RequireAuth.
func currentUser(r *http.Request) string {
	uid, _ := middleware.UserIDFromContext(r.Context())
	return uid
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.Health != nil {
		if err := rt.Health(r.Context()); err != nil {
			rt.log.WarnContext(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": rt.Version})
}
