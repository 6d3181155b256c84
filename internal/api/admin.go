package api

import (
	"net/http"
)

// GET /api/admin/users
func (rt *Router) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := rt.Users.ListUsers(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// DELETE /api/admin/users/{id}
func (rt *Router) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := rt.Users.DeleteUser(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/admin/users/{id}/toggle-admin
func (rt *Router) handleToggleAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := rt.Users.ToggleAdmin(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_admin": admin})
}

// POST /api/admin/assessments/{id}/active
// { active: bool }
func (rt *Router) handleSetAssessmentActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.Assessments.SetActive(r.Context(), currentUser(r), r.PathValue("id"), req.Active); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// GET /api/admin/assessments/{id}/analytics
func (rt *Router) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	rep, err := rt.Assessments.Analytics(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/admin/results.csv
func (rt *Router) handleExportResults(w http.ResponseWriter, r *http.Request) {
	b, err := rt.Users.ExportResults(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=results.csv")
	_, _ = w.Write(b)
}

// GET /api/admin/responses.csv
func (rt *Router) handleExportResponses(w http.ResponseWriter, r *http.Request) {
	b, err := rt.Users.ExportResponses(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=responses.csv")
	_, _ = w.Write(b)
}
