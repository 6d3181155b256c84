package api

import (
	"net/http"
	"strings"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.Accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := rt.Users.Get(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DELETE /api/me
func (rt *Router) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := rt.Users.DeleteOwnAccount(r.Context(), currentUser(r)); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/me/export
func (rt *Router) handleExportMe(w http.ResponseWriter, r *http.Request) {
	exp, err := rt.Users.ExportOwnData(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=my_social_style_data.json")
	writeJSON(w, http.StatusOK, exp)
}

// POST /api/join/{token}
// Signed-in callers join as themselves; others must send {"name": "..."}
// and receive a guest session token.
func (rt *Router) handleQuickJoin(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r)
	var req struct {
		Name string `json:"name"`
	}
	if uid == "" {
		if err := decodeJSON(w, r, &req); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	res, err := rt.Teams.QuickJoin(r.Context(), r.PathValue("token"), uid, strings.TrimSpace(req.Name))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out := map[string]any{"team": res.Team, "user": res.User, "guest": res.Guest, "added": res.Added}
	if res.Guest {
		session, err := rt.Accounts.IssueToken(res.User)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		out["token"] = session.Token
	}
	writeJSON(w, http.StatusOK, out)
}
