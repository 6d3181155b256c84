package api

import (
	"net/http"

	"github.com/gmoorevt/socialstyles/internal/models"
	"github.com/gmoorevt/socialstyles/internal/services"
)

// POST /api/teams
// { name: string, description?: string, emails?: [string] }
func (rt *Router) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Emails      []string `json:"emails"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	t, invites, err := rt.Teams.CreateTeam(r.Context(), currentUser(r), req.Name, req.Description, req.Emails)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if invites == nil {
		invites = []services.InviteResult{}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"team": t, "invites": invites})
}

// GET /api/teams
func (rt *Router) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := rt.Teams.ListTeamsForUser(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// GET /api/teams/{id}
func (rt *Router) handleTeamDetail(w http.ResponseWriter, r *http.Request) {
	view, err := rt.Teams.TeamDetail(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DELETE /api/teams/{id}
func (rt *Router) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := rt.Teams.DeleteTeam(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/teams/{id}/invites
// { emails: [string] }
func (rt *Router) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	results, err := rt.Teams.InviteMembers(r.Context(), currentUser(r), r.PathValue("id"), req.Emails)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": results})
}

// POST /api/teams/{id}/leave
func (rt *Router) handleLeave(w http.ResponseWriter, r *http.Request) {
	removed, err := rt.Teams.LeaveTeam(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// DELETE /api/teams/{id}/members/{userID}
func (rt *Router) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	removed, err := rt.Teams.RemoveMemberAs(r.Context(), currentUser(r), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// GET /api/teams/{id}/snapshot
func (rt *Router) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.Teams.Snapshot(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotBody(r.PathValue("id"), entries))
}

func snapshotBody(teamID string, entries []services.SnapshotEntry) map[string]any {
	return map[string]any{"team_id": teamID, "members": entries, "counts": services.CountStyles(entries)}
}

// GET /api/teams/{id}/join-url
func (rt *Router) handleJoinURL(w http.ResponseWriter, r *http.Request) {
	url, err := rt.Teams.JoinURL(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GET /api/invites
func (rt *Router) handlePendingInvites(w http.ResponseWriter, r *http.Request) {
	u, err := rt.Users.Get(r.Context(), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	list, err := rt.Teams.PendingInvitesForEmail(r.Context(), u.Email)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": list})
}

func outcomeStatus(o services.InviteOutcome) int {
	switch o {
	case services.OutcomeAccepted, services.OutcomeRejected:
		return http.StatusOK
	case services.OutcomeExpired:
		return http.StatusGone
	case services.OutcomeWrongUser:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

func (rt *Router) writeOutcome(w http.ResponseWriter, o services.InviteOutcome, inv *models.Invite) {
	body := map[string]any{"outcome": o}
	if inv != nil {
		body["team_id"] = inv.TeamID
	}
	writeJSON(w, outcomeStatus(o), body)
}

// POST /api/invites/{token}/accept
func (rt *Router) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	o, inv, err := rt.Teams.AcceptInviteByToken(r.Context(), r.PathValue("token"), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeOutcome(w, o, inv)
}

// POST /api/invites/{token}/reject
func (rt *Router) handleRejectInvite(w http.ResponseWriter, r *http.Request) {
	o, inv, err := rt.Teams.RejectInviteByToken(r.Context(), r.PathValue("token"), currentUser(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.writeOutcome(w, o, inv)
}
