package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/services"
)

func writeSSE(w http.ResponseWriter, event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

// leftTeam reports whether evt removes userID from the team.
func leftTeam(evt events.Event, userID string) bool {
	if evt.Type != events.TypeMemberLeft {
		return false
	}
	var p struct {
		UserID string `json:"user_id"`
	}
	return json.Unmarshal(evt.Payload, &p) == nil && p.UserID == userID
}

// GET /api/teams/{id}/events
// Streams a "snapshot" event first, then every team event until the client
// goes away, the team is deleted or the viewer loses access to it.
func (rt *Router) handleTeamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	teamID := r.PathValue("id")
	viewerID := currentUser(r)
	entries, err := rt.Teams.Snapshot(ctx, viewerID, teamID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.Broker == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "live updates are disabled", "code": "unavailable"})
		return
	}
	ch, cancel, err := rt.Broker.Subscribe(ctx, events.TeamTopic(teamID))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := writeSSE(w, "snapshot", snapshotBody(teamID, entries)); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		rt.log.WarnContext(ctx, "sse flush unsupported", "err", err)
		return
	}

	ping := time.NewTicker(rt.KeepAlive)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			final := evt.Type == events.TypeTeamDeleted || leftTeam(evt, viewerID)
			if !final {
				// Access can be lost without a member.left reaching us. A
				// deleted team still has its team.deleted event queued.
				visible, err := rt.Teams.CanView(ctx, viewerID, teamID)
				if errors.Is(err, services.ErrTeamNotFound) {
					visible, err = true, nil
				}
				if err != nil || !visible {
					return
				}
			}
			if err := writeSSE(w, evt.Type, evt); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if final {
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
