package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/gmoorevt/socialstyles/internal/events"
)

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// newToken returns an opaque random token for invites.
func newToken() string {
	return uuid.NewString()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Notifier delivers fire-and-forget messages such as invitations.
type Notifier interface {
	Notify(ctx context.Context, email, eventType string, payload map[string]string) error
}

func publishTeam(ctx context.Context, pub events.Publisher, log *slog.Logger, teamID, typ string, payload any) {
	if pub == nil {
		return
	}
	evt, err := events.New(typ, teamID, payload)
	if err == nil {
		err = pub.Publish(ctx, events.TeamTopic(teamID), evt)
	}
	if err != nil {
		log.WarnContext(ctx, "publish team event failed", "team_id", teamID, "type", typ, "err", err)
	}
}
