package services

import (
	"context"

	"github.com/gmoorevt/socialstyles/internal/models"
)

// SnapshotStore is the read-only persistence a team snapshot needs.
type SnapshotStore interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	// ListMemberships returns memberships in join order.
	ListMemberships(ctx context.Context, teamID string) ([]models.Membership, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// LatestResultForUser returns the most recently created result or nil.
	LatestResultForUser(ctx context.Context, userID string) (*models.Result, error)
}

// SnapshotEntry is one plotted member. X and Y are on the 0..100 grid.
type SnapshotEntry struct {
	UserID string             `json:"user_id"`
	Name   string             `json:"name"`
	Role   models.Role        `json:"role"`
	Style  models.SocialStyle `json:"social_style"`
	Result *models.Result     `json:"result"`
	X      float64            `json:"x"`
	Y      float64            `json:"y"`
}

// BuildTeamSnapshot returns each member's latest result with its grid
// position, in membership order. Members without a result are left out.
func BuildTeamSnapshot(ctx context.Context, store SnapshotStore, teamID string) ([]SnapshotEntry, error) {
	t, err := store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTeamNotFound
	}
	members, err := store.ListMemberships(ctx, teamID)
	if err != nil {
		return nil, err
	}
	entries := []SnapshotEntry{}
	for _, m := range members {
		res, err := store.LatestResultForUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		u, err := store.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		x, y := GridPosition(res.AssertivenessScore, res.ResponsivenessScore)
		entries = append(entries, SnapshotEntry{
			UserID: m.UserID,
			Name:   u.DisplayName(),
			Role:   m.Role,
			Style:  res.SocialStyle,
			Result: res,
			X:      x,
			Y:      y,
		})
	}
	return entries, nil
}

// CountStyles tallies a snapshot by style; every style has a key.
func CountStyles(entries []SnapshotEntry) map[models.SocialStyle]int {
	counts := map[models.SocialStyle]int{
		models.StyleDriver:     0,
		models.StyleExpressive: 0,
		models.StyleAmiable:    0,
		models.StyleAnalytical: 0,
	}
	for _, e := range entries {
		counts[e.Style]++
	}
	return counts
}
