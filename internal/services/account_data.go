package services

import (
	"context"
	"time"

	"github.com/gmoorevt/socialstyles/internal/models"
)

// AccountExport is everything stored about one user.
type AccountExport struct {
	User       *models.User    `json:"user"`
	Results    []models.Result `json:"results"`
	Teams      []models.Team   `json:"teams"`
	ExportedAt time.Time       `json:"exported_at"`
}

// ExportOwnData returns the caller's profile, results and team memberships.
func (s *UserService) ExportOwnData(ctx context.Context, userID string) (*AccountExport, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResultsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.ListTeamsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.Result{}
	}
	if teams == nil {
		teams = []models.Team{}
	}
	s.log.InfoContext(ctx, "user.self_export", "user_id", userID, "results", len(results))
	return &AccountExport{User: u, Results: results, Teams: teams, ExportedAt: time.Now().UTC()}, nil
}

// DeleteOwnAccount removes the caller and everything they own, the same
// cascade an admin delete performs.
func (s *UserService) DeleteOwnAccount(ctx context.Context, userID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUserCascade(ctx, userID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user.self_deleted", "user_id", userID)
	return nil
}
