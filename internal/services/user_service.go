package services

import (
	"context"
	"log/slog"

	"github.com/gmoorevt/socialstyles/internal/models"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetAdmin(ctx context.Context, userID string, admin bool) error
	// DeleteUserCascade removes the user's results, memberships and owned
	// teams (with their invites and memberships), then the user, in one
	// transaction.
	DeleteUserCascade(ctx context.Context, userID string) error
	ListAllResults(ctx context.Context) ([]models.Result, error)
	ListResultsForUser(ctx context.Context, userID string) ([]models.Result, error)
	ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error)
}

type UserService struct {
	store UserStore
	log   *slog.Logger
}

func NewUserService(store UserStore, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{store: store, log: log}
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) IsAdmin(ctx context.Context, id string) (bool, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsAdmin, nil
}

// ListUsers is admin only.
func (s *UserService) ListUsers(ctx context.Context, actorID string) ([]models.User, error) {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// DeleteUser removes a user and everything they own. Admins only, and never
// their own account.
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return err
	}
	if actorID == userID {
		return NewForbiddenError("you cannot delete your own account")
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUserCascade(ctx, userID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user.deleted", "user_id", userID, "actor_id", actorID)
	return nil
}

// ToggleAdmin flips another user's admin flag and returns the new value.
func (s *UserService) ToggleAdmin(ctx context.Context, actorID, userID string) (bool, error) {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return false, err
	}
	if actorID == userID {
		return false, NewForbiddenError("you cannot change your own admin privileges")
	}
	u, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := s.store.SetAdmin(ctx, userID, !u.IsAdmin); err != nil {
		return false, err
	}
	s.log.InfoContext(ctx, "user.admin_toggled", "user_id", userID, "is_admin", !u.IsAdmin, "actor_id", actorID)
	return !u.IsAdmin, nil
}

// MakeAdmin grants admin by email; used from the command line.
func (s *UserService) MakeAdmin(ctx context.Context, email string) (*models.User, error) {
	u, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if err := s.store.SetAdmin(ctx, u.ID, true); err != nil {
		return nil, err
	}
	u.IsAdmin = true
	s.log.InfoContext(ctx, "user.admin_granted", "user_id", u.ID)
	return u, nil
}

// ExportResults renders every result as CSV; admins only.
func (s *UserService) ExportResults(ctx context.Context, actorID string) ([]byte, error) {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	results, err := s.store.ListAllResults(ctx)
	if err != nil {
		return nil, err
	}
	users := map[string]*models.User{}
	rows := make([]ResultRow, 0, len(results))
	for _, r := range results {
		u, seen := users[r.UserID]
		if !seen {
			if u, err = s.store.GetUser(ctx, r.UserID); err != nil {
				return nil, err
			}
			users[r.UserID] = u
		}
		row := ResultRow{Result: r}
		if u != nil {
			row.UserEmail, row.UserName = u.Email, u.Name
		}
		rows = append(rows, row)
	}
	return ExportResultsCSV(rows)
}

// ExportResponses renders the raw answers of every result, one column per
// question id; admins only.
func (s *UserService) ExportResponses(ctx context.Context, actorID string) ([]byte, error) {
	if err := requireAdmin(ctx, s.store, actorID); err != nil {
		return nil, err
	}
	results, err := s.store.ListAllResults(ctx)
	if err != nil {
		return nil, err
	}
	return ExportResponsesWideCSV(results)
}
