package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/models"
)

// DefaultInviteTTL is how long an email invitation stays acceptable.
const DefaultInviteTTL = 7 * 24 * time.Hour

const maxTeamNameLen = 100

// TeamStore is the persistence the team service needs. Getters return
// (nil, nil) when the record does not exist.
type TeamStore interface {
	SnapshotStore

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddUser(ctx context.Context, u *models.User) error
	DeleteUserCascade(ctx context.Context, userID string) error

	// CreateTeam stores the team and its owner membership atomically.
	CreateTeam(ctx context.Context, t *models.Team, owner *models.Membership) error
	// DeleteTeam removes the team with its invites and memberships.
	DeleteTeam(ctx context.Context, id string) error
	ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error)

	GetMembership(ctx context.Context, teamID, userID string) (*models.Membership, error)
	// AddMembership inserts unless the pair exists; false means it already did.
	AddMembership(ctx context.Context, m *models.Membership) (bool, error)
	RemoveMembership(ctx context.Context, teamID, userID string) (bool, error)

	AddInvite(ctx context.Context, inv *models.Invite) error
	GetInvite(ctx context.Context, token string) (*models.Invite, error)
	// ListInvites filters by stored status; an empty status lists all.
	ListInvites(ctx context.Context, teamID string, status models.InviteStatus) ([]models.Invite, error)
	ListInvitesByEmail(ctx context.Context, email string, status models.InviteStatus) ([]models.Invite, error)
	// CompleteInvite moves a pending invite to status and, when m is not
	// nil, adds the membership in the same transaction. It returns false
	// when the invite was no longer pending.
	CompleteInvite(ctx context.Context, token string, status models.InviteStatus, m *models.Membership) (bool, error)
}

type TeamServiceConfig struct {
	Store     TeamStore
	Joins     *JoinTokens
	Notifier  Notifier
	Events    events.Publisher
	Logger    *slog.Logger
	BaseURL   string
	InviteTTL time.Duration
}

type TeamService struct {
	store     TeamStore
	joins     *JoinTokens
	notifier  Notifier
	events    events.Publisher
	log       *slog.Logger
	baseURL   string
	inviteTTL time.Duration

	now      func() time.Time
	idGen    func(n int) string
	tokenGen func() string
	inflight sync.WaitGroup
}

func NewTeamService(cfg TeamServiceConfig) *TeamService {
	s := &TeamService{
		store:     cfg.Store,
		joins:     cfg.Joins,
		notifier:  cfg.Notifier,
		events:    cfg.Events,
		log:       cfg.Logger,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		inviteTTL: cfg.InviteTTL,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     shortID,
		tokenGen:  newToken,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.inviteTTL <= 0 {
		s.inviteTTL = DefaultInviteTTL
	}
	return s
}

// Drain waits for in-flight notifications to finish.
func (s *TeamService) Drain() { s.inflight.Wait() }

func (s *TeamService) mustTeam(ctx context.Context, teamID string) (*models.Team, error) {
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTeamNotFound
	}
	return t, nil
}

func (s *TeamService) mustUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// AddMember adds userID to the team. It is idempotent: when the user already
// belongs, the existing membership is returned with added=false.
func (s *TeamService) AddMember(ctx context.Context, teamID, userID string, role models.Role) (*models.Membership, bool, error) {
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember {
		return nil, false, NewInvalidError("only member role can be added")
	}
	if _, err := s.mustTeam(ctx, teamID); err != nil {
		return nil, false, err
	}
	if _, err := s.mustUser(ctx, userID); err != nil {
		return nil, false, err
	}
	if existing, err := s.store.GetMembership(ctx, teamID, userID); err != nil || existing != nil {
		return existing, false, err
	}
	m := &models.Membership{TeamID: teamID, UserID: userID, Role: role, JoinedAt: s.now()}
	added, err := s.store.AddMembership(ctx, m)
	if err != nil {
		return nil, false, err
	}
	if !added {
		// lost a race with a concurrent add
		existing, err := s.store.GetMembership(ctx, teamID, userID)
		return existing, false, err
	}
	s.log.InfoContext(ctx, "team.member_added", "team_id", teamID, "user_id", userID)
	publishTeam(ctx, s.events, s.log, teamID, events.TypeMemberJoined, map[string]string{"user_id": userID})
	return m, true, nil
}

// RemoveMember deletes a membership. It reports false when the user was not
// a member and refuses the owner before touching storage.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	if t.OwnerID == userID {
		return false, ErrOwnerRemoval
	}
	removed, err := s.store.RemoveMembership(ctx, teamID, userID)
	if err != nil || !removed {
		return false, err
	}
	s.log.InfoContext(ctx, "team.member_removed", "team_id", teamID, "user_id", userID)
	publishTeam(ctx, s.events, s.log, teamID, events.TypeMemberLeft, map[string]string{"user_id": userID})
	return true, nil
}

func (s *TeamService) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	m, err := s.store.GetMembership(ctx, teamID, userID)
	return m != nil, err
}

func (s *TeamService) IsOwner(ctx context.Context, teamID, userID string) (bool, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	return t.OwnerID == userID, nil
}

// canManage is true for the owner and for admins.
func (s *TeamService) canManage(ctx context.Context, t *models.Team, actorID string) (bool, error) {
	if t.OwnerID == actorID {
		return true, nil
	}
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsAdmin, nil
}

// canView is true for members and admins.
func (s *TeamService) canView(ctx context.Context, t *models.Team, actorID string) (bool, error) {
	if ok, err := s.IsMember(ctx, t.ID, actorID); err != nil || ok {
		return ok, err
	}
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsAdmin, nil
}

// CanView reports whether viewerID may currently see teamID.
func (s *TeamService) CanView(ctx context.Context, viewerID, teamID string) (bool, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	return s.canView(ctx, t, viewerID)
}

func (s *TeamService) teamForViewer(ctx context.Context, actorID, teamID string) (*models.Team, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, t, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewForbiddenError("you are not a member of this team")
	}
	return t, nil
}

func (s *TeamService) teamForManager(ctx context.Context, actorID, teamID string) (*models.Team, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canManage(ctx, t, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewForbiddenError("only the team owner can do this")
	}
	return t, nil
}

// CreateTeam creates the team with ownerID as its owner member, then invites
// the initial emails.
func (s *TeamService) CreateTeam(ctx context.Context, ownerID, name, description string, emails []string) (*models.Team, []InviteResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, NewInvalidError("team name required")
	}
	if len(name) > maxTeamNameLen {
		return nil, nil, NewInvalidError("team name too long")
	}
	// Names end up in mail headers.
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return nil, nil, NewInvalidError("team name contains control characters")
	}
	owner, err := s.mustUser(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	t := &models.Team{ID: s.idGen(8), Name: name, Description: strings.TrimSpace(description), OwnerID: ownerID, CreatedAt: now}
	m := &models.Membership{TeamID: t.ID, UserID: ownerID, Role: models.RoleOwner, JoinedAt: now}
	if err := s.store.CreateTeam(ctx, t, m); err != nil {
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "team.created", "team_id", t.ID, "owner_id", ownerID)

	ownerEmail := normalizeEmail(owner.Email)
	var initial []string
	for _, e := range emails {
		if normalizeEmail(e) != ownerEmail {
			initial = append(initial, e)
		}
	}
	results, err := s.inviteEmails(ctx, t, owner, initial)
	return t, results, err
}

// LeaveTeam removes userID's own membership. The owner cannot leave.
func (s *TeamService) LeaveTeam(ctx context.Context, teamID, userID string) (bool, error) {
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	if t.OwnerID == userID {
		return false, ErrOwnerLeave
	}
	return s.RemoveMember(ctx, teamID, userID)
}

// RemoveMemberAs removes userID on behalf of actorID, who must own the team
// or be an admin.
func (s *TeamService) RemoveMemberAs(ctx context.Context, actorID, teamID, userID string) (bool, error) {
	t, err := s.teamForManager(ctx, actorID, teamID)
	if err != nil {
		return false, err
	}
	if t.OwnerID == userID {
		return false, ErrOwnerRemoval
	}
	return s.RemoveMember(ctx, teamID, userID)
}

func (s *TeamService) DeleteTeam(ctx context.Context, actorID, teamID string) error {
	if _, err := s.teamForManager(ctx, actorID, teamID); err != nil {
		return err
	}
	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "team.deleted", "team_id", teamID, "actor_id", actorID)
	publishTeam(ctx, s.events, s.log, teamID, events.TypeTeamDeleted, nil)
	return nil
}

func (s *TeamService) ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	return s.store.ListTeamsForUser(ctx, userID)
}

type MemberView struct {
	UserID   string         `json:"user_id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Role     models.Role    `json:"role"`
	JoinedAt time.Time      `json:"joined_at"`
	Latest   *models.Result `json:"latest_result,omitempty"`
}

type TeamView struct {
	Team           models.Team     `json:"team"`
	Members        []MemberView    `json:"members"`
	PendingInvites []models.Invite `json:"pending_invites,omitempty"`
	CanManage      bool            `json:"can_manage"`
}

// TeamDetail lists members with their latest result. Pending invites are
// included only for managers.
func (s *TeamService) TeamDetail(ctx context.Context, viewerID, teamID string) (*TeamView, error) {
	t, err := s.teamForViewer(ctx, viewerID, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberships(ctx, teamID)
	if err != nil {
		return nil, err
	}
	view := &TeamView{Team: *t, Members: make([]MemberView, 0, len(members))}
	for _, m := range members {
		u, err := s.store.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		latest, err := s.store.LatestResultForUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		view.Members = append(view.Members, MemberView{
			UserID: u.ID, Name: u.DisplayName(), Email: u.Email,
			Role: m.Role, JoinedAt: m.JoinedAt, Latest: latest,
		})
	}
	if view.CanManage, err = s.canManage(ctx, t, viewerID); err != nil {
		return nil, err
	}
	if view.CanManage {
		invites, err := s.store.ListInvites(ctx, teamID, models.InvitePending)
		if err != nil {
			return nil, err
		}
		now := s.now()
		for _, inv := range invites {
			if !inv.IsExpired(now) {
				view.PendingInvites = append(view.PendingInvites, inv)
			}
		}
	}
	return view, nil
}

// Snapshot builds the dashboard dataset for a team the viewer can see.
func (s *TeamService) Snapshot(ctx context.Context, viewerID, teamID string) ([]SnapshotEntry, error) {
	if _, err := s.teamForViewer(ctx, viewerID, teamID); err != nil {
		return nil, err
	}
	return BuildTeamSnapshot(ctx, s.store, teamID)
}

// JoinURL returns a fresh quick-join link for the team.
func (s *TeamService) JoinURL(ctx context.Context, viewerID, teamID string) (string, error) {
	if _, err := s.teamForViewer(ctx, viewerID, teamID); err != nil {
		return "", err
	}
	tok, err := s.joins.Issue(teamID)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/api/join/" + tok, nil
}

type QuickJoinResult struct {
	Team  *models.Team `json:"team"`
	User  *models.User `json:"user"`
	Guest bool         `json:"guest"`
	Added bool         `json:"added"`
}

// QuickJoin adds a user to the team named by a join token. With no userID a
// guest account is created from guestName.
func (s *TeamService) QuickJoin(ctx context.Context, token, userID, guestName string) (*QuickJoinResult, error) {
	teamID, err := s.joins.Verify(token)
	if err != nil {
		return nil, err
	}
	t, err := s.mustTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	res := &QuickJoinResult{Team: t}
	if userID != "" {
		if res.User, err = s.mustUser(ctx, userID); err != nil {
			return nil, err
		}
	} else {
		guest, err := newGuestUser(guestName, s.idGen(8), s.now())
		if err != nil {
			return nil, err
		}
		if err := s.store.AddUser(ctx, guest); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "user.guest_created", "user_id", guest.ID)
		res.User, res.Guest = guest, true
	}
	if _, res.Added, err = s.AddMember(ctx, teamID, res.User.ID, models.RoleMember); err != nil {
		if res.Guest {
			// A guest that never joined is unreachable; drop it.
			if derr := s.store.DeleteUserCascade(ctx, res.User.ID); derr != nil {
				s.log.WarnContext(ctx, "remove orphaned guest failed", "user_id", res.User.ID, "err", derr)
			}
		}
		return nil, err
	}
	if res.Added {
		now := s.now()
		audit := &models.Invite{
			Token: s.tokenGen(), TeamID: teamID, Email: res.User.Email,
			Status: models.InviteAutoAccepted, CreatedAt: now, ExpiresAt: now,
		}
		if err := s.store.AddInvite(ctx, audit); err != nil {
			s.log.WarnContext(ctx, "record quick-join invite failed", "team_id", teamID, "err", err)
		}
	}
	return res, nil
}
