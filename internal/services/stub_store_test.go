package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/models"
)

// memStore is an in-memory stand-in for the SQLite store.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	teams       map[string]*models.Team
	memberships []models.Membership
	invites     []*models.Invite
	results     []models.Result
	assessments []*models.Assessment

	addMembershipCalls    int
	removeMembershipCalls int
	addMembershipErr      error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}, teams: map[string]*models.Team{}}
}

func (s *memStore) addUser(id, email string, admin bool) *models.User {
	u := &models.User{ID: id, Email: email, Name: id, IsAdmin: admin, CreatedAt: time.Unix(0, 0).UTC()}
	s.users[id] = u
	return u
}

func (s *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) AddUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return NewConflictError("email exists")
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (s *memStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetAdmin(_ context.Context, userID string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.IsAdmin = admin
	return nil
}

func (s *memStore) DeleteUserCascade(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.results[:0]
	for _, r := range s.results {
		if r.UserID != userID {
			results = append(results, r)
		}
	}
	s.results = results
	for id, t := range s.teams {
		if t.OwnerID == userID {
			s.deleteTeamLocked(id)
		}
	}
	ms := s.memberships[:0]
	for _, m := range s.memberships {
		if m.UserID != userID {
			ms = append(ms, m)
		}
	}
	s.memberships = ms
	delete(s.users, userID)
	return nil
}

func (s *memStore) GetTeam(_ context.Context, id string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.teams[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) CreateTeam(_ context.Context, t *models.Team, owner *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.teams[t.ID] = &cp
	s.memberships = append(s.memberships, *owner)
	return nil
}

func (s *memStore) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteTeamLocked(id)
	return nil
}

func (s *memStore) deleteTeamLocked(id string) {
	invites := s.invites[:0]
	for _, inv := range s.invites {
		if inv.TeamID != id {
			invites = append(invites, inv)
		}
	}
	s.invites = invites
	ms := s.memberships[:0]
	for _, m := range s.memberships {
		if m.TeamID != id {
			ms = append(ms, m)
		}
	}
	s.memberships = ms
	delete(s.teams, id)
}

func (s *memStore) ListTeamsForUser(_ context.Context, userID string) ([]models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Team{}
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, *s.teams[m.TeamID])
		}
	}
	return out, nil
}

func (s *memStore) GetMembership(_ context.Context, teamID, userID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.TeamID == teamID && m.UserID == userID {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListMemberships(_ context.Context, teamID string) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Membership{}
	for _, m := range s.memberships {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) AddMembership(_ context.Context, m *models.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMembershipCalls++
	if s.addMembershipErr != nil {
		return false, s.addMembershipErr
	}
	return s.addMembershipLocked(m), nil
}

func (s *memStore) addMembershipLocked(m *models.Membership) bool {
	for _, existing := range s.memberships {
		if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
			return false
		}
	}
	s.memberships = append(s.memberships, *m)
	return true
}

func (s *memStore) RemoveMembership(_ context.Context, teamID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeMembershipCalls++
	for i, m := range s.memberships {
		if m.TeamID == teamID && m.UserID == userID {
			s.memberships = append(s.memberships[:i], s.memberships[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AddInvite(_ context.Context, inv *models.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invites = append(s.invites, &cp)
	return nil
}

func (s *memStore) GetInvite(_ context.Context, token string) (*models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListInvites(_ context.Context, teamID string, status models.InviteStatus) ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Invite{}
	for _, inv := range s.invites {
		if inv.TeamID == teamID && (status == "" || inv.Status == status) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *memStore) ListInvitesByEmail(_ context.Context, email string, status models.InviteStatus) ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Invite{}
	for _, inv := range s.invites {
		if inv.Email == email && (status == "" || inv.Status == status) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *memStore) CompleteInvite(_ context.Context, token string, status models.InviteStatus, m *models.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.Token != token {
			continue
		}
		if inv.Status != models.InvitePending {
			return false, nil
		}
		inv.Status = status
		if m != nil {
			s.addMembershipLocked(m)
		}
		return true, nil
	}
	return false, nil
}

func (s *memStore) invite(token string) *models.Invite {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invites {
		if inv.Token == token {
			return inv
		}
	}
	return nil
}

func (s *memStore) GetAssessment(_ context.Context, id string) (*models.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assessments {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ActiveAssessment(_ context.Context) (*models.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assessments) - 1; i >= 0; i-- {
		if s.assessments[i].Active {
			cp := *s.assessments[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListAssessments(_ context.Context) ([]models.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Assessment{}
	for _, a := range s.assessments {
		out = append(out, *a)
	}
	return out, nil
}

func (s *memStore) ActivateAssessment(_ context.Context, a *models.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assessments {
		existing.Active = false
	}
	cp := *a
	s.assessments = append(s.assessments, &cp)
	return nil
}

func (s *memStore) SetAssessmentActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assessments {
		if a.ID == id {
			a.Active = active
		}
	}
	return nil
}

func (s *memStore) AddResult(_ context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *r)
	return nil
}

func (s *memStore) GetResult(_ context.Context, id string) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListResultsForUser(_ context.Context, userID string) ([]models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Result{}
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].UserID == userID {
			out = append(out, s.results[i])
		}
	}
	return out, nil
}

func (s *memStore) LatestResultForUser(ctx context.Context, userID string) (*models.Result, error) {
	rs, _ := s.ListResultsForUser(ctx, userID)
	var latest *models.Result
	for i := range rs {
		if latest == nil || rs[i].CreatedAt.After(latest.CreatedAt) {
			latest = &rs[i]
		}
	}
	return latest, nil
}

func (s *memStore) ListAllResults(_ context.Context) ([]models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Result(nil), s.results...), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type sentNote struct {
	Email   string
	Event   string
	Payload map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNote
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, email, eventType string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNote{Email: email, Event: eventType, Payload: payload})
	return n.err
}
