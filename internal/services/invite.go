package services

import (
	"context"
	"net/mail"
	"time"

	"github.com/gmoorevt/socialstyles/internal/events"
	"github.com/gmoorevt/socialstyles/internal/models"
)

// notifyTeamInvite is the notification event type for invitations.
const notifyTeamInvite = "team.invite"

// Per-email outcomes of an invitation request.
const (
	InviteSent            = "invited"
	InviteAlreadyMember   = "already_member"
	InviteAlreadyInvited  = "already_invited"
	InviteInvalidEmail    = "invalid_email"
	InviteDuplicateInList = "duplicate"
)

type InviteResult struct {
	Email  string         `json:"email"`
	Status string         `json:"status"`
	Invite *models.Invite `json:"invite,omitempty"`
}

// InviteOutcome reports how an accept or reject attempt ended.
type InviteOutcome string

const (
	OutcomeAccepted         InviteOutcome = "accepted"
	OutcomeRejected         InviteOutcome = "rejected"
	OutcomeAlreadyProcessed InviteOutcome = "already_processed"
	OutcomeExpired          InviteOutcome = "expired"
	OutcomeWrongUser        InviteOutcome = "wrong_user"
)

// InviteMembers invites each email to the team. Members and addresses
// with a live pending invite are skipped.
func (s *TeamService) InviteMembers(ctx context.Context, actorID, teamID string, emails []string) ([]InviteResult, error) {
	t, err := s.teamForManager(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.mustUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.inviteEmails(ctx, t, inviter, emails)
}

func (s *TeamService) inviteEmails(ctx context.Context, t *models.Team, inviter *models.User, emails []string) ([]InviteResult, error) {
	pending, err := s.store.ListInvites(ctx, t.ID, models.InvitePending)
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := map[string]bool{}
	for _, inv := range pending {
		if !inv.IsExpired(now) {
			live[normalizeEmail(inv.Email)] = true
		}
	}
	seen := map[string]bool{}
	var results []InviteResult
	for _, raw := range emails {
		email := normalizeEmail(raw)
		if email == "" {
			continue
		}
		res := InviteResult{Email: email}
		switch {
		case !validEmail(email):
			res.Status = InviteInvalidEmail
		case seen[email]:
			res.Status = InviteDuplicateInList
		case live[email]:
			res.Status = InviteAlreadyInvited
		}
		seen[email] = true
		if res.Status != "" {
			results = append(results, res)
			continue
		}
		u, err := s.store.FindUserByEmail(ctx, email)
		if err != nil {
			return results, err
		}
		if u != nil {
			member, err := s.IsMember(ctx, t.ID, u.ID)
			if err != nil {
				return results, err
			}
			if member {
				res.Status = InviteAlreadyMember
				results = append(results, res)
				continue
			}
		}
		inv := &models.Invite{
			Token: s.tokenGen(), TeamID: t.ID, Email: email,
			Status: models.InvitePending, CreatedAt: now, ExpiresAt: now.Add(s.inviteTTL),
		}
		if err := s.store.AddInvite(ctx, inv); err != nil {
			return results, err
		}
		s.log.InfoContext(ctx, "invite.created", "team_id", t.ID, "email", email)
		s.sendInvite(ctx, t, inviter, inv)
		res.Status, res.Invite = InviteSent, inv
		results = append(results, res)
	}
	return results, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// sendInvite notifies the invitee in the background; failures are logged.
func (s *TeamService) sendInvite(ctx context.Context, t *models.Team, inviter *models.User, inv *models.Invite) {
	if s.notifier == nil {
		return
	}
	payload := map[string]string{
		"team_name":  t.Name,
		"inviter":    inviter.DisplayName(),
		"accept_url": s.baseURL + "/api/invites/" + inv.Token + "/accept",
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	}
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.notifier.Notify(ctx, inv.Email, notifyTeamInvite, payload); err != nil {
			s.log.WarnContext(ctx, "invite notification failed", "team_id", t.ID, "email", inv.Email, "err", err)
		}
	}()
}

// Accept adds user to the invite's team and marks the invite accepted. It
// returns false, leaving the invite untouched, unless the invite is pending
// and unexpired.
func (s *TeamService) Accept(ctx context.Context, inv *models.Invite, user *models.User) (bool, error) {
	if inv == nil {
		return false, ErrInviteNotFound
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	now := s.now()
	if inv.Status != models.InvitePending || inv.IsExpired(now) {
		return false, nil
	}
	existing, err := s.store.GetMembership(ctx, inv.TeamID, user.ID)
	if err != nil {
		return false, err
	}
	m := &models.Membership{TeamID: inv.TeamID, UserID: user.ID, Role: models.RoleMember, JoinedAt: now}
	ok, err := s.store.CompleteInvite(ctx, inv.Token, models.InviteAccepted, m)
	if err != nil || !ok {
		return false, err
	}
	inv.Status = models.InviteAccepted
	s.log.InfoContext(ctx, "invite.accepted", "team_id", inv.TeamID, "user_id", user.ID)
	if existing == nil {
		publishTeam(ctx, s.events, s.log, inv.TeamID, events.TypeMemberJoined, map[string]string{"user_id": user.ID})
	}
	return true, nil
}

// Reject marks a pending invite rejected; anything else is a no-op.
func (s *TeamService) Reject(ctx context.Context, inv *models.Invite) (bool, error) {
	if inv == nil {
		return false, ErrInviteNotFound
	}
	if inv.Status != models.InvitePending {
		return false, nil
	}
	ok, err := s.store.CompleteInvite(ctx, inv.Token, models.InviteRejected, nil)
	if err != nil || !ok {
		return false, err
	}
	inv.Status = models.InviteRejected
	s.log.InfoContext(ctx, "invite.rejected", "team_id", inv.TeamID, "email", inv.Email)
	return true, nil
}

func (s *TeamService) inviteForUser(ctx context.Context, token, userID string) (*models.Invite, *models.User, error) {
	inv, err := s.store.GetInvite(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, ErrInviteNotFound
	}
	u, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return inv, u, nil
}

// AcceptInviteByToken accepts the invite on behalf of userID, whose email
// must match the invited address.
func (s *TeamService) AcceptInviteByToken(ctx context.Context, token, userID string) (InviteOutcome, *models.Invite, error) {
	inv, u, err := s.inviteForUser(ctx, token, userID)
	if err != nil {
		return "", nil, err
	}
	switch {
	case inv.Status != models.InvitePending:
		return OutcomeAlreadyProcessed, inv, nil
	case inv.IsExpired(s.now()):
		return OutcomeExpired, inv, nil
	case normalizeEmail(inv.Email) != normalizeEmail(u.Email):
		return OutcomeWrongUser, inv, nil
	}
	ok, err := s.Accept(ctx, inv, u)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return OutcomeAlreadyProcessed, inv, nil
	}
	return OutcomeAccepted, inv, nil
}

func (s *TeamService) RejectInviteByToken(ctx context.Context, token, userID string) (InviteOutcome, *models.Invite, error) {
	inv, u, err := s.inviteForUser(ctx, token, userID)
	if err != nil {
		return "", nil, err
	}
	if normalizeEmail(inv.Email) != normalizeEmail(u.Email) {
		return OutcomeWrongUser, inv, nil
	}
	ok, err := s.Reject(ctx, inv)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return OutcomeAlreadyProcessed, inv, nil
	}
	return OutcomeRejected, inv, nil
}

type PendingInvite struct {
	models.Invite
	TeamName string `json:"team_name"`
}

// PendingInvitesForEmail lists live invitations addressed to email.
func (s *TeamService) PendingInvitesForEmail(ctx context.Context, email string) ([]PendingInvite, error) {
	invites, err := s.store.ListInvitesByEmail(ctx, normalizeEmail(email), models.InvitePending)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []PendingInvite{}
	for _, inv := range invites {
		if inv.IsExpired(now) {
			continue
		}
		t, err := s.store.GetTeam(ctx, inv.TeamID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		out = append(out, PendingInvite{Invite: inv, TeamName: t.Name})
	}
	return out, nil
}
