package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmoorevt/socialstyles/internal/models"
	"github.com/gmoorevt/socialstyles/internal/services"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	n, err := RunMigrations(db, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	s, err := NewSQLiteStore(db, nil)
	require.NoError(t, err)
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, id string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: id + "@example.com", Name: id, PassHash: []byte("hash"), CreatedAt: base}
	require.NoError(t, s.AddUser(context.Background(), u))
	return u
}

func seedTeam(t *testing.T, s *SQLiteStore, id, owner string) {
	t.Helper()
	require.NoError(t, s.CreateTeam(context.Background(),
		&models.Team{ID: id, Name: "Team " + id, OwnerID: owner, CreatedAt: base},
		&models.Membership{TeamID: id, UserID: owner, Role: models.RoleOwner, JoinedAt: base}))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	n, err := RunMigrations(s.db, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = RollbackMigrations(s.db, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = RunMigrations(s.db, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUsersRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice")

	err := s.AddUser(ctx, &models.User{ID: "other", Email: "alice@example.com", PassHash: []byte("x"), CreatedAt: base})
	se, ok := services.AsServiceError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, services.ErrorConflict, se.Code)

	u, err := s.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.ID)
	assert.Equal(t, []byte("hash"), u.PassHash)
	assert.True(t, base.Equal(u.CreatedAt))
	assert.Nil(t, u.LastLogin)

	require.NoError(t, s.TouchLastLogin(ctx, "alice", base.Add(time.Minute)))
	require.NoError(t, s.SetAdmin(ctx, "alice", true))
	u, err = s.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.True(t, base.Add(time.Minute).Equal(*u.LastLogin))
	assert.True(t, u.IsAdmin)

	missing, err := s.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, s.SetAdmin(ctx, "nobody", true), services.ErrUserNotFound)
}

func TestMembershipUniqueAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"owner", "carol", "alice"} {
		seedUser(t, s, id)
	}
	seedTeam(t, s, "t1", "owner")

	added, err := s.AddMembership(ctx, &models.Membership{TeamID: "t1", UserID: "carol", Role: models.RoleMember, JoinedAt: base})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.AddMembership(ctx, &models.Membership{TeamID: "t1", UserID: "alice", Role: models.RoleMember, JoinedAt: base})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.AddMembership(ctx, &models.Membership{TeamID: "t1", UserID: "carol", Role: models.RoleMember, JoinedAt: base})
	require.NoError(t, err)
	assert.False(t, added)

	ms, err := s.ListMemberships(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, []string{"owner", "carol", "alice"}, []string{ms[0].UserID, ms[1].UserID, ms[2].UserID})
	assert.Equal(t, models.RoleOwner, ms[0].Role)

	removed, err := s.RemoveMembership(ctx, "t1", "carol")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.RemoveMembership(ctx, "t1", "carol")
	require.NoError(t, err)
	assert.False(t, removed)

	teams, err := s.ListTeamsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "Team t1", teams[0].Name)
}

func TestConcurrentAddMembershipInsertsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner")
	seedUser(t, s, "alice")
	seedTeam(t, s, "t1", "owner")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AddMembership(ctx, &models.Membership{TeamID: "t1", UserID: "alice", Role: models.RoleMember, JoinedAt: base})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	ms, _ := s.ListMemberships(ctx, "t1")
	assert.Len(t, ms, 2)
}

func TestCompleteInviteIsCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner")
	seedUser(t, s, "bob")
	seedTeam(t, s, "t1", "owner")
	inv := &models.Invite{Token: "tok", TeamID: "t1", Email: "bob@example.com", Status: models.InvitePending, CreatedAt: base, ExpiresAt: base.Add(7 * 24 * time.Hour)}
	require.NoError(t, s.AddInvite(ctx, inv))

	m := &models.Membership{TeamID: "t1", UserID: "bob", Role: models.RoleMember, JoinedAt: base}
	ok, err := s.CompleteInvite(ctx, "tok", models.InviteAccepted, m)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.CompleteInvite(ctx, "tok", models.InviteRejected, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetInvite(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.InviteAccepted, got.Status)
	assert.True(t, inv.ExpiresAt.Equal(got.ExpiresAt))
	member, _ := s.GetMembership(ctx, "t1", "bob")
	assert.NotNil(t, member)

	pending, err := s.ListInvites(ctx, "t1", models.InvitePending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	all, err := s.ListInvites(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	byEmail, err := s.ListInvitesByEmail(ctx, "bob@example.com", models.InviteAccepted)
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)
}

func TestAssessmentsAndResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "alice")
	qs := []models.Question{{ID: 1, Text: "q1", Category: models.CategoryAssertiveness, Format: models.FormatLikert}}
	require.NoError(t, s.ActivateAssessment(ctx, &models.Assessment{ID: "a1", Name: "v1", Questions: qs, ScaleMax: 4, CreatedAt: base}))
	require.NoError(t, s.ActivateAssessment(ctx, &models.Assessment{ID: "a2", Name: "v2", Questions: qs, ScaleMax: 5, CreatedAt: base.Add(time.Hour)}))

	active, err := s.ActiveAssessment(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "a2", active.ID)
	assert.Equal(t, 5, active.ScaleMax)
	assert.Equal(t, qs, active.Questions)

	all, err := s.ListAssessments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[0].Active)

	require.NoError(t, s.SetAssessmentActive(ctx, "a2", false))
	active, err = s.ActiveAssessment(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.ErrorIs(t, s.SetAssessmentActive(ctx, "nope", true), services.ErrAssessmentNotFound)

	for i, id := range []string{"r1", "r2", "r3"} {
		created := base
		if i == 1 {
			created = base.Add(-time.Hour)
		}
		require.NoError(t, s.AddResult(ctx, &models.Result{
			ID: id, UserID: "alice", AssessmentID: "a1", Responses: models.ResponseSet{"1": i + 1},
			AssertivenessScore: 2.5, ResponsivenessScore: 1.25, SocialStyle: models.StyleDriver, CreatedAt: created,
		}))
	}
	latest, err := s.LatestResultForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID, "ties on created_at go to the later insert")
	assert.Equal(t, models.ResponseSet{"1": 3}, latest.Responses)

	list, err := s.ListResultsForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r1", "r2"}, []string{list[0].ID, list[1].ID, list[2].ID})

	none, err := s.LatestResultForUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeleteUserCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		seedUser(t, s, id)
	}
	require.NoError(t, s.ActivateAssessment(ctx, &models.Assessment{ID: "a1", Name: "v1", ScaleMax: 4, CreatedAt: base}))
	seedTeam(t, s, "owned", "alice")
	seedTeam(t, s, "other", "bob")
	_, err := s.AddMembership(ctx, &models.Membership{TeamID: "owned", UserID: "bob", Role: models.RoleMember, JoinedAt: base})
	require.NoError(t, err)
	_, err = s.AddMembership(ctx, &models.Membership{TeamID: "other", UserID: "alice", Role: models.RoleMember, JoinedAt: base})
	require.NoError(t, err)
	require.NoError(t, s.AddInvite(ctx, &models.Invite{Token: "i1", TeamID: "owned", Email: "x@example.com", Status: models.InvitePending, CreatedAt: base, ExpiresAt: base}))
	require.NoError(t, s.AddResult(ctx, &models.Result{ID: "r1", UserID: "alice", AssessmentID: "a1", SocialStyle: models.StyleAmiable, CreatedAt: base}))

	require.NoError(t, s.DeleteUserCascade(ctx, "alice"))

	u, _ := s.GetUser(ctx, "alice")
	assert.Nil(t, u)
	r, _ := s.GetResult(ctx, "r1")
	assert.Nil(t, r)
	team, _ := s.GetTeam(ctx, "owned")
	assert.Nil(t, team)
	inv, _ := s.GetInvite(ctx, "i1")
	assert.Nil(t, inv)
	ms, _ := s.ListMemberships(ctx, "other")
	require.Len(t, ms, 1)
	assert.Equal(t, "bob", ms[0].UserID)
	teams, _ := s.ListTeamsForUser(ctx, "bob")
	assert.Len(t, teams, 1)
}

func TestDeleteTeamRemovesChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "owner")
	seedTeam(t, s, "t1", "owner")
	require.NoError(t, s.AddInvite(ctx, &models.Invite{Token: "i1", TeamID: "t1", Email: "x@example.com", Status: models.InvitePending, CreatedAt: base, ExpiresAt: base}))

	require.NoError(t, s.DeleteTeam(ctx, "t1"))
	team, _ := s.GetTeam(ctx, "t1")
	assert.Nil(t, team)
	ms, _ := s.ListMemberships(ctx, "t1")
	assert.Empty(t, ms)
	inv, _ := s.GetInvite(ctx, "i1")
	assert.Nil(t, inv)
}

func TestStoreSatisfiesServices(t *testing.T) {
	s := newTestStore(t)
	var (
		_ services.TeamStore       = s
		_ services.AuthStore       = s
		_ services.AssessmentStore = s
		_ services.UserStore       = s
	)
}
