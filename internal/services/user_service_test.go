package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmoorevt/socialstyles/internal/models"
)

func newUserFixture() (*UserService, *memStore) {
	store := newMemStore()
	store.addUser("admin", "admin@example.com", true)
	store.addUser("alice", "alice@example.com", false)
	store.addUser("bob", "bob@example.com", false)
	return NewUserService(store, nil), store
}

func TestDeleteUserCascades(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()
	_ = store.CreateTeam(ctx, &models.Team{ID: "owned", OwnerID: "alice"}, &models.Membership{TeamID: "owned", UserID: "alice", Role: models.RoleOwner})
	_, _ = store.AddMembership(ctx, &models.Membership{TeamID: "owned", UserID: "bob", Role: models.RoleMember})
	_ = store.AddInvite(ctx, &models.Invite{Token: "i1", TeamID: "owned", Email: "x@example.com", Status: models.InvitePending})
	_ = store.CreateTeam(ctx, &models.Team{ID: "other", OwnerID: "bob"}, &models.Membership{TeamID: "other", UserID: "bob", Role: models.RoleOwner})
	_, _ = store.AddMembership(ctx, &models.Membership{TeamID: "other", UserID: "alice", Role: models.RoleMember})
	_ = store.AddResult(ctx, &models.Result{ID: "r1", UserID: "alice"})
	_ = store.AddResult(ctx, &models.Result{ID: "r2", UserID: "bob"})

	require.NoError(t, svc.DeleteUser(ctx, "admin", "alice"))

	u, _ := store.GetUser(ctx, "alice")
	assert.Nil(t, u)
	r, _ := store.GetResult(ctx, "r1")
	assert.Nil(t, r)
	r, _ = store.GetResult(ctx, "r2")
	assert.NotNil(t, r)
	team, _ := store.GetTeam(ctx, "owned")
	assert.Nil(t, team)
	inv, _ := store.GetInvite(ctx, "i1")
	assert.Nil(t, inv)
	m, _ := store.GetMembership(ctx, "other", "alice")
	assert.Nil(t, m)
	m, _ = store.GetMembership(ctx, "other", "bob")
	assert.NotNil(t, m)
}

func TestDeleteUserGuards(t *testing.T) {
	svc, _ := newUserFixture()
	ctx := context.Background()

	err := svc.DeleteUser(ctx, "admin", "admin")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorForbidden, se.Code)

	err = svc.DeleteUser(ctx, "alice", "bob")
	se, ok = AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorForbidden, se.Code)

	assert.ErrorIs(t, svc.DeleteUser(ctx, "admin", "ghost"), ErrUserNotFound)
}

func TestToggleAdmin(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()

	admin, err := svc.ToggleAdmin(ctx, "admin", "alice")
	require.NoError(t, err)
	assert.True(t, admin)
	assert.True(t, store.users["alice"].IsAdmin)

	admin, err = svc.ToggleAdmin(ctx, "admin", "alice")
	require.NoError(t, err)
	assert.False(t, admin)

	_, err = svc.ToggleAdmin(ctx, "admin", "admin")
	assert.Error(t, err)
	assert.True(t, store.users["admin"].IsAdmin)

	_, err = svc.ToggleAdmin(ctx, "bob", "alice")
	assert.Error(t, err)
}

func TestMakeAdmin(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()

	u, err := svc.MakeAdmin(ctx, " BOB@example.com")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, store.users["bob"].IsAdmin)

	_, err = svc.MakeAdmin(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	ok, err := svc.IsAdmin(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportResults(t *testing.T) {
	svc, store := newUserFixture()
	ctx := context.Background()
	_ = store.AddResult(ctx, &models.Result{ID: "r1", UserID: "alice", SocialStyle: models.StyleDriver, AssertivenessScore: 3, ResponsivenessScore: 2})
	_ = store.AddResult(ctx, &models.Result{ID: "r2", UserID: "alice", SocialStyle: models.StyleExpressive, AssertivenessScore: 3, ResponsivenessScore: 3})

	_, err := svc.ExportResults(ctx, "alice")
	assert.Error(t, err)

	b, err := svc.ExportResults(ctx, "admin")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "alice@example.com")
	assert.Contains(t, lines[2], "EXPRESSIVE")

	_ = store.AddResult(ctx, &models.Result{ID: "r3", UserID: "bob", Responses: models.ResponseSet{"2": 4, "10": 1}})
	_, err = svc.ExportResponses(ctx, "bob")
	assert.Error(t, err)
	b, err = svc.ExportResponses(ctx, "admin")
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "result_id,2,10", lines[0])

	users, err := svc.ListUsers(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, users, 3)
}
