package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gmoorevt/socialstyles/internal/models"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72
	guestDomain    = "socialstyles.invalid"
)

type AuthStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddUser(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func(n int) string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string       `json:"token"`
	UserID string       `json:"user_id"`
	User   *models.User `json:"user"`
}

func NewAuthService(store AuthStore, signer TokenSigner, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     shortID,
		signToken: signer,
		tokenTTL:  tokenTTL,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if !validEmail(email) {
		return nil, NewInvalidError("invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, NewInvalidError("password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return nil, NewInvalidError("password too long")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: s.idGen(8), Email: email, Name: strings.TrimSpace(name), PassHash: hash, CreatedAt: s.now()}
	if err := s.store.AddUser(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.IsGuest {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	now := s.now()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now
	return s.issue(u)
}

// IssueToken signs a session token for an existing user.
func (s *AuthService) IssueToken(u *models.User) (*AuthResult, error) {
	if u == nil {
		return nil, ErrUserNotFound
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, UserID: u.ID, User: u}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// newGuestUser builds a guest with a synthetic unique email and a random
// password hash nobody knows.
func newGuestUser(name, id string, now time.Time) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewInvalidError("guest name required")
	}
	if len(name) > 64 {
		return nil, NewInvalidError("guest name too long")
	}
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:        id,
		Email:     "guest+" + id + "@" + guestDomain,
		Name:      name,
		PassHash:  hash,
		IsGuest:   true,
		CreatedAt: now,
	}, nil
}
