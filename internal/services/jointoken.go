package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	joinNonceBytes = 9
	joinSigBytes   = 16
)

// JoinTokens issues and verifies quick-join tokens of the form
// <teamID>.<nonce>.<sig>, all URL safe. sig is a truncated HMAC-SHA256 over
// "<teamID>.<nonce>" keyed with the server secret.
type JoinTokens struct {
	secret []byte
	nonce  func([]byte) error
}

func NewJoinTokens(secret []byte) *JoinTokens {
	return &JoinTokens{
		secret: secret,
		nonce: func(b []byte) error {
			_, err := rand.Read(b)
			return err
		},
	}
}

func (j *JoinTokens) Issue(teamID string) (string, error) {
	if len(j.secret) == 0 {
		return "", errors.New("join tokens: empty secret")
	}
	if teamID == "" || strings.Contains(teamID, ".") {
		return "", NewInvalidError("invalid team id")
	}
	raw := make([]byte, joinNonceBytes)
	if err := j.nonce(raw); err != nil {
		return "", err
	}
	payload := teamID + "." + base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + base64.RawURLEncoding.EncodeToString(j.sign(payload)), nil
}

// Verify returns the team id bound into a token or ErrInvalidJoinToken.
func (j *JoinTokens) Verify(token string) (string, error) {
	if len(j.secret) == 0 {
		return "", ErrInvalidJoinToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", ErrInvalidJoinToken
	}
	if _, err := base64.RawURLEncoding.DecodeString(parts[1]); err != nil {
		return "", ErrInvalidJoinToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidJoinToken
	}
	if !hmac.Equal(sig, j.sign(parts[0]+"."+parts[1])) {
		return "", ErrInvalidJoinToken
	}
	return parts[0], nil
}

func (j *JoinTokens) sign(payload string) []byte {
	mac := hmac.New(sha256.New, j.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)[:joinSigBytes]
}
