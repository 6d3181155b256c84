package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(uid))
	})
}

func TestSignAndParse(t *testing.T) {
	a, err := NewAuth("secret")
	require.NoError(t, err)
	tok, err := a.SignToken("u1", "u1@example.com", time.Hour)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UID)
	assert.Equal(t, "u1@example.com", c.Email)

	other, _ := NewAuth("other")
	_, err = other.Parse(tok)
	assert.Error(t, err)

	expired, _ := a.SignToken("u1", "u1@example.com", -time.Minute)
	_, err = a.Parse(expired)
	assert.Error(t, err)

	_, err = NewAuth(" ")
	assert.Error(t, err)
}

func TestWithAuthAndRequireAuth(t *testing.T) {
	a, _ := NewAuth("secret")
	tok, _ := a.SignToken("u1", "u1@example.com", time.Hour)
	h := a.WithAuth(RequireAuth(whoami()))

	req := httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/teams/t1/events?access_token="+tok, nil))
	assert.Equal(t, "u1", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/teams?access_token="+tok, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query tokens only work for GET")

	for _, path := range []string{"/api/teams", "/api/me/export", "/api/teams/t1/events/x", "/api/teams//events"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path+"?access_token="+tok, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(whoami())

	req := httptest.NewRequest(http.MethodOptions, "/api/teams", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	CORS([]string{"*"})(whoami()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChainHeaders(t *testing.T) {
	h := Chain(whoami(), SecureHeaders, NoStore)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}
