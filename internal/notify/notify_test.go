package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvite(t *testing.T) {
	subject, body := Render(EventTeamInvite, map[string]string{
		"team_name":  "Platform",
		"inviter":    "Ada",
		"accept_url": "https://example.com/api/invites/tok/accept",
		"expires_at": "2025-03-08T12:00:00Z",
	})
	assert.Equal(t, "Invitation to join Platform team", subject)
	assert.Contains(t, body, `"Platform" by Ada`)
	assert.Contains(t, body, "https://example.com/api/invites/tok/accept")
	assert.Contains(t, body, "2025-03-08T12:00:00Z")
}

func TestRenderUnknownEvent(t *testing.T) {
	subject, body := Render("other", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "other", subject)
	assert.Equal(t, "a: 1\r\nb: 2\r\n", body)
}

func TestSMTPNotifierSends(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Username: "u", Password: "p", From: "noreply@example.com"})
	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@example.com", from)
		return nil
	}

	err := n.Notify(context.Background(), "bob@example.com", EventTeamInvite, map[string]string{"team_name": "Ops"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:587", gotAddr)
	assert.Equal(t, []string{"bob@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Invitation to join Ops team\r\n")
	assert.Contains(t, string(gotMsg), "To: bob@example.com\r\n")
}

func TestSMTPNotifierKeepsTeamNameInSubject(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", From: "noreply@example.com"})
	var gotMsg []byte
	n.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	err := n.Notify(context.Background(), "bob@example.com", EventTeamInvite, map[string]string{
		"team_name": "Ops\r\nBcc: victim@evil.test\r\nX-Injected: yes",
	})
	require.NoError(t, err)
	msg := string(gotMsg)
	assert.NotContains(t, msg, "\r\nBcc:")
	assert.NotContains(t, msg, "\r\nX-Injected:")
	assert.Contains(t, msg, "Subject: Invitation to join Ops Bcc: victim@evil.test X-Injected: yes team\r\n")

	header, _, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Len(t, strings.Split(header, "\r\n"), 5)
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage("a@example.com", "b@example.com", "Invitation to join Équipe team", "hi"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "Équipe")
}

func TestSMTPNotifierWrapsError(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "mail.local", Port: 25, From: "x@example.com"})
	boom := errors.New("connection refused")
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Nil(t, a)
		return boom
	}
	err := n.Notify(context.Background(), "bob@example.com", EventTeamInvite, nil)
	assert.ErrorIs(t, err, boom)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Log: slog.New(slog.NewTextHandler(&buf, nil))}
	require.NoError(t, n.Notify(context.Background(), "bob@example.com", EventTeamInvite, map[string]string{"team_name": "Ops"}))
	assert.Contains(t, buf.String(), "email=bob@example.com")
	assert.Contains(t, buf.String(), "team_name=Ops")
}
