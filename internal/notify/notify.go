// Package notify delivers user-facing notifications such as team invitations.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
)

const EventTeamInvite = "team.invite"

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, email, eventType string, payload map[string]string) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"email", email, "event", eventType}
	for _, k := range sortedKeys(payload) {
		attrs = append(attrs, k, payload[k])
	}
	log.InfoContext(ctx, "notify", attrs...)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail through an SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

func (n *SMTPNotifier) Notify(_ context.Context, email, eventType string, payload map[string]string) error {
	subject, body := Render(eventType, payload)
	msg := buildMessage(n.cfg.From, email, subject, body)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, []string{email}, msg); err != nil {
		return fmt.Errorf("smtp send %s to %s: %w", eventType, email, err)
	}
	return nil
}

// Render produces the subject and plain-text body for an event.
func Render(eventType string, payload map[string]string) (subject, body string) {
	switch eventType {
	case EventTeamInvite:
		team := payload["team_name"]
		subject = "Invitation to join " + team + " team"
		var b strings.Builder
		fmt.Fprintf(&b, "You have been invited to join the team %q", team)
		if inviter := payload["inviter"]; inviter != "" {
			fmt.Fprintf(&b, " by %s", inviter)
		}
		b.WriteString(".\r\n\r\n")
		if url := payload["accept_url"]; url != "" {
			fmt.Fprintf(&b, "Accept the invitation: %s\r\n", url)
		}
		if exp := payload["expires_at"]; exp != "" {
			fmt.Fprintf(&b, "The invitation expires at %s.\r\n", exp)
		}
		return subject, b.String()
	default:
		var b strings.Builder
		for _, k := range sortedKeys(payload) {
			fmt.Fprintf(&b, "%s: %s\r\n", k, payload[k])
		}
		return eventType, b.String()
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerValue(from) + "\r\n")
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", headerValue(subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return headerBreaks.Replace(v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
