// Package events fans team activity out to live dashboard viewers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types published on a team topic.
const (
	TypeResultCreated = "result.created"
	TypeMemberJoined  = "member.joined"
	TypeMemberLeft    = "member.left"
	TypeTeamDeleted   = "team.deleted"
)

var ErrClosed = errors.New("events: broker closed")

type Event struct {
	Type    string          `json:"type"`
	TeamID  string          `json:"team_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// New builds an event, marshalling payload to JSON.
func New(typ, teamID string, payload any) (Event, error) {
	evt := Event{Type: typ, TeamID: teamID, At: time.Now().UTC()}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		evt.Payload = b
	}
	return evt, nil
}

// TeamTopic is the topic that carries one team's events.
func TeamTopic(teamID string) string {
	return "socialstyles:team:" + teamID
}

type Publisher interface {
	Publish(ctx context.Context, topic string, evt Event) error
}

// Broker delivers published events to every current subscriber of a topic.
// The returned cancel func unsubscribes and closes the channel.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)
	Close() error
}
