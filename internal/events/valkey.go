package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"
)

// ValkeyBroker fans events out through valkey PUBLISH/SUBSCRIBE so every
// server instance sees events published by any of them.
type ValkeyBroker struct {
	client valkey.Client
	log    *slog.Logger
}

func NewValkeyBroker(addr string, log *slog.Logger) (*ValkeyBroker, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", addr, err)
	}
	return NewValkeyBrokerWithClient(client, log), nil
}

func NewValkeyBrokerWithClient(client valkey.Client, log *slog.Logger) *ValkeyBroker {
	if log == nil {
		log = slog.Default()
	}
	return &ValkeyBroker{client: client, log: log}
}

func (b *ValkeyBroker) Publish(ctx context.Context, topic string, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	cmd := b.client.B().Publish().Channel(topic).Message(string(body)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe runs a blocking valkey SUBSCRIBE in its own goroutine until ctx
// ends or cancel is called.
func (b *ValkeyBroker) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		cmd := b.client.B().Subscribe().Channel(topic).Build()
		err := b.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Message), &evt); err != nil {
				b.log.Warn("events: undecodable message", "topic", topic, "err", err)
				return
			}
			select {
			case out <- evt:
			default:
				b.log.Warn("events: dropping event for slow subscriber", "topic", topic, "type", evt.Type)
			}
		})
		if err != nil && ctx.Err() == nil {
			b.log.Warn("events: subscription ended", "topic", topic, "err", err)
		}
	}()
	return out, cancel, nil
}

func (b *ValkeyBroker) Close() error {
	b.client.Close()
	return nil
}
