package events

import (
	"context"
	"log/slog"
	"sync"
)

const subscriberBuffer = 16

// MemoryBroker is the in-process broker used when no valkey address is set.
// A subscriber whose buffer is full misses the event instead of blocking
// the publisher.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
	log    *slog.Logger
}

type memorySub struct {
	ch   chan Event
	once sync.Once
}

func (s *memorySub) close() { s.once.Do(func() { close(s.ch) }) }

func NewMemoryBroker(log *slog.Logger) *MemoryBroker {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBroker{subs: map[string]map[*memorySub]struct{}{}, log: log}
}

func (b *MemoryBroker) Publish(_ context.Context, topic string, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- evt:
		default:
			b.log.Warn("events: dropping event for slow subscriber", "topic", topic, "type", evt.Type)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrClosed
	}
	sub := &memorySub{ch: make(chan Event, subscriberBuffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = map[*memorySub]struct{}{}
	}
	b.subs[topic][sub] = struct{}{}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			delete(b.subs[topic], sub)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return sub.ch, cancel, nil
}

// Subscribers reports how many subscribers a topic has.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for sub := range subs {
			sub.close()
		}
		delete(b.subs, topic)
	}
	return nil
}
