package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
)

// DefaultBufferSize bounds each subscriber channel.
const DefaultBufferSize = 16

// NotificationKind tells subscribers what happened.
type NotificationKind string

const (
	NotifyEvent      NotificationKind = "event"
	NotifyTransition NotificationKind = "transition"
	NotifyOutcome    NotificationKind = "outcome"
)

// Notification is delivered to subscribers of a session.
type Notification struct {
	SessionID  string                  `json:"session_id"`
	Kind       NotificationKind        `json:"kind"`
	Event      *domain.Event           `json:"event,omitempty"`
	Transition *domain.TransitionEvent `json:"transition,omitempty"`
	Outcome    *domain.Outcome         `json:"outcome,omitempty"`
}

// Broadcaster fans session notifications out to subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the notification.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Notification]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with DefaultBufferSize per subscriber.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string]map[chan Notification]struct{}),
		buffer: DefaultBufferSize,
	}
}

// Subscribe returns a channel of notifications for sessionID.
// The channel is closed when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) <-chan Notification {
	ch := make(chan Notification, b.buffer)

	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[chan Notification]struct{})
		b.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[sessionID], ch)
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Subscribers reports how many channels listen on sessionID.
func (b *Broadcaster) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Publish delivers n to the session's subscribers.
func (b *Broadcaster) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[n.SessionID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Hooks publishes every lifecycle callback except condition faults.
func (b *Broadcaster) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, sid string, e domain.Event) {
			b.Publish(Notification{SessionID: sid, Kind: NotifyEvent, Event: &e})
		},
		OnTransition: func(_ context.Context, te *domain.TransitionEvent) {
			b.Publish(Notification{SessionID: te.SessionID, Kind: NotifyTransition, Transition: te})
		},
		OnOutcome: func(_ context.Context, sid string, o domain.Outcome, _ time.Duration) {
			b.Publish(Notification{SessionID: sid, Kind: NotifyOutcome, Outcome: &o})
		},
	}
}
