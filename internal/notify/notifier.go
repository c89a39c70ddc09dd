// Package notify delivers operator notifications to Discord and Telegram.
// Delivery is asynchronous and best effort: messages are queued, dropped when
// the queue is full, and sender failures are logged.
package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Event types used for filtering.
const (
	EventGuard    = "guard"
	EventKill     = "kill_switch"
	EventStrategy = "strategy"
	EventExit     = "exit"
	EventReport   = "report"
	EventSystem   = "system"
	EventError    = "error"
)

const defaultQueueSize = 128

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

type message struct {
	event string
	title string
	body  string
}

// Notifier dispatches notifications to every Sender from a background worker.
// Only events in the allowed set are forwarded; an empty set allows all.
// A nil Notifier discards everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	queue   chan message
	logger  *zap.Logger
}

// NewNotifier creates a notifier for senders. Run must be started to deliver queued messages.
func NewNotifier(senders []Sender, events []string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan message, defaultQueueSize),
		logger:  logger,
	}
}

// Notify queues a message when its event type is allowed. It never blocks.
func (n *Notifier) Notify(event, title, body string) {
	if n == nil || len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("Notification filtered out", zap.String("event", event))
		return
	}

	select {
	case n.queue <- message{event: event, title: title, body: body}:
	default:
		n.logger.Warn("Notification queue full, dropping message",
			zap.String("event", event),
			zap.String("title", title))
	}
}

// Run delivers queued messages until ctx is cancelled, then flushes what is left.
func (n *Notifier) Run(ctx context.Context) error {
	if n == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			n.flush()
			return nil
		case m := <-n.queue:
			n.dispatch(ctx, m)
		}
	}
}

func (n *Notifier) flush() {
	for {
		select {
		case m := <-n.queue:
			n.dispatch(context.Background(), m)
		default:
			return
		}
	}
}

// dispatch sends m to every sender; one failure does not stop delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, m message) {
	for _, s := range n.senders {
		if err := s.Send(ctx, m.title, m.body); err != nil {
			n.logger.Error("Notification sender failed",
				zap.String("sender", s.Name()),
				zap.String("event", m.event),
				zap.Error(err))
			continue
		}
		n.logger.Debug("Notification sent", zap.String("sender", s.Name()), zap.String("title", m.title))
	}
}
