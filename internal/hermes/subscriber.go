package hermes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectCatalogChanged is published by whatever edits the asana catalog.
const SubjectCatalogChanged = "sadhana.catalog.changed"

// Refresher reloads the catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Subscriber reloads the catalog when Hermes reports a change.
type Subscriber struct {
	client    *Client
	refresher Refresher
	timeout   time.Duration
	logger    *slog.Logger
	subs      []*nats.Subscription
}

// NewSubscriber creates a new Hermes event subscriber.
func NewSubscriber(client *Client, refresher Refresher, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		client:    client,
		refresher: refresher,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// Start begins subscribing to Hermes event subjects.
func (s *Subscriber) Start(ctx context.Context) error {
	subjects := map[string]nats.MsgHandler{
		SubjectCatalogChanged: s.handleCatalogChanged,
	}

	for subject, handler := range subjects {
		// Try JetStream durable consumer first, fall back to core NATS
		sub, err := s.client.js.Subscribe(subject, handler,
			nats.Durable("sadhana-"+sanitizeSubject(subject)),
			nats.DeliverNew(),
			nats.AckExplicit(),
			nats.MaxDeliver(3),
		)
		if err != nil {
			s.logger.Warn("JetStream subscribe failed, using core NATS", "subject", subject, "error", err)
			sub, err = s.client.conn.Subscribe(subject, handler)
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", subject, err)
			}
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("subscribed to Hermes subject", "subject", subject)
	}

	return nil
}

// Stop unsubscribes from all subjects.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}

func (s *Subscriber) handleCatalogChanged(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		// Leave unacked so JetStream redelivers up to MaxDeliver.
		s.logger.Error("catalog refresh from event failed", "error", err, "subject", msg.Subject)
		return
	}
	s.ack(msg)
}

func (s *Subscriber) ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}

func sanitizeSubject(subject string) string {
	r := make([]rune, 0, len(subject))
	for _, c := range subject {
		switch c {
		case '.', '>', '*':
			r = append(r, '-')
		default:
			r = append(r, c)
		}
	}
	return string(r)
}
