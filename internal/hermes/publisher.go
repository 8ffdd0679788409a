package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Subjects published by Sadhana.
const (
	SubjectRecommendationGenerated = "sadhana.recommendation.generated"
	SubjectReportDelivered         = "sadhana.report.delivered"
	SubjectCatalogReloaded         = "sadhana.catalog.reloaded"
)

const eventSource = "sadhana"

// publishConn is the slice of *nats.Conn the publisher needs.
type publishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes Sadhana events to Hermes. Events carry counts and ids
// only; health concerns and addresses are never published.
type Publisher struct {
	conn   publishConn
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a new Hermes event publisher.
func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{conn: client.conn, logger: logger, now: time.Now}
}

// Event is the standard event envelope published to Hermes.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func (p *Publisher) publish(_ context.Context, subject string, data any) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      subject,
		Source:    eventSource,
		Timestamp: p.now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	p.logger.Debug("published event", "subject", subject, "id", event.ID)
	return nil
}

// RecommendationGenerated announces a finished recommendation run.
func (p *Publisher) RecommendationGenerated(ctx context.Context, requestID string, matchedBenefits, poses int) error {
	return p.publish(ctx, SubjectRecommendationGenerated, map[string]any{
		"request_id":       requestID,
		"matched_benefits": matchedBenefits,
		"poses":            poses,
	})
}

// ReportDelivered announces a report handed to the delivery channel.
func (p *Publisher) ReportDelivered(ctx context.Context, requestID string, poses int, success bool) error {
	return p.publish(ctx, SubjectReportDelivered, map[string]any{
		"request_id": requestID,
		"poses":      poses,
		"success":    success,
	})
}

// CatalogReloaded announces a catalog swap.
func (p *Publisher) CatalogReloaded(ctx context.Context, poses, benefits int) error {
	return p.publish(ctx, SubjectCatalogReloaded, map[string]any{
		"poses":    poses,
		"benefits": benefits,
	})
}
