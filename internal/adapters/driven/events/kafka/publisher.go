// Package kafka publishes newly inserted opportunities to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure Publisher implements the interface.
var _ driven.RecordPublisher = (*Publisher)(nil)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload of one published record.
type Event struct {
	RunID       string    `json:"run_id"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Agency      string    `json:"agency,omitempty"`
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name"`
	PostedDate  string    `json:"posted_date"`
	Type        string    `json:"type,omitempty"`
	Active      bool      `json:"active"`
	Link        string    `json:"link,omitempty"`
	Source      string    `json:"source"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Publisher writes one message per inserted record, keyed by record ID.
type Publisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: false,
	})
}

// NewPublisherWithWriter builds a publisher using a custom writer (tests).
func NewPublisherWithWriter(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, now: time.Now}
}

// Close shuts down the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Publish writes records as a single batch.
func (p *Publisher) Publish(ctx context.Context, runID string, records []domain.Opportunity) error {
	if len(records) == 0 {
		return nil
	}

	ts := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(records))
	for i := range records {
		payload, err := json.Marshal(NewEvent(runID, &records[i]))
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(records[i].ID),
			Value: payload,
			Time:  ts,
		})
	}

	return p.writer.WriteMessages(ctx, msgs...)
}

// NewEvent builds the payload for a record.
func NewEvent(runID string, o *domain.Opportunity) Event {
	return Event{
		RunID:       runID,
		ID:          o.ID,
		Title:       o.Title,
		Agency:      o.Agency,
		CountryCode: o.CountryCode,
		CountryName: o.CountryName,
		PostedDate:  o.PostedDate.Format(time.DateOnly),
		Type:        o.Type,
		Active:      o.Active,
		Link:        o.Link,
		Source:      o.Source,
		FirstSeenAt: o.FirstSeenAt.UTC(),
	}
}
