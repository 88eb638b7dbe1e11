package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published on the ride lifecycle topic.
const (
	TypeRideMatched   = "ride.matched"
	TypeOfferAccepted = "offer.accepted"
	TypeOfferDeclined = "offer.declined"
	TypeOfferExpired  = "offer.expired"
	TypeRideCancelled = "ride.cancelled"
)

type RideEvent struct {
	Type      string    `json:"type"`
	RideID    string    `json:"ride_id"`
	CaptainID string    `json:"captain_id,omitempty"`
	OfferID   string    `json:"offer_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher emits ride lifecycle events for downstream consumers. Publishing
// is best-effort; a broker outage must not affect matching correctness.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

// Publish is nil-safe so services can hold an optional publisher.
func (p *Publisher) Publish(ctx context.Context, evt RideEvent) {
	if p == nil || p.writer == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("events: marshal failed: %v", err)
		return
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(evt.RideID),
		Value: b,
	}); err != nil {
		log.Printf("events: publish %s for ride %s failed: %v", evt.Type, evt.RideID, err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
