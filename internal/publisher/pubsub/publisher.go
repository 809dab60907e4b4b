// Package pubsub publishes domain events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
)

// Publisher wraps a Pub/Sub topic publisher.
type Publisher struct {
	publisher *pubsub.Publisher
}

// New creates a Publisher for the provided topic publisher. Messages are keyed
// by aggregate id, so ordering is switched on for the topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	if publisher != nil {
		publisher.EnableMessageOrdering = true
	}
	return &Publisher{publisher: publisher}
}

// Publish marshals evt to JSON and publishes it. The event type and id travel
// as attributes so subscribers can filter without decoding the body.
func (p *Publisher) Publish(ctx context.Context, _ string, evt events.Event) (string, error) {
	if p.publisher == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	msg, err := newMessage(ctx, evt)
	if err != nil {
		return "", err
	}
	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		// A failed ordered publish pauses the key until resumed.
		p.publisher.ResumePublish(msg.OrderingKey)
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func newMessage(ctx context.Context, evt events.Event) (*pubsub.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"event_type":   string(evt.Type),
		"event_id":     evt.ID,
		"aggregate_id": evt.AggregateID,
	}
	otel.GetTextMapPropagator().Inject(ctx, &carrier{attrs: attrs})
	return &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: evt.AggregateID}, nil
}

// carrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type carrier struct {
	attrs map[string]string
}

func (c *carrier) Get(key string) string {
	return c.attrs[key]
}

func (c *carrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *carrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
