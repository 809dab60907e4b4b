package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
)

// Publisher sends an event to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, evt events.Event) (string, error)
}

// PublishSink forwards every event to an external publisher.
type PublishSink struct {
	publisher Publisher
	topic     string
}

// NewPublishSink builds a PublishSink for topic.
func NewPublishSink(publisher Publisher, topic string) *PublishSink {
	return &PublishSink{publisher: publisher, topic: topic}
}

// Handle publishes evt. Errors are returned to the relay, which logs them.
func (s *PublishSink) Handle(ctx context.Context, evt events.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}
