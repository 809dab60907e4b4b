package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
)

// LogSink emits one structured log line per dispatched event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the handler interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Handle logs the envelope and, for collection events, the counts.
func (s *LogSink) Handle(_ context.Context, evt events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.String("aggregate_id", evt.AggregateID),
		zap.Time("occurred_at", evt.OccurredAt),
	}
	switch p := evt.Payload.(type) {
	case events.NewsCollected:
		fields = append(fields,
			zap.String("keyword", p.Text),
			zap.Int("cursor", p.Cursor),
			zap.Int("fetched", p.Fetched),
			zap.Int("inserted", p.Inserted),
		)
	case events.KeywordRegistered:
		fields = append(fields, zap.String("keyword", p.Text))
	case events.UserKeywordAdded:
		fields = append(fields, zap.String("user_id", p.UserID), zap.String("keyword", p.Text))
	case events.UserKeywordRemoved:
		fields = append(fields, zap.String("user_id", p.UserID), zap.Strings("keywords", p.Texts))
	}
	s.logger.Info("domain event", fields...)
	return nil
}
