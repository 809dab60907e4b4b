package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
	"github.com/JakeFAU/keyword-news-collector/internal/news"
	"github.com/JakeFAU/keyword-news-collector/internal/publisher/memory"
)

func collectedEvent() events.Event {
	return events.Event{
		ID:          "evt-1",
		AggregateID: "kw-1",
		OccurredAt:  time.Unix(1700000000, 0).UTC(),
		Type:        events.TypeNewsCollected,
		Version:     events.Version,
		Payload: events.NewsCollected{
			KeywordID: "kw-1",
			Text:      "election",
			Cursor:    4,
			Fetched:   3,
			Inserted:  2,
			Platforms: map[news.Platform]int{news.PlatformNaver: 3, news.PlatformDaum: 0},
		},
	}
}

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Handle(context.Background(), collectedEvent()))
	require.NoError(t, sink.Handle(context.Background(), events.Event{
		Type:    events.TypeKeywordRegistered,
		Payload: events.KeywordRegistered{KeywordID: "kw-2", Text: "budget"},
	}))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.eventsTotal.WithLabelValues(string(events.TypeNewsCollected))), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.itemsInserted.WithLabelValues("election")), 1e-9)
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.platformItems.WithLabelValues(string(news.PlatformNaver))), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.platformItems))
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.keywordsRegistered), 1e-9)
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register event collector")
}

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Handle(context.Background(), collectedEvent()))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "NEWS_COLLECTED", fields["event_type"])
	require.Equal(t, "election", fields["keyword"])
	require.EqualValues(t, 2, fields["inserted"])
}

func TestPublishSinkForwardsEvents(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink := NewPublishSink(pub, "news-events")

	evt := collectedEvent()
	require.NoError(t, sink.Handle(context.Background(), evt))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "news-events", msgs[0].Topic)
	require.Equal(t, evt, msgs[0].Event)
}

func TestPublishSinkWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("topic not found")
	sink := NewPublishSink(failingPublisher{err: boom}, "news-events")

	err := sink.Handle(context.Background(), collectedEvent())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "publish NEWS_COLLECTED")
}

type failingPublisher struct {
	err error
}

func (f failingPublisher) Publish(context.Context, string, events.Event) (string, error) {
	return "", f.err
}
