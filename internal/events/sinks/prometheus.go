package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/keyword-news-collector/internal/events"
)

// PrometheusSink counts dispatched events and the items they report.
type PrometheusSink struct {
	eventsTotal        *prometheus.CounterVec
	itemsInserted      *prometheus.CounterVec
	platformItems      *prometheus.CounterVec
	keywordsRegistered prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_events_total",
			Help: "Domain events dispatched partitioned by type.",
		}, []string{"type"}),
		itemsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_event_items_inserted_total",
			Help: "Items newly stored as reported by NEWS_COLLECTED events.",
		}, []string{"keyword"}),
		platformItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsfeed_event_platform_items_total",
			Help: "Items fetched per platform as reported by NEWS_COLLECTED events.",
		}, []string{"platform"}),
		keywordsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsfeed_keywords_registered_total",
			Help: "Keywords registered since process start.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.eventsTotal,
		s.itemsInserted,
		s.platformItems,
		s.keywordsRegistered,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Handle updates the collectors for one event.
func (s *PrometheusSink) Handle(_ context.Context, evt events.Event) error {
	s.eventsTotal.WithLabelValues(string(evt.Type)).Inc()
	switch p := evt.Payload.(type) {
	case events.NewsCollected:
		if p.Inserted > 0 {
			s.itemsInserted.WithLabelValues(p.Text).Add(float64(p.Inserted))
		}
		for platform, n := range p.Platforms {
			if n > 0 {
				s.platformItems.WithLabelValues(string(platform)).Add(float64(n))
			}
		}
	case events.KeywordRegistered:
		s.keywordsRegistered.Inc()
	}
	return nil
}
