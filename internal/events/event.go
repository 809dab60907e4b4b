// Package events defines domain events and the relay that dispatches them
// after the originating transaction commits.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/keyword-news-collector/internal/news"
)

// Type names a domain event.
type Type string

// Supported event types.
const (
	TypeUserRegistered       Type = "USER_REGISTERED"
	TypeUserKeywordAdded     Type = "USER_KEYWORD_ADDED"
	TypeUserKeywordRemoved   Type = "USER_KEYWORD_REMOVED"
	TypeUserKeywordActivated Type = "USER_KEYWORD_ACTIVATED"
	TypeKeywordRegistered    Type = "KEYWORD_REGISTERED"
	TypeNewsCollected        Type = "NEWS_COLLECTED"
)

// Version is the schema version stamped on every event.
const Version = 1

// Event is an immutable record of a state change on one aggregate.
type Event struct {
	ID          string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        Type      `json:"type"`
	Version     int       `json:"version"`
	Payload     any       `json:"payload"`
}

// Validate performs coarse validation on Event envelopes.
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.AggregateID == "" {
		return errors.New("aggregate id is required")
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred at is required")
	}
	switch e.Type {
	case TypeUserRegistered, TypeUserKeywordAdded, TypeUserKeywordRemoved,
		TypeUserKeywordActivated, TypeKeywordRegistered, TypeNewsCollected:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// UserRegistered is raised when a user is created.
type UserRegistered struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// UserKeywordAdded is raised once per keyword text a user subscribes to.
type UserKeywordAdded struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// UserKeywordRemoved lists the texts a user unsubscribed from in one change.
type UserKeywordRemoved struct {
	UserID string   `json:"user_id"`
	Texts  []string `json:"texts"`
}

// UserKeywordActivated records a toggle of a subscription's active flag.
type UserKeywordActivated struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// KeywordRegistered is raised when a new collection keyword is stored.
type KeywordRegistered struct {
	KeywordID string `json:"keyword_id"`
	Text      string `json:"text"`
}

// NewsCollected summarizes one committed collection cycle.
type NewsCollected struct {
	KeywordID string                `json:"keyword_id"`
	Text      string                `json:"text"`
	Cursor    int                   `json:"cursor"`
	Fetched   int                   `json:"fetched"`
	Inserted  int                   `json:"inserted"`
	Platforms map[news.Platform]int `json:"platforms"`
}

// Factory stamps ids and timestamps onto new events.
type Factory struct {
	ids   news.IDGenerator
	clock news.Clock
}

// NewFactory builds a Factory.
func NewFactory(ids news.IDGenerator, clock news.Clock) Factory {
	return Factory{ids: ids, clock: clock}
}

// New creates an event for aggregateID.
func (f Factory) New(aggregateID string, eventType Type, payload any) (Event, error) {
	if f.ids == nil || f.clock == nil {
		return Event{}, errors.New("event factory is not configured")
	}
	id, err := f.ids.NewID()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}
	evt := Event{
		ID:          id,
		AggregateID: aggregateID,
		OccurredAt:  f.clock.Now(),
		Type:        eventType,
		Version:     Version,
		Payload:     payload,
	}
	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}
