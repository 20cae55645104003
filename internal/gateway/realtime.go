package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EventType is the kind of row change carried by a ChangeEvent.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// ChangeEvent describes one committed row change. New holds the row as JSON.
type ChangeEvent struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	New             json.RawMessage `json:"new"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// Decode unmarshals the changed row into v.
func (e ChangeEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.New, v)
}

// Filter scopes a subscription to a table, an event type and optionally a
// column equality such as conversation_id=eq.<id>.
type Filter struct {
	Table  string
	Event  EventType
	Column string
	Value  string
}

func (f Filter) String() string {
	s := fmt.Sprintf("%s:%s", f.Table, f.Event)
	if f.Column != "" {
		s += fmt.Sprintf(":%s=eq.%s", f.Column, f.Value)
	}
	return s
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev ChangeEvent) bool {
	if f.Table != ev.Table {
		return false
	}
	if f.Event != "" && f.Event != EventAll && f.Event != ev.Type {
		return false
	}
	if f.Column == "" {
		return true
	}

	var row map[string]interface{}
	if err := json.Unmarshal(ev.New, &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Handler receives change events for one subscription, in publish order.
type Handler func(ChangeEvent)

// Broker fans committed row changes out to subscribers.
type Broker interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	Subscribe(ctx context.Context, f Filter, h Handler) (*Subscription, error)
	Close() error
}

// Subscription is a live registration. It must be released with Unsubscribe.
type Subscription struct {
	Filter  Filter
	once    sync.Once
	release func()
}

func newSubscription(f Filter, release func()) *Subscription {
	return &Subscription{Filter: f, release: release}
}

// Unsubscribe stops delivery. It is safe to call more than once and on nil.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}
