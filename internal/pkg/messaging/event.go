// Package messaging carries domain events between the composite and the
// downstream services. Brokers are reached through the Publisher and
// Subscriber interfaces; kafka and rabbitmq subpackages implement them, and
// Broker is an in-process implementation for tests.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/product-catalog/internal/catalog"
)

type EventType string

const (
	EventCreate EventType = "CREATE"
	EventDelete EventType = "DELETE"
)

// ErrEventProcessing marks an event that can never be applied (unknown type,
// wrong domain, undecodable payload). Subscribers acknowledge and drop it
// instead of redelivering forever.
var ErrEventProcessing = errors.New("event processing failed")

// Event is immutable once published. Key is the product key and doubles as
// the broker partition/routing key, which keeps a DELETE behind its CREATE.
type Event struct {
	ID        string          `json:"eventId"`
	Type      EventType       `json:"eventType"`
	Domain    catalog.Domain  `json:"domain"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"eventCreatedAt"`
}

func NewCreateEvent(domain catalog.Domain, key string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload for %s: %w", domain, key, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      EventCreate,
		Domain:    domain,
		Key:       key,
		Data:      raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func NewDeleteEvent(domain catalog.Domain, key string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventDelete,
		Domain:    domain,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes and validates a broker record body.
func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: decode event: %v", ErrEventProcessing, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (e Event) Validate() error {
	switch e.Type {
	case EventCreate:
		if len(e.Data) == 0 || string(e.Data) == "null" {
			return fmt.Errorf("%w: CREATE %s event for %q carries no data", ErrEventProcessing, e.Domain, e.Key)
		}
	case EventDelete:
	default:
		return fmt.Errorf("%w: incorrect event type %q, expected a CREATE or DELETE event", ErrEventProcessing, e.Type)
	}
	if e.Key == "" {
		return fmt.Errorf("%w: %s event without key", ErrEventProcessing, e.Type)
	}
	return nil
}
