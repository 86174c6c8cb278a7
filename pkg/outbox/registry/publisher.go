package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/angelmondragon/profitlens/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to the aggregate it belongs to and the
// topic it is relayed on.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	// MaxVersion is the newest envelope version this build understands.
	MaxVersion int

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row with its envelope and typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish no matter how often
// it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err. Wrapping twice is a no-op.
func NewNonRetryableError(err error) NonRetryableError {
	var existing NonRetryableError
	if errors.As(err, &existing) {
		return existing
	}
	return NonRetryableError{Err: err}
}

type validator interface {
	Validate() error
}

// keyed payloads carry the id of the aggregate they describe.
type keyed interface {
	AggregateKey() string
}

// Typed builds a descriptor whose payload decodes into T.
func Typed[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, maxVersion int) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		MaxVersion:    maxVersion,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			if v, ok := any(payload).(validator); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return payload, nil
		},
	}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry registers every event the publisher relays.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.FeeChangeTopic)
	if topic == "" {
		return nil, errors.New("fee change topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	if err := reg.Register(Typed[payloads.FeeChangedEvent](enums.EventFeeChanged, enums.AggregatePlatform, topic, 1)); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds desc. Event types may only be registered once.
func (r *EventRegistry) Register(desc EventDescriptor) error {
	switch {
	case desc.decode == nil:
		return fmt.Errorf("descriptor for %q has no payload type", desc.EventType)
	case desc.Topic == "":
		return fmt.Errorf("descriptor for %q has no topic", desc.EventType)
	case desc.MaxVersion < 1:
		return fmt.Errorf("descriptor for %q has no version", desc.EventType)
	}
	if _, dup := r.entries[desc.EventType]; dup {
		return fmt.Errorf("event type %q already registered", desc.EventType)
	}
	r.entries[desc.EventType] = desc
	return nil
}

// Topics lists the distinct topics events are relayed on.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(r.entries))
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		out = append(out, desc.Topic)
	}
	sort.Strings(out)
	return out
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable since the row itself is bad.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	resolved, err := r.resolve(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return resolved, nil
}

func (r *EventRegistry) resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, fmt.Errorf("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	aggregateID := strings.TrimSpace(event.AggregateID)
	if aggregateID == "" {
		return nil, errors.New("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > desc.MaxVersion {
		return nil, fmt.Errorf("%s envelope version %d not supported (max %d)", event.EventType, envelope.Version, desc.MaxVersion)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("payload missing for %s", event.EventType)
	}

	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	if k, ok := payload.(keyed); ok && k.AggregateKey() != aggregateID {
		return nil, fmt.Errorf("%s payload belongs to %q not %q", event.EventType, k.AggregateKey(), aggregateID)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
