// Package registry holds the in-memory registry of deadline-bound entities
// and the periodic sweep that discovers the expired ones. It is the only
// place that guarantees an entity transitions from ACTIVE to CLOSED exactly
// once, whether the trigger is a sweep tick or a manual request.
package registry

import (
	"encoding/json"
	"time"
)

// Kind selects which lifecycle handler owns an entity.
type Kind string

const (
	KindGiveaway Kind = "giveaway"
	KindLicense  Kind = "license-binding"
)

// Collection returns the persistence collection backing the kind's active
// registry.
func (k Kind) Collection() string {
	switch k {
	case KindGiveaway:
		return "giveaways"
	case KindLicense:
		return "license_bindings"
	}
	return string(k)
}

// State of a timed entity. There is no persisted intermediate state:
// claiming removes the entity from the in-memory registry, so a concurrent
// claimer observes nothing to process.
type State string

const (
	StateActive State = "ACTIVE"
	StateClosed State = "CLOSED"
)

// TimedEntity is the generic envelope around a kind-specific payload.
type TimedEntity struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Deadline time.Time       `json:"deadline"`
	State    State           `json:"state"`
	Payload  json.RawMessage `json:"payload"`
}

// Expired reports whether the entity is due at the given instant.
func (e *TimedEntity) Expired(now time.Time) bool {
	return !e.Deadline.After(now)
}

func (e *TimedEntity) decode(data []byte) error {
	return json.Unmarshal(data, e)
}

// DecodePayload unmarshals the kind-specific payload into dest.
func (e *TimedEntity) DecodePayload(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}

// NewEntity builds an ACTIVE envelope around the given payload.
func NewEntity(kind Kind, id string, deadline time.Time, payload interface{}) (*TimedEntity, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &TimedEntity{
		ID:       id,
		Kind:     kind,
		Deadline: deadline,
		State:    StateActive,
		Payload:  data,
	}, nil
}
