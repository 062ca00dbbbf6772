// Package storage defines the persistence adapter used by every registry in
// the engine. Records are opaque JSON documents addressed by collection and
// id; no caller encodes storage format.
package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when the collection has no record with the
// requested id.
var ErrNotFound = errors.New("storage: record not found")

// Record is one (id, document) pair as returned by List.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Adapter is the uniform persistence contract. Exactly one implementation is
// selected at startup; business code never knows which.
type Adapter interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Put(ctx context.Context, collection, id string, data json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Record, error)
}

// GetJSON fetches a record and unmarshals it into dest.
func GetJSON(ctx context.Context, a Adapter, collection, id string, dest interface{}) error {
	data, err := a.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// PutJSON marshals value and stores it under (collection, id).
func PutJSON(ctx context.Context, a Adapter, collection, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return a.Put(ctx, collection, id, data)
}
