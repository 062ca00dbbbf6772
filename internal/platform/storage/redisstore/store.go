// Package redisstore implements the storage adapter on Redis. Each
// collection is one hash keyed by record id, so records stay independently
// addressable without key scans.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"spectra-bot-backend/internal/platform/storage"
)

const keyPrefix = "spectra:"

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func collectionKey(collection string) string {
	return keyPrefix + collection
}

func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	data, err := s.client.HGet(ctx, collectionKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	return s.client.HSet(ctx, collectionKey(collection), id, string(data)).Err()
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	removed, err := s.client.HDel(ctx, collectionKey(collection), id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) ([]storage.Record, error) {
	docs, err := s.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]storage.Record, 0, len(docs))
	for id, data := range docs {
		records = append(records, storage.Record{ID: id, Data: json.RawMessage(data)})
	}
	return records, nil
}
