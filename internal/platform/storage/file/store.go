// Package file implements the storage adapter on top of one JSON document
// per collection. Collections are small, so every mutation rewrites the
// whole document; the write goes through a temp file and rename so a crash
// never leaves a half-written collection behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"spectra-bot-backend/internal/platform/storage"
)

type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *Store) readCollection(collection string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(collection))
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	docs := map[string]json.RawMessage{}
	if len(data) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) writeCollection(collection string, docs map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(collection))
}

func (s *Store) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readCollection(collection)
	if err != nil {
		return nil, err
	}
	data, ok := docs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readCollection(collection)
	if err != nil {
		return err
	}
	docs[id] = data
	return s.writeCollection(collection, docs)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readCollection(collection)
	if err != nil {
		return err
	}
	if _, ok := docs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(docs, id)
	return s.writeCollection(collection, docs)
}

func (s *Store) List(ctx context.Context, collection string) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.readCollection(collection)
	if err != nil {
		return nil, err
	}
	records := make([]storage.Record, 0, len(docs))
	for id, data := range docs {
		records = append(records, storage.Record{ID: id, Data: data})
	}
	return records, nil
}
