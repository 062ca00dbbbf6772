package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/platform/storage"
)

// Store is the write-through registry of ACTIVE timed entities. All map
// access happens inside its methods under one mutex; no caller ever holds a
// reference into the maps.
type Store struct {
	mu       sync.Mutex
	entities map[Kind]map[string]*TimedEntity
	adapter  storage.Adapter
}

func NewStore(adapter storage.Adapter) *Store {
	return &Store{
		entities: make(map[Kind]map[string]*TimedEntity),
		adapter:  adapter,
	}
}

func (s *Store) kindMap(kind Kind) map[string]*TimedEntity {
	m, ok := s.entities[kind]
	if !ok {
		m = make(map[string]*TimedEntity)
		s.entities[kind] = m
	}
	return m
}

// Load populates the registry for one kind from the persistence backend.
// A read failure is logged and leaves the kind empty: the engine keeps
// running with no previously active entities rather than refusing to start.
func (s *Store) Load(ctx context.Context, kind Kind) {
	records, err := s.adapter.List(ctx, kind.Collection())
	if err != nil {
		logger.Warn().
			Err(err).
			Str("kind", string(kind)).
			Msg("Failed to load registry, continuing with empty state")
		s.mu.Lock()
		s.entities[kind] = make(map[string]*TimedEntity)
		s.mu.Unlock()
		return
	}

	loaded := make(map[string]*TimedEntity, len(records))
	for _, rec := range records {
		entity := &TimedEntity{}
		if err := entity.decode(rec.Data); err != nil {
			logger.Warn().
				Err(err).
				Str("kind", string(kind)).
				Str("id", rec.ID).
				Msg("Skipping undecodable registry record")
			continue
		}
		if entity.State != StateActive {
			continue
		}
		entity.ID = rec.ID
		entity.Kind = kind
		loaded[rec.ID] = entity
	}

	s.mu.Lock()
	s.entities[kind] = loaded
	s.mu.Unlock()

	logger.Info().
		Str("kind", string(kind)).
		Int("count", len(loaded)).
		Msg("Registry loaded")
}

// Put inserts or updates an entity and writes it through to the backend.
// When the write fails the in-memory value is retained and the returned
// error carries the DEGRADED_WRITE code; callers must not roll back side
// effects that already happened.
func (s *Store) Put(ctx context.Context, entity *TimedEntity) error {
	s.mu.Lock()
	s.kindMap(entity.Kind)[entity.ID] = entity
	s.mu.Unlock()

	if err := storage.PutJSON(ctx, s.adapter, entity.Kind.Collection(), entity.ID, entity); err != nil {
		return apperrors.NewDegradedWriteError(entity.Kind.Collection(), entity.ID, err)
	}
	return nil
}

// ClaimExpired atomically removes and returns every ACTIVE entity of the
// kind whose deadline is at or before now. A concurrent claim for the same
// kind observes an empty result; this is the engine's exactly-once
// primitive. The persisted copies stay in place until CommitClosed, so a
// crash mid-processing resurrects the entity on restart.
func (s *Store) ClaimExpired(kind Kind, now time.Time) []*TimedEntity {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.kindMap(kind)
	var claimed []*TimedEntity
	for id, entity := range m {
		if entity.State == StateActive && entity.Expired(now) {
			claimed = append(claimed, entity)
			delete(m, id)
		}
	}
	return claimed
}

// ClaimOne removes and returns the entity if it is still registered. The
// second return value is false when another caller already claimed it;
// treat that as "already completed", not as an error.
func (s *Store) ClaimOne(kind Kind, id string) (*TimedEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.kindMap(kind)
	entity, ok := m[id]
	if !ok || entity.State != StateActive {
		return nil, false
	}
	delete(m, id)
	return entity, true
}

// Get returns a copy of the entity without claiming it.
func (s *Store) Get(kind Kind, id string) (*TimedEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.kindMap(kind)[id]
	if !ok {
		return nil, false
	}
	clone := *entity
	return &clone, true
}

// Count returns the number of registered entities of the kind.
func (s *Store) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.kindMap(kind))
}

// CommitClosed records the terminal transition of a claimed entity: the
// persisted record is dropped and the entity never re-enters the registry.
// Closed entities are archival, so deletion is the commit.
func (s *Store) CommitClosed(ctx context.Context, entity *TimedEntity) error {
	entity.State = StateClosed

	err := s.adapter.Delete(ctx, entity.Kind.Collection(), entity.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewDegradedWriteError(entity.Kind.Collection(), entity.ID, err)
	}
	return nil
}
