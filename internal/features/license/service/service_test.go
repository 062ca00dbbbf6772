package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/features/license/models"
	"spectra-bot-backend/internal/features/registry"
	"spectra-bot-backend/internal/platform/storage"
)

type memAdapter struct {
	mu   sync.Mutex
	data map[string]map[string]json.RawMessage
}

func newMemAdapter() *memAdapter {
	return &memAdapter{data: make(map[string]map[string]json.RawMessage)}
}

func (m *memAdapter) collection(name string) map[string]json.RawMessage {
	c, ok := m.data[name]
	if !ok {
		c = make(map[string]json.RawMessage)
		m.data[name] = c
	}
	return c
}

func (m *memAdapter) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.collection(collection)[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memAdapter) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collection)[id] = data
	return nil
}

func (m *memAdapter) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collection(collection)[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.collection(collection), id)
	return nil
}

func (m *memAdapter) List(ctx context.Context, collection string) ([]storage.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]storage.Record, 0)
	for id, data := range m.collection(collection) {
		records = append(records, storage.Record{ID: id, Data: data})
	}
	return records, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (s *stubNotifier) PremiumDeactivated(ctx context.Context, guildID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, guildID+":"+reason)
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notices)
}

func newTestService() (*Service, *registry.Store, *stubNotifier) {
	store := registry.NewStore(newMemAdapter())
	notifier := &stubNotifier{}
	return NewService(store, newMemAdapter(), notifier), store, notifier
}

func TestGenerateAndBindPermanentKey(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, key)

	cfg, err := svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	assert.True(t, cfg.Active)
	assert.True(t, cfg.Permanent())
	assert.Equal(t, key, cfg.LicenseKey)

	// Permanent keys never get a deadline to sweep.
	assert.Equal(t, 0, store.Count(registry.KindLicense))
}

func TestBindFiniteKeyRegistersEntity(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)

	cfg, err := svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	assert.True(t, cfg.Active)
	assert.False(t, cfg.Permanent())

	entity, ok := store.Get(registry.KindLicense, "guild-1")
	require.True(t, ok)
	assert.WithinDuration(t, cfg.ExpiresAt, entity.Deadline, time.Second)
}

func TestBindUnknownKey(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Bind(context.Background(), "no-such-key", "guild-1")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLicenseNotFound, appErr.Code)
}

func TestBindExpiredKey(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	record := models.LicenseRecord{
		Key:       "stale-key",
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, storage.PutJSON(ctx, svc.adapter, licenseCollection, record.Key, record))

	_, err := svc.Bind(ctx, "stale-key", "guild-1")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLicenseExpired, appErr.Code)
}

func TestBindKeyUsedByAnotherGuild(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)

	_, err = svc.Bind(ctx, key, "guild-2")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeLicenseInUse, appErr.Code)
}

func TestBindSecondKeyWhilePremiumActive(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, first, "guild-1")
	require.NoError(t, err)

	second, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, second, "guild-1")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodePremiumActive, appErr.Code)
}

func TestRebindSameKeySameGuildIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	first, err := svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)

	again, err := svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, first.LicenseKey, again.LicenseKey)
	assert.True(t, again.Active)
	assert.Equal(t, 1, store.Count(registry.KindLicense), "no duplicate timed entity")
}

func TestNaturalExpiryDeactivatesOnce(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Millisecond)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	sweeper := registry.NewSweeper(registry.KindLicense, time.Minute, time.Second, store, svc.Complete, nil)
	sweeper.Tick(time.Now())
	sweeper.Tick(time.Now())

	cfg, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, cfg.Active)
	assert.Equal(t, models.ReasonExpired, cfg.DeactivationReason)
	assert.Equal(t, 1, notifier.count(), "owner notified exactly once")
	assert.Equal(t, 0, store.Count(registry.KindLicense))
}

func TestExtendedBindingIsRearmedNotDeactivated(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Millisecond)
	require.NoError(t, err)
	cfg, err := svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Simulate an extension landing after the deadline was registered.
	cfg.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, storage.PutJSON(ctx, svc.adapter, premiumCollection, "guild-1", cfg))

	sweeper := registry.NewSweeper(registry.KindLicense, time.Minute, time.Second, store, svc.Complete, nil)
	sweeper.Tick(time.Now())

	status, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, 0, notifier.count())

	entity, ok := store.Get(registry.KindLicense, "guild-1")
	require.True(t, ok, "entity re-armed with the extended deadline")
	assert.True(t, entity.Deadline.After(time.Now()))
}

func TestDeleteBoundKeyDeactivatesEntitlement(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, key))

	cfg, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, cfg.Active)
	assert.Equal(t, models.ReasonDeleted, cfg.DeactivationReason)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 0, store.Count(registry.KindLicense))

	_, err = svc.Bind(ctx, key, "guild-1")
	require.Error(t, err, "deleted key cannot be bound again")
}

func TestDeleteUnusedKeyLeavesEntitlementsAlone(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Hour)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, key))

	assert.Equal(t, 0, notifier.count())
	require.Error(t, svc.Delete(ctx, key), "second delete reports not found")
}

func TestStatusUnknownGuildIsInactive(t *testing.T) {
	svc, _, _ := newTestService()

	cfg, err := svc.Status(context.Background(), "guild-unknown")
	require.NoError(t, err)
	assert.False(t, cfg.Active)
	assert.Equal(t, "guild-unknown", cfg.GuildID)
}

func TestStatusReflectsWallClockExpiry(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Millisecond)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Before any sweep runs, the stored flag still says active but the
	// effective answer is already expired.
	cfg, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, cfg.Active)
	assert.False(t, cfg.EffectiveActive(time.Now()))
}

func TestDeleteDefersToInFlightSweep(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, time.Millisecond)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// A sweep has claimed the entity and is mid-flight.
	entity, ok := store.ClaimOne(registry.KindLicense, "guild-1")
	require.True(t, ok)

	require.NoError(t, svc.Delete(ctx, key))

	// The delete lost the claim, so the transition belongs to the sweep.
	cfg, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, cfg.Active, "delete must not deactivate concurrently with the sweep")
	assert.Equal(t, 0, notifier.count())

	require.NoError(t, svc.Complete(ctx, entity))

	cfg, err = svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, cfg.Active)
	assert.Equal(t, models.ReasonExpired, cfg.DeactivationReason)
	assert.Equal(t, 1, notifier.count(), "one transition, one notification")
}

func TestDeletePermanentKeyDeactivatesWithoutEntity(t *testing.T) {
	svc, store, notifier := newTestService()
	ctx := context.Background()

	key, err := svc.Generate(ctx, 0)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, key, "guild-1")
	require.NoError(t, err)
	require.Equal(t, 0, store.Count(registry.KindLicense))

	require.NoError(t, svc.Delete(ctx, key))

	cfg, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.False(t, cfg.Active)
	assert.Equal(t, models.ReasonDeleted, cfg.DeactivationReason)
	assert.Equal(t, 1, notifier.count())
}

func TestSweepClosesStaleEntityAfterPermanentRebind(t *testing.T) {
	regAdapter := newMemAdapter()
	store := registry.NewStore(regAdapter)
	notifier := &stubNotifier{}
	svc := NewService(store, newMemAdapter(), notifier)
	ctx := context.Background()

	short, err := svc.Generate(ctx, time.Millisecond)
	require.NoError(t, err)
	_, err = svc.Bind(ctx, short, "guild-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// The entitlement lapsed on the wall clock, so a permanent key binds
	// cleanly while the old timed entity is still registered.
	permanent, err := svc.Generate(ctx, 0)
	require.NoError(t, err)
	cfg, err := svc.Bind(ctx, permanent, "guild-1")
	require.NoError(t, err)
	require.True(t, cfg.Permanent())

	sweeper := registry.NewSweeper(registry.KindLicense, time.Minute, time.Second, store, svc.Complete, nil)
	sweeper.Tick(time.Now())

	status, err := svc.Status(ctx, "guild-1")
	require.NoError(t, err)
	assert.True(t, status.Active, "permanent binding untouched by the stale entity")
	assert.Equal(t, 0, notifier.count())

	// A restart must not resurrect the closed entity.
	reloaded := registry.NewStore(regAdapter)
	reloaded.Load(ctx, registry.KindLicense)
	assert.Equal(t, 0, reloaded.Count(registry.KindLicense))
}

func TestGenerateProducesDistinctHexKeys(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Generate(ctx, 0)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, 0)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, key := range []string{first, second} {
		assert.Len(t, key, 32)
		_, err := hex.DecodeString(key)
		assert.NoError(t, err)
	}
}

func TestGenerateRejectsNegativeTerm(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Generate(context.Background(), -time.Hour)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.IsValidation())
}
