package service

import (
	"context"
	"errors"
	"time"

	apperrors "spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/features/license/models"
	"spectra-bot-backend/internal/features/registry"
	"spectra-bot-backend/internal/platform/storage"
)

const (
	licenseCollection = "licenses"
	premiumCollection = "premium"
)

// Notifier delivers premium lifecycle notices to the guild owner,
// best-effort.
type Notifier interface {
	PremiumDeactivated(ctx context.Context, guildID, reason string)
}

type Service struct {
	store    *registry.Store
	adapter  storage.Adapter
	notifier Notifier
}

func NewService(store *registry.Store, adapter storage.Adapter, notifier Notifier) *Service {
	return &Service{
		store:    store,
		adapter:  adapter,
		notifier: notifier,
	}
}

// Generate creates an unused license key. A zero term produces a key that
// never expires; otherwise the entitlement runs until now+term.
func (s *Service) Generate(ctx context.Context, term time.Duration) (string, error) {
	if term < 0 {
		return "", apperrors.NewValidationError("term", "must be zero (never expires) or positive")
	}

	key, err := generateKey()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate license key")
	}

	record := models.LicenseRecord{
		Key:       key,
		CreatedAt: time.Now(),
	}
	if term > 0 {
		record.ExpiresAt = time.Now().Add(term)
	}

	if err := storage.PutJSON(ctx, s.adapter, licenseCollection, record.Key, record); err != nil {
		return "", apperrors.NewStorageError("save license", err)
	}

	logger.Info().Str("key", record.Key).Time("expires_at", record.ExpiresAt).Msg("License generated")
	return record.Key, nil
}

// Bind activates a guild's entitlement from a license key. Rebinding the
// same key to the same guild is an idempotent success; every other reuse is
// a conflict.
func (s *Service) Bind(ctx context.Context, key, guildID string) (*models.GuildPremiumConfig, error) {
	if key == "" || guildID == "" {
		return nil, apperrors.NewValidationError("bind", "key and guild_id are required")
	}

	record := models.LicenseRecord{}
	if err := storage.GetJSON(ctx, s.adapter, licenseCollection, key, &record); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewLicenseNotFoundError(key)
		}
		return nil, apperrors.NewStorageError("read license", err)
	}

	now := time.Now()
	if record.Expired(now) {
		return nil, apperrors.New(apperrors.ErrCodeLicenseExpired, "License key has expired").
			WithDetail("key", key)
	}

	if record.IsUsed {
		if record.BoundGuild != guildID {
			return nil, apperrors.New(apperrors.ErrCodeLicenseInUse, "License key is bound to another guild").
				WithDetail("key", key)
		}
		// Idempotent rebind: same key, same guild, nothing to change.
		cfg, err := s.readConfig(ctx, guildID)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	existing, err := s.readConfig(ctx, guildID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.EffectiveActive(now) && existing.LicenseKey != key {
		return nil, apperrors.New(apperrors.ErrCodePremiumActive, "Guild already has an active entitlement").
			WithDetail("guild_id", guildID)
	}

	record.IsUsed = true
	record.BoundGuild = guildID

	cfg := &models.GuildPremiumConfig{
		GuildID:    guildID,
		Active:     true,
		ExpiresAt:  record.ExpiresAt,
		LicenseKey: record.Key,
		UpdatedAt:  now,
	}

	if err := storage.PutJSON(ctx, s.adapter, licenseCollection, record.Key, record); err != nil {
		return nil, apperrors.NewStorageError("save license", err)
	}
	if err := storage.PutJSON(ctx, s.adapter, premiumCollection, guildID, cfg); err != nil {
		return nil, apperrors.NewStorageError("save premium config", err)
	}

	if !record.Permanent() {
		entity, err := registry.NewEntity(registry.KindLicense, guildID, record.ExpiresAt, cfg)
		if err == nil {
			if err := s.store.Put(ctx, entity); err != nil {
				logger.Warn().Err(err).Str("guild_id", guildID).Msg("License binding registered with degraded write")
			}
		}
	}

	logger.Info().
		Str("guild_id", guildID).
		Str("key", key).
		Time("expires_at", cfg.ExpiresAt).
		Msg("License bound")
	return cfg, nil
}

// Complete is the sweep handler for expired license-binding entities. The
// entitlement is re-read before acting, so a binding that was extended or
// already deactivated after the entity was claimed is left alone.
func (s *Service) Complete(ctx context.Context, entity *registry.TimedEntity) error {
	guildID := entity.ID
	now := time.Now()

	cfg, err := s.readConfig(ctx, guildID)
	if err != nil {
		if isNotFound(err) {
			return s.store.CommitClosed(ctx, entity)
		}
		return err
	}
	if !cfg.Active || cfg.Permanent() {
		// The binding moved on since the entity was registered; the claimed
		// entity is stale and must not resurrect on restart.
		return s.store.CommitClosed(ctx, entity)
	}
	if cfg.ExpiresAt.After(now) {
		// Extended since the entity was registered; re-arm the deadline.
		fresh, err := registry.NewEntity(registry.KindLicense, guildID, cfg.ExpiresAt, cfg)
		if err != nil {
			return err
		}
		return s.store.Put(ctx, fresh)
	}

	return s.deactivate(ctx, entity, cfg, models.ReasonExpired)
}

// Delete removes a license key. When the key backs the guild's live
// entitlement, the entitlement is deactivated through the same transition
// path as natural expiry.
func (s *Service) Delete(ctx context.Context, key string) error {
	record := models.LicenseRecord{}
	if err := storage.GetJSON(ctx, s.adapter, licenseCollection, key, &record); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NewLicenseNotFoundError(key)
		}
		return apperrors.NewStorageError("read license", err)
	}

	if err := s.adapter.Delete(ctx, licenseCollection, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewStorageError("delete license", err)
	}

	if record.IsUsed && record.BoundGuild != "" {
		cfg, err := s.readConfig(ctx, record.BoundGuild)
		if err == nil && cfg.Active && cfg.LicenseKey == key {
			if cfg.Permanent() {
				// Permanent bindings never registered a timed entity.
				if err := s.deactivate(ctx, nil, cfg, models.ReasonDeleted); err != nil {
					return err
				}
			} else if entity, ok := s.store.ClaimOne(registry.KindLicense, record.BoundGuild); ok {
				if err := s.deactivate(ctx, entity, cfg, models.ReasonDeleted); err != nil {
					return err
				}
			} else {
				// Lost the claim: a sweep already holds the entity and owns
				// the transition. Performing it here too would notify twice.
				logger.Info().
					Str("guild_id", record.BoundGuild).
					Str("key", key).
					Msg("Entitlement transition deferred to in-flight sweep")
			}
		}
	}

	logger.Info().Str("key", key).Msg("License deleted")
	return nil
}

// Status reports the effective entitlement for a guild. Unknown guilds are
// simply inactive.
func (s *Service) Status(ctx context.Context, guildID string) (*models.GuildPremiumConfig, error) {
	cfg, err := s.readConfig(ctx, guildID)
	if err != nil {
		if isNotFound(err) {
			return &models.GuildPremiumConfig{GuildID: guildID}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// deactivate performs the single terminal transition for an entitlement,
// whether expiry was natural or operator-triggered. The entity argument may
// be nil when no timed entity was pending (permanent keys, or the claim was
// lost).
func (s *Service) deactivate(ctx context.Context, entity *registry.TimedEntity, cfg *models.GuildPremiumConfig, reason string) error {
	cfg.Active = false
	cfg.DeactivationReason = reason
	cfg.UpdatedAt = time.Now()

	if err := storage.PutJSON(ctx, s.adapter, premiumCollection, cfg.GuildID, cfg); err != nil {
		// Memory-side transition stands; report the degraded write.
		logger.Warn().Err(err).Str("guild_id", cfg.GuildID).Msg("Entitlement deactivated with degraded write")
	}

	if entity != nil {
		if err := s.store.CommitClosed(ctx, entity); err != nil {
			logger.Warn().Err(err).Str("guild_id", cfg.GuildID).Msg("License binding closed with degraded write")
		}
	}

	s.notifier.PremiumDeactivated(ctx, cfg.GuildID, reason)

	logger.Info().
		Str("guild_id", cfg.GuildID).
		Str("reason", reason).
		Msg("Entitlement deactivated")
	return nil
}

func (s *Service) readConfig(ctx context.Context, guildID string) (*models.GuildPremiumConfig, error) {
	cfg := &models.GuildPremiumConfig{}
	if err := storage.GetJSON(ctx, s.adapter, premiumCollection, guildID, cfg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("premium config", guildID)
		}
		return nil, apperrors.NewStorageError("read premium config", err)
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.IsNotFound()
}
