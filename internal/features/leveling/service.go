// Package leveling keeps per-user XP and levels. The formula is the bot's
// long-standing one: level = floor(sqrt(xp/100)).
package leveling

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	apperrors "spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/platform/storage"
)

const (
	levelsCollection = "levels"
	xpCooldown       = 5 * time.Second
	minXPGain        = 5
	maxXPGain        = 15
)

// Profile is one user's persisted leveling state.
type Profile struct {
	UserID string `json:"user_id"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

// LevelFromXP converts accumulated XP to a level.
func LevelFromXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(xp) / 100))
}

// XPForLevel returns the XP threshold of the given level.
func XPForLevel(level int) int {
	return level * level * 100
}

// Notifier announces level-ups, best-effort.
type Notifier interface {
	LevelUp(ctx context.Context, channelID, userID string, level int)
}

type Service struct {
	adapter  storage.Adapter
	notifier Notifier

	mu        sync.Mutex
	lastAward map[string]time.Time
}

func NewService(adapter storage.Adapter, notifier Notifier) *Service {
	return &Service{
		adapter:   adapter,
		notifier:  notifier,
		lastAward: make(map[string]time.Time),
	}
}

// GrantMessageXP awards XP for a message event, subject to a per-user
// cooldown. Returns the user's profile and whether this grant crossed a
// level boundary.
func (s *Service) GrantMessageXP(ctx context.Context, channelID, userID string) (*Profile, bool, error) {
	if userID == "" {
		return nil, false, apperrors.NewValidationError("user_id", "required")
	}

	now := time.Now()
	s.mu.Lock()
	if last, ok := s.lastAward[userID]; ok && now.Sub(last) < xpCooldown {
		s.mu.Unlock()
		profile, err := s.Rank(ctx, userID)
		return profile, false, err
	}
	s.lastAward[userID] = now
	s.mu.Unlock()

	profile := &Profile{UserID: userID}
	err := storage.GetJSON(ctx, s.adapter, levelsCollection, userID, profile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, apperrors.NewStorageError("read profile", err)
	}

	oldLevel := LevelFromXP(profile.XP)
	profile.XP += minXPGain + rand.Intn(maxXPGain-minXPGain+1)
	profile.Level = LevelFromXP(profile.XP)

	if err := storage.PutJSON(ctx, s.adapter, levelsCollection, userID, profile); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("XP grant persisted with degraded write")
	}

	leveledUp := profile.Level > oldLevel
	if leveledUp && channelID != "" {
		s.notifier.LevelUp(ctx, channelID, userID, profile.Level)
	}
	return profile, leveledUp, nil
}

// Rank returns a user's profile; unknown users start at zero.
func (s *Service) Rank(ctx context.Context, userID string) (*Profile, error) {
	profile := &Profile{UserID: userID}
	err := storage.GetJSON(ctx, s.adapter, levelsCollection, userID, profile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewStorageError("read profile", err)
	}
	return profile, nil
}

// Leaderboard returns the top profiles ordered by level, then XP.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Profile, error) {
	records, err := s.adapter.List(ctx, levelsCollection)
	if err != nil {
		return nil, apperrors.NewStorageError("list profiles", err)
	}

	profiles := make([]Profile, 0, len(records))
	for _, rec := range records {
		p := Profile{}
		if err := json.Unmarshal(rec.Data, &p); err != nil {
			continue
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Level != profiles[j].Level {
			return profiles[i].Level > profiles[j].Level
		}
		return profiles[i].XP > profiles[j].XP
	})

	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}
