package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/features/giveaway/models"
	"spectra-bot-backend/internal/features/registry"
	"spectra-bot-backend/internal/platform/discord"
	"spectra-bot-backend/internal/platform/storage"
	"spectra-bot-backend/internal/utils/random"
)

const configCollection = "config"

// ChatClient is the slice of the Discord client the giveaway lifecycle
// needs.
type ChatClient interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (*discord.Message, error)
	FetchReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]discord.User, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
}

// Notifier delivers human-readable outcomes. All methods are best-effort;
// the lifecycle never fails because a notification did not go out.
type Notifier interface {
	GiveawayStarted(ctx context.Context, channelID, prize, hostID string, deadline time.Time) (*discord.Message, error)
	GiveawayCompleted(ctx context.Context, channelID, prize string, winners []models.Winner)
	GiveawayNoEntrants(ctx context.Context, channelID, prize string)
}

type Service struct {
	store    *registry.Store
	adapter  storage.Adapter
	chat     ChatClient
	notifier Notifier
	marker   string
}

func NewService(store *registry.Store, adapter storage.Adapter, chat ChatClient, notifier Notifier, marker string) *Service {
	return &Service{
		store:    store,
		adapter:  adapter,
		chat:     chat,
		notifier: notifier,
		marker:   marker,
	}
}

// StartRequest describes a new giveaway.
type StartRequest struct {
	GuildID      string        `json:"guild_id"`
	ChannelID    string        `json:"channel_id"`
	Prize        string        `json:"prize"`
	HostID       string        `json:"host_id"`
	WinnersCount int           `json:"winners_count"`
	Duration     time.Duration `json:"duration"`
}

// Start announces a new giveaway and registers its timed entity. The
// announcement goes to the guild's configured giveaway channel when one is
// set, falling back to the requesting channel.
//
// When the write-through fails the giveaway still runs from memory; the id
// is returned together with the DEGRADED_WRITE error so the caller can
// report the condition instead of swallowing it.
func (s *Service) Start(ctx context.Context, req StartRequest) (string, error) {
	payload := models.Payload{
		Prize:        req.Prize,
		ChannelID:    s.resolveChannel(ctx, req.GuildID, req.ChannelID),
		HostID:       req.HostID,
		WinnersCount: req.WinnersCount,
		CreatedAt:    time.Now(),
	}
	if err := payload.Validate(); err != nil {
		return "", apperrors.NewValidationError("giveaway", err.Error())
	}
	if req.Duration <= 0 {
		return "", apperrors.NewValidationError("duration", "must be positive")
	}

	deadline := time.Now().Add(req.Duration)

	msg, err := s.notifier.GiveawayStarted(ctx, payload.ChannelID, payload.Prize, payload.HostID, deadline)
	if err != nil {
		return "", apperrors.NewDiscordAPIError("announce giveaway", err)
	}
	payload.MessageID = msg.ID

	id := uuid.New().String()
	entity, err := registry.NewEntity(registry.KindGiveaway, id, deadline, payload)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode giveaway payload")
	}

	putErr := s.store.Put(ctx, entity)
	if putErr != nil {
		// The announcement is already out; keep the giveaway running from
		// memory and hand the degraded write back with the id.
		logger.Warn().Err(putErr).Str("giveaway_id", id).Msg("Giveaway registered with degraded write")
	}

	logger.Info().
		Str("giveaway_id", id).
		Str("channel_id", payload.ChannelID).
		Str("prize", payload.Prize).
		Time("deadline", deadline).
		Msg("Giveaway started")
	return id, putErr
}

// EndNow completes a giveaway ahead of its deadline. When the claim loses
// to a concurrent sweep (or the id never existed) the caller gets
// ALREADY_COMPLETED and no side effect is repeated.
func (s *Service) EndNow(ctx context.Context, id string) (*models.Outcome, error) {
	entity, ok := s.store.ClaimOne(registry.KindGiveaway, id)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeAlreadyCompleted,
			fmt.Sprintf("Giveaway %s is not active or does not exist", id))
	}
	return s.complete(ctx, entity)
}

// Complete is the sweep handler for expired giveaway entities.
func (s *Service) Complete(ctx context.Context, entity *registry.TimedEntity) error {
	_, err := s.complete(ctx, entity)
	return err
}

// complete runs the terminal transition for a claimed entity. The entity is
// always closed, even when the announcement message is gone; a stuck ACTIVE
// entity is worse than a missing announcement.
func (s *Service) complete(ctx context.Context, entity *registry.TimedEntity) (*models.Outcome, error) {
	payload := models.Payload{}
	if err := entity.DecodePayload(&payload); err != nil {
		logger.Warn().Err(err).Str("giveaway_id", entity.ID).Msg("Closing giveaway with undecodable payload")
		return nil, s.store.CommitClosed(ctx, entity)
	}

	outcome := &models.Outcome{GiveawayID: entity.ID, Prize: payload.Prize}

	if _, err := s.chat.FetchMessage(ctx, payload.ChannelID, payload.MessageID); err != nil {
		logger.Warn().
			Err(err).
			Str("giveaway_id", entity.ID).
			Str("message_id", payload.MessageID).
			Msg("Announcement message unresolvable, closing giveaway without a draw")
		outcome.NoEntrants = true
		return outcome, s.store.CommitClosed(ctx, entity)
	}

	participants, err := s.collectParticipants(ctx, payload)
	if err != nil {
		// Entrants may well exist; close quietly rather than announce a
		// draw that never happened.
		logger.Warn().
			Err(err).
			Str("giveaway_id", entity.ID).
			Msg("Failed to collect participants, closing giveaway without a draw")
		outcome.NoEntrants = true
		return outcome, s.store.CommitClosed(ctx, entity)
	}

	if len(participants) == 0 {
		outcome.NoEntrants = true
		s.notifier.GiveawayNoEntrants(ctx, payload.ChannelID, payload.Prize)
	} else {
		winners, err := pickWinners(participants, payload.WinnersCount)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to draw winners")
		}
		outcome.Winners = winners
		s.notifier.GiveawayCompleted(ctx, payload.ChannelID, payload.Prize, winners)
	}

	s.editClosedAnnouncement(ctx, payload, outcome)

	if err := s.store.CommitClosed(ctx, entity); err != nil {
		logger.Warn().Err(err).Str("giveaway_id", entity.ID).Msg("Giveaway closed with degraded write")
		return outcome, err
	}

	logger.Info().
		Str("giveaway_id", entity.ID).
		Int("winners", len(outcome.Winners)).
		Bool("no_entrants", outcome.NoEntrants).
		Msg("Giveaway completed")
	return outcome, nil
}

// collectParticipants returns the distinct non-bot users who reacted with
// the marker.
func (s *Service) collectParticipants(ctx context.Context, payload models.Payload) ([]models.Winner, error) {
	users, err := s.chat.FetchReactionUsers(ctx, payload.ChannelID, payload.MessageID, s.marker)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(users))
	participants := make([]models.Winner, 0, len(users))
	for _, u := range users {
		if u.Bot || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		participants = append(participants, models.Winner{UserID: u.ID, Username: u.Username})
	}
	return participants, nil
}

// pickWinners draws min(n, len(participants)) winners uniformly without
// replacement.
func pickWinners(participants []models.Winner, n int) ([]models.Winner, error) {
	return random.PickN(participants, n)
}

// editClosedAnnouncement updates the original message to its closed form.
// Edit failures are non-fatal.
func (s *Service) editClosedAnnouncement(ctx context.Context, payload models.Payload, outcome *models.Outcome) {
	var content string
	if outcome.NoEntrants {
		content = fmt.Sprintf("🎉 GIVEAWAY ENDED: %s (No Winner) 🎉\nNo valid winner was found.", payload.Prize)
	} else {
		content = fmt.Sprintf("🎉 GIVEAWAY ENDED: %s 🎉\n%s", payload.Prize, winnerMentions(outcome.Winners))
	}
	if err := s.chat.EditMessage(ctx, payload.ChannelID, payload.MessageID, content); err != nil {
		logger.Warn().Err(err).Str("giveaway_id", outcome.GiveawayID).Msg("Failed to edit closed announcement")
	}
}

func winnerMentions(winners []models.Winner) string {
	mentions := ""
	for i, w := range winners {
		if i > 0 {
			mentions += ", "
		}
		mentions += fmt.Sprintf("<@%s>", w.UserID)
	}
	return "Winners: " + mentions
}

// SetGiveawayChannel stores the guild's dedicated announcement channel.
func (s *Service) SetGiveawayChannel(ctx context.Context, guildID, channelID string) error {
	if guildID == "" || channelID == "" {
		return apperrors.NewValidationError("guild_config", "guild_id and channel_id are required")
	}
	cfg := models.GuildConfig{GuildID: guildID, GiveawayChannelID: channelID}
	if err := storage.PutJSON(ctx, s.adapter, configCollection, guildID, cfg); err != nil {
		return apperrors.NewStorageError("save guild config", err)
	}
	return nil
}

// resolveChannel prefers the guild's configured giveaway channel over the
// requesting one.
func (s *Service) resolveChannel(ctx context.Context, guildID, fallback string) string {
	if guildID == "" {
		return fallback
	}
	cfg := models.GuildConfig{}
	err := storage.GetJSON(ctx, s.adapter, configCollection, guildID, &cfg)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to read guild config, using requesting channel")
		}
		return fallback
	}
	if cfg.GiveawayChannelID == "" {
		return fallback
	}
	return cfg.GiveawayChannelID
}
