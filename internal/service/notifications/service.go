// Package notifications formats and delivers the engine's human-readable
// outcomes. Everything except the initial giveaway announcement is
// best-effort: a failed delivery is logged and forgotten.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spectra-bot-backend/internal/common/logger"
	gmodels "spectra-bot-backend/internal/features/giveaway/models"
	"spectra-bot-backend/internal/platform/discord"
)

// ChatClient is the slice of the Discord client the sink needs.
type ChatClient interface {
	SendMessage(ctx context.Context, channelID, content string) (*discord.Message, error)
	DirectMessage(ctx context.Context, userID, content string) error
	FetchGuildOwner(ctx context.Context, guildID string) (string, error)
}

type Service struct {
	chat ChatClient
}

func NewService(chat ChatClient) *Service {
	return &Service{chat: chat}
}

// GiveawayStarted posts the announcement message. This one is not
// best-effort: without the message there is nothing to react to, so the
// error propagates and the giveaway does not start.
func (s *Service) GiveawayStarted(ctx context.Context, channelID, prize, hostID string, deadline time.Time) (*discord.Message, error) {
	text := fmt.Sprintf(
		"🎉 GIVEAWAY: %s 🎉\nReact with 🎉 to enter!\nEnds: <t:%d:R>\nHosted by: <@%s>",
		prize, deadline.Unix(), hostID,
	)
	return s.chat.SendMessage(ctx, channelID, text)
}

// GiveawayCompleted announces the winners in the original channel.
func (s *Service) GiveawayCompleted(ctx context.Context, channelID, prize string, winners []gmodels.Winner) {
	mentions := make([]string, 0, len(winners))
	for _, w := range winners {
		mentions = append(mentions, fmt.Sprintf("<@%s>", w.UserID))
	}
	text := fmt.Sprintf("The winner of the **%s** giveaway is %s! Congratulations!",
		prize, strings.Join(mentions, ", "))
	if _, err := s.chat.SendMessage(ctx, channelID, text); err != nil {
		logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to announce giveaway winners")
	}
}

// GiveawayNoEntrants announces a draw with no valid participants.
func (s *Service) GiveawayNoEntrants(ctx context.Context, channelID, prize string) {
	text := fmt.Sprintf("The giveaway for **%s** ended with no valid participants.", prize)
	if _, err := s.chat.SendMessage(ctx, channelID, text); err != nil {
		logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to announce empty giveaway")
	}
}

// PremiumDeactivated tells the guild owner their entitlement ended.
func (s *Service) PremiumDeactivated(ctx context.Context, guildID, reason string) {
	ownerID, err := s.chat.FetchGuildOwner(ctx, guildID)
	if err != nil {
		logger.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to resolve guild owner for premium notice")
		return
	}
	text := fmt.Sprintf("Premium for your server has been deactivated (%s).", reason)
	if err := s.chat.DirectMessage(ctx, ownerID, text); err != nil {
		logger.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to deliver premium notice")
	}
}

// LevelUp congratulates a user in the channel they levelled up in.
func (s *Service) LevelUp(ctx context.Context, channelID, userID string, level int) {
	text := fmt.Sprintf("🎉 Congratulations, <@%s>! You leveled up to **Level %d**!", userID, level)
	if _, err := s.chat.SendMessage(ctx, channelID, text); err != nil {
		logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to announce level up")
	}
}
