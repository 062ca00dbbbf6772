package models

import (
	"errors"
	"time"
)

var (
	ErrInvalidWinnersCount = errors.New("winners count must be at least 1")
	ErrMissingPrize        = errors.New("prize description is required")
	ErrMissingChannel      = errors.New("channel reference is required")
)

// Payload is the kind-specific data carried by a giveaway timed entity.
// MessageID is set once, when the announcement is posted, and never changes
// afterwards.
type Payload struct {
	Prize        string    `json:"prize"`
	ChannelID    string    `json:"channel_id"`
	MessageID    string    `json:"message_id"`
	HostID       string    `json:"host_id"`
	WinnersCount int       `json:"winners_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p *Payload) Validate() error {
	if p.Prize == "" {
		return ErrMissingPrize
	}
	if p.ChannelID == "" {
		return ErrMissingChannel
	}
	if p.WinnersCount < 1 {
		return ErrInvalidWinnersCount
	}
	return nil
}

// Winner is one selected participant.
type Winner struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Outcome summarizes a completed giveaway for the interactive caller.
type Outcome struct {
	GiveawayID string   `json:"giveaway_id"`
	Prize      string   `json:"prize"`
	Winners    []Winner `json:"winners"`
	NoEntrants bool     `json:"no_entrants"`
}

// GuildConfig holds per-guild giveaway settings. Stored under the guild id
// in the config collection.
type GuildConfig struct {
	GuildID           string `json:"guild_id"`
	GiveawayChannelID string `json:"giveaway_channel_id,omitempty"`
}
