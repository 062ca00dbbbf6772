package models

import "time"

// Deactivation reasons recorded on GuildPremiumConfig.
const (
	ReasonExpired = "expired automatically"
	ReasonDeleted = "license deleted"
)

// LicenseRecord is a premium credential. A zero ExpiresAt means the key
// never expires. Once IsUsed is set, BoundGuild is immutable until an
// operator deletes the key.
type LicenseRecord struct {
	Key        string    `json:"key"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	IsUsed     bool      `json:"is_used"`
	BoundGuild string    `json:"bound_guild,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *LicenseRecord) Permanent() bool {
	return r.ExpiresAt.IsZero()
}

func (r *LicenseRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// GuildPremiumConfig is the per-guild entitlement derived from a bound
// license. Records are never deleted; natural expiry and key deletion only
// flip Active and record the reason.
type GuildPremiumConfig struct {
	GuildID            string    `json:"guild_id"`
	Active             bool      `json:"active"`
	ExpiresAt          time.Time `json:"expires_at,omitempty"`
	LicenseKey         string    `json:"license_key,omitempty"`
	DeactivationReason string    `json:"deactivation_reason,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c *GuildPremiumConfig) Permanent() bool {
	return c.ExpiresAt.IsZero()
}

// EffectiveActive reports whether the entitlement is live at the given
// instant. Between a passed deadline and the next sweep tick the stored
// Active flag can lag; status queries use this instead.
func (c *GuildPremiumConfig) EffectiveActive(now time.Time) bool {
	return c.Active && (c.ExpiresAt.IsZero() || c.ExpiresAt.After(now))
}
