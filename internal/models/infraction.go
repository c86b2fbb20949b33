package models

import "time"

type InfractionTarget string

const (
	TargetUser   InfractionTarget = "user"
	TargetServer InfractionTarget = "server"
)

type InfractionStatus string

const (
	InfractionActive  InfractionStatus = "active"
	InfractionExpired InfractionStatus = "expired"
)

// Infraction scopes a user's or server's ability to participate in a hub.
// A nil expiry means permanent.
type Infraction struct {
	ID         string           `db:"id"`
	HubID      string           `db:"hub_id"`
	TargetID   string           `db:"target_id"`
	TargetType InfractionTarget `db:"target_type"`
	Reason     string           `db:"reason"`
	Status     InfractionStatus `db:"status"`
	ExpiresAt  *time.Time       `db:"expires_at"`
	CreatedAt  time.Time        `db:"created_at"`
}

// ExpiredAt reports whether the infraction's expiry has passed. Permanent
// infractions never expire.
func (i *Infraction) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}
