package entity

import (
	"time"
)

// QRToken is a short-lived opaque payload proving current possession of a
// valid ticket. At most one token is current per ticket per display session;
// tokens are discarded on expiry or check-in, never persisted.
type QRToken struct {
	TicketID  string
	Payload   string
	IssuedAt  time.Time
	ValidFor  time.Duration
	ExpiresAt time.Time
}

// ExpiresIn is the remaining validity, floored at zero. It is derived state
// for presentation only; refresh scheduling compares wall-clock deadlines.
func (t QRToken) ExpiresIn(now time.Time) time.Duration {
	if remaining := t.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

func (t QRToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
