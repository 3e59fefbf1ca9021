package domain

import "time"

// Session is the server-side half of an issued token pair.
type Session struct {
	ID          string
	AccountID   string
	RefreshHash string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Balance is the token-credit record seeded on login when balances are on.
type Balance struct {
	AccountID string
	Credits   int64
	UpdatedAt time.Time
}
