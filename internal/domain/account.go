// Package domain holds the records and repository contracts shared by the
// admission pipeline, the registries and the stores.
package domain

import (
	"strings"
	"time"
)

// AuthSource tells which verifier owns an account's credentials.
type AuthSource string

const (
	AuthSourceLocal     AuthSource = "local"
	AuthSourceDirectory AuthSource = "directory"
)

// Account is the identity record.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	Username     string
	PasswordHash *string
	AuthSource   AuthSource
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// TwoFactor is nil when the account never touched 2FA.
	TwoFactor *TwoFactorState
}

// HasPassword reports whether the account can use local login.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != nil && *a.PasswordHash != ""
}

// TwoFactorEnabled reports whether a login must pass a second factor.
func (a *Account) TwoFactorEnabled() bool {
	return a != nil && a.TwoFactor.Status() == TwoFactorEnabled
}

// NormalizeEmail lowercases and trims an address for lookups and comparisons.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Ban blocks a client identity (IP address or normalized email).
type Ban struct {
	Identity  string
	Reason    string
	Until     *time.Time
	CreatedAt time.Time
}

// Active reports whether the ban still applies at now.
func (b *Ban) Active(now time.Time) bool {
	return b != nil && (b.Until == nil || now.Before(*b.Until))
}
