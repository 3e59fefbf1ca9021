package domain

import "time"

// Invitation gates registration while private-beta mode is on.
type Invitation struct {
	TokenHash  string
	Email      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	ConsumedBy string

	// Token is the raw token. Only set on the value returned by Issue.
	Token string `json:"-"`
}

// Check classifies the invitation at now: nil, ErrExpired or ErrAlreadyConsumed.
// Past ExpiresAt it is ErrExpired whether or not it was redeemed.
func (i *Invitation) Check(now time.Time) error {
	if !now.Before(i.ExpiresAt) {
		return ErrExpired
	}
	if i.ConsumedAt != nil {
		return ErrAlreadyConsumed
	}
	return nil
}

// TokenPurpose scopes a one-time token to a single flow.
type TokenPurpose string

const (
	PurposePasswordReset TokenPurpose = "password_reset"
	PurposeActivation    TokenPurpose = "activation"
)

// OneTimeToken backs password-reset and activation links.
type OneTimeToken struct {
	Hash       string
	Purpose    TokenPurpose
	AccountID  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Check mirrors Invitation.Check.
func (t *OneTimeToken) Check(now time.Time) error {
	if !now.Before(t.ExpiresAt) {
		return ErrExpired
	}
	if t.ConsumedAt != nil {
		return ErrAlreadyConsumed
	}
	return nil
}
