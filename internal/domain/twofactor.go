package domain

import "time"

// TwoFactorStatus is the per-account 2FA state.
type TwoFactorStatus string

const (
	TwoFactorDisabled TwoFactorStatus = "disabled"
	TwoFactorPending  TwoFactorStatus = "pending"
	TwoFactorEnabled  TwoFactorStatus = "enabled"
)

// TwoFactorState holds sealed secrets and hashed backup codes.
// SecretEnc is only set after confirm; PendingSecretEnc only between enable and confirm.
type TwoFactorState struct {
	SecretEnc        string
	PendingSecretEnc string
	BackupCodes      []string
	LastUsedStep     int64
	ConfirmedAt      *time.Time
}

// Status derives the state machine position. A nil state is Disabled.
func (s *TwoFactorState) Status() TwoFactorStatus {
	switch {
	case s == nil:
		return TwoFactorDisabled
	case s.SecretEnc != "":
		return TwoFactorEnabled
	case s.PendingSecretEnc != "":
		return TwoFactorPending
	default:
		return TwoFactorDisabled
	}
}
