// Package audit records security-relevant account events on a dedicated
// "audit" logger so they can be routed apart from request logs.
package audit

import (
	"context"

	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	LoginSucceeded     = "login.succeeded"
	LoginChallenged    = "login.challenged"
	AccountRegistered  = "account.registered"
	AccountProvisioned = "account.provisioned"
	PasswordChanged    = "password.changed"
	TwoFactorEnabled   = "2fa.enabled"
	TwoFactorDisabled  = "2fa.disabled"
	BackupCodesRotated = "2fa.backup_codes_rotated"
	InvitationIssued   = "invitation.issued"
	BanAdded           = "ban.added"
	BanRemoved         = "ban.removed"
	SessionsRevoked    = "sessions.revoked"
)

// Log writes one audit event. Request-scoped fields carried by ctx are kept.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).Named("audit").Info(event, append(fields, zap.String("event", event))...)
}
