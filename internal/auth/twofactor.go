package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/gatehouse/internal/admission"
	"github.com/dropDatabas3/gatehouse/internal/audit"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/twofactor"
)

// CodeInput carries a TOTP code or a backup code. TempToken is only read by
// verify-temp.
type CodeInput struct {
	Token      string `json:"token"`
	BackupCode string `json:"backupCode"`
	TempToken  string `json:"tempToken"`
}

type BackupCodes struct {
	BackupCodes []string `json:"backupCodes"`
}

type codeForm struct{ code, backup string }

func formOf(in CodeInput) codeForm {
	return codeForm{code: strings.TrimSpace(in.Token), backup: strings.TrimSpace(in.BackupCode)}
}

func (s *Service) Enable2FA(ctx context.Context, m Meta) (*twofactor.Enrollment, error) {
	return runAs[*twofactor.Enrollment](s, ctx, Route2FAEnable, m, &admission.Request{})
}

func (s *Service) Verify2FA(ctx context.Context, m Meta, in CodeInput) (*Message, error) {
	return runAs[*Message](s, ctx, Route2FAVerify, m, &admission.Request{Form: formOf(in)})
}

func (s *Service) Confirm2FA(ctx context.Context, m Meta, in CodeInput) (*BackupCodes, error) {
	return runAs[*BackupCodes](s, ctx, Route2FAConfirm, m, &admission.Request{Form: formOf(in)})
}

func (s *Service) Disable2FA(ctx context.Context, m Meta, in CodeInput) (*Message, error) {
	return runAs[*Message](s, ctx, Route2FADisable, m, &admission.Request{Form: formOf(in)})
}

func (s *Service) RegenerateBackupCodes(ctx context.Context, m Meta, in CodeInput) (*BackupCodes, error) {
	return runAs[*BackupCodes](s, ctx, Route2FARegenerate, m, &admission.Request{Form: formOf(in)})
}

// VerifyTemp completes a login that was paused for a second factor.
func (s *Service) VerifyTemp(ctx context.Context, m Meta, in CodeInput) (*LoginResult, error) {
	return runAs[*LoginResult](s, ctx, Route2FAVerifyTemp, m, &admission.Request{
		Token: strings.TrimSpace(in.TempToken),
		Form:  formOf(in),
	})
}

func (s *Service) enable2FA(ctx context.Context, req *admission.Request) (any, error) {
	return s.d.TwoFactor.Enable(ctx, req.Account)
}

func (s *Service) verify2FA(ctx context.Context, req *admission.Request) (any, error) {
	f := req.Form.(codeForm)
	if err := s.d.TwoFactor.Verify(ctx, req.Account, f.code, f.backup); err != nil {
		return nil, err
	}
	return &Message{Message: "code verified"}, nil
}

func (s *Service) confirm2FA(ctx context.Context, req *admission.Request) (any, error) {
	codes, err := s.d.TwoFactor.Confirm(ctx, req.Account, req.Form.(codeForm).code)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.TwoFactorEnabled, logger.AccountID(req.Account.ID))
	return &BackupCodes{BackupCodes: codes}, nil
}

func (s *Service) disable2FA(ctx context.Context, req *admission.Request) (any, error) {
	f := req.Form.(codeForm)
	if err := s.d.TwoFactor.Disable(ctx, req.Account, f.code, f.backup); err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.TwoFactorDisabled, logger.AccountID(req.Account.ID))
	return &Message{Message: "two-factor authentication disabled"}, nil
}

func (s *Service) regenerate2FA(ctx context.Context, req *admission.Request) (any, error) {
	f := req.Form.(codeForm)
	codes, err := s.d.TwoFactor.RegenerateBackupCodes(ctx, req.Account, f.code, f.backup)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.BackupCodesRotated, logger.AccountID(req.Account.ID))
	return &BackupCodes{BackupCodes: codes}, nil
}

func (s *Service) verifyTemp(ctx context.Context, req *admission.Request) (any, error) {
	f := req.Form.(codeForm)
	accountID, err := s.d.TwoFactor.VerifyTemp(ctx, req.Token, f.code, f.backup)
	if err != nil {
		return nil, err
	}
	acct, err := s.d.Store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if acct.Banned {
		return nil, domain.ErrAccountBanned
	}
	toks, err := s.d.Sessions.Issue(ctx, acct)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.LoginSucceeded, logger.AccountID(acct.ID), logger.Bool("two_factor", true))
	return &LoginResult{Tokens: toks}, nil
}
