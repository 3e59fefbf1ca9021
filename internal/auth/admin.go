package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/audit"
	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/email"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/validation"
)

// Operator actions run from the CLI. They bypass the admission pipelines.

// IssueInvitation creates an invitation for addr and mails its link. It
// returns the link even when delivery fails.
func (s *Service) IssueInvitation(ctx context.Context, addr string) (string, error) {
	addr = domain.NormalizeEmail(addr)
	if err := s.d.Validator.ResetRequest(validation.ResetRequestForm{Email: addr}); err != nil {
		return "", err
	}
	inv, err := s.d.Invites.Issue(ctx, addr)
	if err != nil {
		return "", err
	}
	link, err := s.d.Mailer.Send(ctx, email.KindInvitation, addr, "", inv.Token, inv.ExpiresAt.Sub(inv.IssuedAt))
	if err != nil {
		logger.From(ctx).Warn("invitation email not delivered", logger.Layer("auth"), logger.Email(addr), logger.Err(err))
	}
	audit.Log(ctx, audit.InvitationIssued, logger.Email(addr))
	return link, nil
}

// ProvisionAccount creates a passwordless local account and sends its
// activation link.
func (s *Service) ProvisionAccount(ctx context.Context, addr, name string) (*domain.Account, string, error) {
	acct, err := s.newLocalAccount(addr, name, "", "")
	if err != nil {
		return nil, "", err
	}
	if err := s.d.Store.CreateAccount(ctx, acct); err != nil {
		return nil, "", err
	}
	link, err := s.sendToken(ctx, acct, domain.PurposeActivation, email.KindActivation, s.d.Config.ActivationTTL)
	if err != nil && link == "" {
		return nil, "", err
	}
	audit.Log(ctx, audit.AccountProvisioned, logger.AccountID(acct.ID), logger.Email(acct.Email))
	return acct, link, nil
}

// BanIdentity bans an IP or email. A zero d never expires. Banning an email
// also flags the matching account and revokes its sessions.
func (s *Service) BanIdentity(ctx context.Context, identity, reason string, d time.Duration) error {
	id := banKey(identity)
	now := s.now()
	b := &domain.Ban{Identity: id, Reason: reason, CreatedAt: now}
	if d > 0 {
		until := now.Add(d)
		b.Until = &until
	}
	if err := s.d.Store.PutBan(ctx, b); err != nil {
		return err
	}
	audit.Log(ctx, audit.BanAdded, logger.String("identity", id), logger.String("reason", reason), logger.Duration(d))
	return s.flag(ctx, id, true)
}

func (s *Service) UnbanIdentity(ctx context.Context, identity string) error {
	id := banKey(identity)
	if err := s.d.Store.DeleteBan(ctx, id); err != nil {
		return err
	}
	audit.Log(ctx, audit.BanRemoved, logger.String("identity", id))
	return s.flag(ctx, id, false)
}

func (s *Service) flag(ctx context.Context, id string, banned bool) error {
	if !strings.Contains(id, "@") {
		return nil
	}
	acct, err := s.d.Store.GetAccountByEmail(ctx, id)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return err
	}
	if err := s.d.Store.SetBanned(ctx, acct.ID, banned); err != nil {
		return err
	}
	if !banned {
		return nil
	}
	n, err := s.d.Sessions.InvalidateAccount(ctx, acct.ID)
	if err != nil {
		return err
	}
	audit.Log(ctx, audit.SessionsRevoked, logger.AccountID(acct.ID), logger.Int("sessions", n))
	return nil
}

func banKey(identity string) string {
	if strings.Contains(identity, "@") {
		return domain.NormalizeEmail(identity)
	}
	return strings.TrimSpace(identity)
}
