// Package memory is an in-process store. Every method takes one mutex, which
// gives the same atomicity the Postgres store gets from conditional updates.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
)

type Store struct {
	mu sync.Mutex

	accounts    map[string]*domain.Account
	byEmail     map[string]string
	byUsername  map[string]string
	invitations map[string]*domain.Invitation
	tokens      map[string]*domain.OneTimeToken
	twoFactor   map[string]*domain.TwoFactorState
	sessions    map[string]*domain.Session
	byRefresh   map[string]string
	bans        map[string]*domain.Ban
	balances    map[string]*domain.Balance
}

func New() *Store {
	return &Store{
		accounts:    map[string]*domain.Account{},
		byEmail:     map[string]string{},
		byUsername:  map[string]string{},
		invitations: map[string]*domain.Invitation{},
		tokens:      map[string]*domain.OneTimeToken{},
		twoFactor:   map[string]*domain.TwoFactorState{},
		sessions:    map[string]*domain.Session{},
		byRefresh:   map[string]string{},
		bans:        map[string]*domain.Ban{},
		balances:    map[string]*domain.Balance{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

func tokenKey(hash string, p domain.TokenPurpose) string { return string(p) + ":" + hash }

func copyAccount(a *domain.Account, tf *domain.TwoFactorState) *domain.Account {
	cp := *a
	if a.PasswordHash != nil {
		h := *a.PasswordHash
		cp.PasswordHash = &h
	}
	cp.TwoFactor = copyTwoFactor(tf)
	return &cp
}

func copyTwoFactor(tf *domain.TwoFactorState) *domain.TwoFactorState {
	if tf == nil {
		return nil
	}
	cp := *tf
	cp.BackupCodes = append([]string(nil), tf.BackupCodes...)
	return &cp
}

// ---- accounts ----

func (s *Store) GetAccountByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(a, s.twoFactor[id]), nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	s.mu.Lock()
	id, ok := s.byUsername[domain.NormalizeEmail(username)]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) CreateAccount(_ context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(acct)
}

func (s *Store) insertLocked(acct *domain.Account) error {
	email := domain.NormalizeEmail(acct.Email)
	if _, taken := s.byEmail[email]; taken {
		return domain.ErrConflict.WithMessage("email already registered")
	}
	uname := domain.NormalizeEmail(acct.Username)
	if uname != "" {
		if _, taken := s.byUsername[uname]; taken {
			return domain.ErrConflict.WithMessage("username already taken")
		}
	}
	stored := copyAccount(acct, nil)
	stored.TwoFactor = nil
	s.accounts[acct.ID] = stored
	s.byEmail[email] = acct.ID
	if uname != "" {
		s.byUsername[uname] = acct.ID
	}
	return nil
}

func (s *Store) CreateAccountWithInvitation(_ context.Context, acct *domain.Account, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[tokenHash]
	if !ok {
		return domain.ErrNotFound
	}
	if err := inv.Check(now); err != nil {
		return err
	}
	if err := s.insertLocked(acct); err != nil {
		return err
	}
	at := now
	inv.ConsumedAt = &at
	inv.ConsumedBy = acct.ID
	return nil
}

func (s *Store) UpsertDirectoryAccount(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	id, ok := s.byEmail[domain.NormalizeEmail(acct.Email)]
	if ok {
		cur := s.accounts[id]
		if acct.DisplayName != "" {
			cur.DisplayName = acct.DisplayName
		}
		cur.AuthSource = domain.AuthSourceDirectory
		cur.UpdatedAt = acct.UpdatedAt
		s.mu.Unlock()
		return s.GetAccountByID(ctx, id)
	}
	err := s.insertLocked(acct)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetAccountByID(ctx, acct.ID)
}

func (s *Store) SetPasswordHash(_ context.Context, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	h := hash
	a.PasswordHash = &h
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetBanned(_ context.Context, accountID string, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Banned = banned
	return nil
}

// ---- invitations ----

func (s *Store) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.invitations[inv.TokenHash]; dup {
		return domain.ErrConflict
	}
	cp := *inv
	cp.Token = ""
	s.invitations[inv.TokenHash] = &cp
	return nil
}

func (s *Store) GetInvitation(_ context.Context, tokenHash string) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[tokenHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// ---- one-time tokens ----

func (s *Store) CreateOneTimeToken(_ context.Context, t *domain.OneTimeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[tokenKey(t.Hash, t.Purpose)] = &cp
	return nil
}

func (s *Store) GetOneTimeToken(_ context.Context, hash string, purpose domain.TokenPurpose) (*domain.OneTimeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenKey(hash, purpose)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) RedeemPasswordToken(_ context.Context, hash string, purpose domain.TokenPurpose, passwordHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenKey(hash, purpose)]
	if !ok {
		return "", domain.ErrNotFound
	}
	if err := t.Check(now); err != nil {
		return "", err
	}
	a, ok := s.accounts[t.AccountID]
	if !ok {
		return "", domain.ErrNotFound
	}
	at := now
	t.ConsumedAt = &at
	h := passwordHash
	a.PasswordHash = &h
	a.UpdatedAt = now
	return a.ID, nil
}

// ---- two-factor ----

func (s *Store) GetTwoFactor(_ context.Context, accountID string) (*domain.TwoFactorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTwoFactor(s.twoFactor[accountID]), nil
}

func (s *Store) SetPendingSecret(_ context.Context, accountID, sealed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.twoFactor[accountID]
	if tf.Status() == domain.TwoFactorEnabled {
		return domain.ErrInvalidState
	}
	if tf == nil {
		tf = &domain.TwoFactorState{}
		s.twoFactor[accountID] = tf
	}
	tf.PendingSecretEnc = sealed
	return nil
}

func (s *Store) ConfirmTwoFactor(_ context.Context, accountID, expectPending string, backupHashes []string, step int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.twoFactor[accountID]
	if tf.Status() != domain.TwoFactorPending || tf.PendingSecretEnc != expectPending {
		return domain.ErrInvalidState
	}
	tf.SecretEnc = tf.PendingSecretEnc
	tf.PendingSecretEnc = ""
	tf.BackupCodes = append([]string(nil), backupHashes...)
	tf.LastUsedStep = step
	confirmed := at
	tf.ConfirmedAt = &confirmed
	return nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, accountID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.twoFactor[accountID]
	if tf.Status() != domain.TwoFactorEnabled {
		return domain.ErrInvalidState
	}
	tf.BackupCodes = append([]string(nil), hashes...)
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, accountID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.twoFactor[accountID]
	if tf == nil {
		return false, nil
	}
	for i, h := range tf.BackupCodes {
		if h == hash {
			tf.BackupCodes = append(tf.BackupCodes[:i:i], tf.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AdvanceStep(_ context.Context, accountID string, step int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tf := s.twoFactor[accountID]
	if tf == nil || step <= tf.LastUsedStep {
		return false, nil
	}
	tf.LastUsedStep = step
	return true, nil
}

func (s *Store) ClearTwoFactor(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.twoFactor, accountID)
	return nil
}

// ---- sessions ----

func (s *Store) CreateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	s.byRefresh[sess.RefreshHash] = sess.ID
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) GetSessionByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	s.mu.Lock()
	id, ok := s.byRefresh[hash]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetSession(ctx, id)
}

func (s *Store) RotateRefresh(_ context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.RefreshHash != oldHash || sess.RevokedAt != nil {
		return domain.ErrAlreadyConsumed
	}
	delete(s.byRefresh, oldHash)
	sess.RefreshHash = newHash
	sess.ExpiresAt = expiresAt
	s.byRefresh[newHash] = id
	return nil
}

func (s *Store) RevokeSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.RevokedAt == nil {
		t := at
		sess.RevokedAt = &t
	}
	return nil
}

func (s *Store) RevokeAccountSessions(_ context.Context, accountID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.AccountID == accountID && sess.RevokedAt == nil {
			t := at
			sess.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

// ---- bans ----

func (s *Store) IsBanned(_ context.Context, identity string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bans[identity].Active(now), nil
}

func (s *Store) PutBan(_ context.Context, b *domain.Ban) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.bans[b.Identity] = &cp
	return nil
}

func (s *Store) DeleteBan(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans, identity)
	return nil
}

// ---- balances ----

func (s *Store) EnsureBalance(_ context.Context, accountID string, startCredits int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[accountID]; ok {
		return nil
	}
	s.balances[accountID] = &domain.Balance{AccountID: accountID, Credits: startCredits, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *Store) GetBalance(_ context.Context, accountID string) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}
