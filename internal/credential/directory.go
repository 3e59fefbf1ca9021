package credential

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// DirectoryConfig describes the LDAP server and how to find users in it.
type DirectoryConfig struct {
	URL          string
	SearchBase   string
	SearchFilter string // {{username}} is replaced with the escaped identifier
	BindDN       string
	BindPassword string
	EmailAttr    string
	NameAttr     string
	UsernameAttr string
	StartTLS     bool
	Timeout      time.Duration
}

// Conn is the part of *ldap.Conn the verifier uses.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// Dialer opens a connection and returns a func that closes it.
type Dialer func(ctx context.Context) (Conn, func(), error)

// Directory authenticates with search-then-bind and mirrors the principal
// into a local account with AuthSource directory.
type Directory struct {
	accounts domain.AccountRepository
	cfg      DirectoryConfig
	dial     Dialer
	now      func() time.Time
}

// NewDirectory uses dial when non-nil, otherwise a real LDAP dialer.
func NewDirectory(accounts domain.AccountRepository, cfg DirectoryConfig, dial Dialer) *Directory {
	if cfg.SearchFilter == "" {
		cfg.SearchFilter = "(mail={{username}})"
	}
	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}
	if cfg.NameAttr == "" {
		cfg.NameAttr = "cn"
	}
	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "uid"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if dial == nil {
		dial = ldapDialer(cfg)
	}
	return &Directory{accounts: accounts, cfg: cfg, dial: dial, now: time.Now}
}

func ldapDialer(cfg DirectoryConfig) Dialer {
	return func(ctx context.Context) (Conn, func(), error) {
		conn, err := ldap.DialURL(cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}))
		if err != nil {
			return nil, nil, err
		}
		closer := func() { conn.Close() }
		conn.SetTimeout(cfg.Timeout)
		if cfg.StartTLS {
			host := cfg.URL
			if u, err := url.Parse(cfg.URL); err == nil {
				host = u.Hostname()
			}
			if err := conn.StartTLS(&tls.Config{ServerName: host}); err != nil {
				closer()
				return nil, nil, err
			}
		}
		return conn, closer, nil
	}
}

func (d *Directory) Name() string { return "directory" }

func (d *Directory) Authenticate(ctx context.Context, identifier, secret string) (*domain.Account, error) {
	log := logger.From(ctx).With(logger.Layer("credential"), logger.Op("directory.authenticate"))

	identifier = strings.TrimSpace(identifier)
	// an empty password would be an unauthenticated bind, which succeeds
	if identifier == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}

	conn, closeConn, err := d.dial(ctx)
	if err != nil {
		log.Error("directory dial failed", logger.Err(err))
		return nil, domain.ErrServiceUnavailable.WithCause(err)
	}
	defer closeConn()

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			log.Error("directory service bind failed", logger.Err(err))
			return nil, domain.ErrServiceUnavailable.WithCause(err)
		}
	}

	filter := strings.ReplaceAll(d.cfg.SearchFilter, "{{username}}", ldap.EscapeFilter(identifier))
	res, err := conn.Search(ldap.NewSearchRequest(
		d.cfg.SearchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(d.cfg.Timeout/time.Second), false,
		filter,
		[]string{"dn", d.cfg.EmailAttr, d.cfg.NameAttr, d.cfg.UsernameAttr},
		nil,
	))
	if err != nil {
		log.Error("directory search failed", logger.Err(err))
		return nil, domain.ErrServiceUnavailable.WithCause(err)
	}
	if len(res.Entries) != 1 {
		return nil, domain.ErrInvalidCredentials
	}
	entry := res.Entries[0]

	if err := conn.Bind(entry.DN, secret); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, domain.ErrInvalidCredentials
		}
		log.Error("directory user bind failed", logger.Err(err))
		return nil, domain.ErrServiceUnavailable.WithCause(err)
	}

	email := domain.NormalizeEmail(entry.GetAttributeValue(d.cfg.EmailAttr))
	if email == "" && strings.Contains(identifier, "@") {
		email = domain.NormalizeEmail(identifier)
	}
	if email == "" {
		log.Warn("directory entry has no email", logger.String("dn", entry.DN))
		return nil, domain.ErrInvalidCredentials
	}

	now := d.now().UTC()
	acct, err := d.accounts.UpsertDirectoryAccount(ctx, &domain.Account{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: entry.GetAttributeValue(d.cfg.NameAttr),
		Username:    entry.GetAttributeValue(d.cfg.UsernameAttr),
		AuthSource:  domain.AuthSourceDirectory,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// username collides with a local account; keep the email mirror only
			acct, err = d.accounts.UpsertDirectoryAccount(ctx, &domain.Account{
				ID: uuid.NewString(), Email: email, DisplayName: entry.GetAttributeValue(d.cfg.NameAttr),
				AuthSource: domain.AuthSourceDirectory, CreatedAt: now, UpdatedAt: now,
			})
		}
		if err != nil {
			return nil, err
		}
	}
	return acct, nil
}
