package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/domain"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/store/memory"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seed(t *testing.T, st *memory.Store, email, username, hash string) *domain.Account {
	t.Helper()
	a := &domain.Account{ID: uuid.NewString(), Email: email, Username: username, AuthSource: domain.AuthSourceLocal}
	if hash != "" {
		a.PasswordHash = &hash
	}
	require.NoError(t, st.CreateAccount(context.Background(), a))
	return a
}

func TestLocal_Authenticate(t *testing.T) {
	st := memory.New()
	h, err := password.Hash(password.Default, "s3cret-pass")
	require.NoError(t, err)
	acct := seed(t, st, "ann@x.io", "ann", h)
	seed(t, st, "nopass@x.io", "", "")

	l, err := NewLocal(st)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := l.Authenticate(ctx, "ANN@x.io", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	got, err = l.Authenticate(ctx, "ann", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, errWrong := l.Authenticate(ctx, "ann@x.io", "nope")
	_, errUnknown := l.Authenticate(ctx, "ghost@x.io", "nope")
	_, errNoPass := l.Authenticate(ctx, "nopass@x.io", "anything")
	for _, e := range []error{errWrong, errUnknown, errNoPass} {
		assert.ErrorIs(t, e, domain.ErrInvalidCredentials)
		assert.Equal(t, domain.ErrInvalidCredentials.Error(), e.Error())
	}
}

func TestLocal_UpgradesLegacyHash(t *testing.T) {
	st := memory.New()
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)
	acct := seed(t, st, "legacy@x.io", "", string(legacy))

	l, err := NewLocal(st)
	require.NoError(t, err)
	_, err = l.Authenticate(context.Background(), "legacy@x.io", "old-password")
	require.NoError(t, err)

	got, err := st.GetAccountByID(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Contains(t, *got.PasswordHash, "$argon2id$")
	assert.True(t, password.Verify("old-password", *got.PasswordHash))
}

type fakeConn struct {
	binds   []string
	entries []*ldap.Entry
	users   map[string]string // dn -> password
	search  error
	filter  string
}

func (f *fakeConn) Bind(dn, pw string) error {
	f.binds = append(f.binds, dn)
	if want, ok := f.users[dn]; ok && want == pw {
		return nil
	}
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.filter = req.Filter
	if f.search != nil {
		return nil, f.search
	}
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func dialer(c *fakeConn) Dialer {
	return func(context.Context) (Conn, func(), error) { return c, func() {}, nil }
}

func entry(dn, mail, cn, uid string) *ldap.Entry {
	return ldap.NewEntry(dn, map[string][]string{"mail": {mail}, "cn": {cn}, "uid": {uid}})
}

func TestDirectory_ProvisionsAccount(t *testing.T) {
	st := memory.New()
	conn := &fakeConn{
		entries: []*ldap.Entry{entry("uid=bob,ou=people", "Bob@Corp.io", "Bob B", "bob")},
		users:   map[string]string{"uid=bob,ou=people": "pw", "cn=svc": "svcpw"},
	}
	d := NewDirectory(st, DirectoryConfig{SearchBase: "ou=people", BindDN: "cn=svc", BindPassword: "svcpw", Timeout: time.Second}, dialer(conn))

	acct, err := d.Authenticate(context.Background(), "bob@corp.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.io", acct.Email)
	assert.Equal(t, "Bob B", acct.DisplayName)
	assert.Equal(t, domain.AuthSourceDirectory, acct.AuthSource)
	assert.Equal(t, []string{"cn=svc", "uid=bob,ou=people"}, conn.binds)
	assert.Equal(t, "(mail=bob@corp.io)", conn.filter)

	// second login reuses the mirror
	again, err := d.Authenticate(context.Background(), "bob@corp.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID)
}

func TestDirectory_Failures(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	conn := &fakeConn{entries: []*ldap.Entry{entry("uid=a", "a@x.io", "A", "a")}, users: map[string]string{"uid=a": "right"}}
	d := NewDirectory(st, DirectoryConfig{SearchBase: "dc=x"}, dialer(conn))
	_, err := d.Authenticate(ctx, "a@x.io", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = d.Authenticate(ctx, "a@x.io", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	empty := &fakeConn{}
	_, err = NewDirectory(st, DirectoryConfig{SearchBase: "dc=x"}, dialer(empty)).Authenticate(ctx, "x*)(uid=*", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.NotContains(t, empty.filter, "*")
	assert.NotContains(t, empty.filter, ")(")

	down := NewDirectory(st, DirectoryConfig{}, func(context.Context) (Conn, func(), error) {
		return nil, nil, errors.New("connection refused")
	})
	_, err = down.Authenticate(ctx, "a@x.io", "right")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	broken := &fakeConn{search: errors.New("timeout")}
	_, err = NewDirectory(st, DirectoryConfig{}, dialer(broken)).Authenticate(ctx, "a@x.io", "right")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestNew_DirectoryModeIgnoresLocalPasswords(t *testing.T) {
	st := memory.New()
	h, err := password.Hash(password.Default, "local-pass")
	require.NoError(t, err)
	seed(t, st, "mix@x.io", "", h)

	v, err := New(st, &DirectoryConfig{URL: "ldap://127.0.0.1:1", SearchBase: "dc=x", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, "directory", v.Name())

	_, err = v.Authenticate(context.Background(), "mix@x.io", "local-pass")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))

	local, err := New(st, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", local.Name())
}
