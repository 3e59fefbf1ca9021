package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, 7*24*time.Hour, c.Registration.InviteTTL)
	assert.Equal(t, 10, c.MFA.BackupCodes)
	assert.Equal(t, 5*time.Minute, c.MFA.TempTokenTTL)
	assert.True(t, c.Registration.Enabled)
	assert.False(t, c.DirectoryEnabled())
	assert.False(t, c.RequiresCaptcha())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	p := writeYAML(t, `
app:
  env: prod
rate:
  login:
    limit: 3
    window: 30s
email:
  debug_echo_links: true
security:
  password_blacklist_path: lists/common.txt
`)
	t.Setenv("PRIVATE_BETA", "true")
	t.Setenv("LDAP_URL", "ldap://dir:389")
	t.Setenv("LDAP_USER_SEARCH_BASE", "ou=people,dc=x")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/gh")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, RateRule{Limit: 3, Window: 30 * time.Second}, c.Rate.Login)
	assert.True(t, c.Registration.PrivateBeta)
	assert.True(t, c.DirectoryEnabled())
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.False(t, c.Email.DebugEchoLinks, "prod never echoes links")
	assert.Equal(t, filepath.Join(filepath.Dir(p), "lists", "common.txt"), c.Security.PasswordBlacklistPath)
}

func TestDirectoryEnabled_NeedsBothSettings(t *testing.T) {
	c := Default()
	c.Directory.URL = "ldap://dir"
	assert.False(t, c.DirectoryEnabled())
	c.Directory.SearchBase = "dc=x"
	assert.True(t, c.DirectoryEnabled())
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Storage.Driver = "postgres"
	assert.Error(t, c.Validate())

	c = Default()
	c.Rate.Login.Limit = -1
	assert.Error(t, c.Validate())
}
