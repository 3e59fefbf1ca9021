package password

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_Argon2id(t *testing.T) {
	h, err := Hash(fast, "longenough1")
	require.NoError(t, err)
	assert.True(t, Verify("longenough1", h))
	assert.False(t, Verify("longenough2", h))
	assert.False(t, NeedsRehash(fast, h))
	assert.True(t, NeedsRehash(Default, h))
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, Verify("legacy-pass", string(b)))
	assert.False(t, Verify("other", string(b)))
	assert.True(t, NeedsRehash(fast, string(b)))
}

func TestVerify_Garbage(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$argon2id$v=19$bogus"))
	assert.False(t, Verify("x", "plaintext"))
}

func TestPolicy(t *testing.T) {
	p := Policy{MinLength: 8, MaxLength: 128, RequireDigit: true}
	ok, reasons := p.Validate("short")
	assert.False(t, ok)
	assert.Contains(t, reasons, "password_too_short")
	assert.Contains(t, reasons, "password_missing_digit")

	ok, reasons = p.Validate("longenough1")
	assert.True(t, ok)
	assert.Empty(t, reasons)
}

func TestBlacklist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bl.txt")
	require.NoError(t, os.WriteFile(path, []byte("# common\nPassword123\n\nqwertyuiop\n"), 0o600))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.True(t, bl.Contains("password123"))
	assert.True(t, bl.Contains(" QWERTYUIOP "))
	assert.False(t, bl.Contains("longenough1"))

	var nilList *Blacklist
	assert.False(t, nilList.Contains("anything"))
}
