package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBox(t *testing.T) *Box {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	b, err := New(key)
	require.NoError(t, err)
	return b
}

func TestSealOpen_RoundTrip(t *testing.T) {
	b := newBox(t)
	ct, err := b.Seal("JBSWY3DPEHPK3PXP", "acct-1")
	require.NoError(t, err)
	assert.NotContains(t, ct, "JBSWY3DPEHPK3PXP")

	pt, err := b.Open(ct, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", pt)
}

func TestOpen_WrongAAD(t *testing.T) {
	b := newBox(t)
	ct, err := b.Seal("secret", "acct-1")
	require.NoError(t, err)
	_, err = b.Open(ct, "acct-2")
	require.Error(t, err)
}

func TestOpen_DetectsTamper(t *testing.T) {
	b := newBox(t)
	ct, err := b.Seal("top secret", "a")
	require.NoError(t, err)

	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)
	raw, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	raw[0] ^= 0xFF
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(raw)

	_, err = b.Open(tampered, "a")
	require.Error(t, err)

	_, err = b.Open("no-separator", "a")
	require.ErrorIs(t, err, ErrFormat)
}

func TestNew_KeyFormats(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	_, err = New("too-short")
	require.Error(t, err)
	_, err = New(strings.Repeat("ab", 32))
	require.NoError(t, err)
	_, err = New(strings.Repeat("k", 32))
	require.NoError(t, err)
}
