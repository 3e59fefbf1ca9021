package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	k, err := Generate("Gatehouse", "a@example.com")
	require.NoError(t, err)
	assert.Len(t, k.Secret, 32)
	assert.True(t, strings.HasPrefix(k.URL, "otpauth://totp/"))
	assert.Contains(t, k.URL, "issuer=Gatehouse")
}

func TestVerify_WindowAndReplay(t *testing.T) {
	k, err := Generate("Gatehouse", "a@example.com")
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)

	code, err := Code(k.Secret, now)
	require.NoError(t, err)

	ok, step := Verify(k.Secret, code, now, 1, 0)
	require.True(t, ok)
	assert.Equal(t, Step(now), step)

	// one step of clock drift is tolerated
	ok, _ = Verify(k.Secret, code, now.Add(Period*time.Second), 1, 0)
	assert.True(t, ok)

	// replay of an already used step is rejected
	ok, _ = Verify(k.Secret, code, now, 1, step)
	assert.False(t, ok)

	// outside the window
	ok, _ = Verify(k.Secret, code, now.Add(5*Period*time.Second), 1, 0)
	assert.False(t, ok)
}

func TestVerify_Malformed(t *testing.T) {
	k, err := Generate("Gatehouse", "a@example.com")
	require.NoError(t, err)
	ok, _ := Verify(k.Secret, "12345", time.Now(), 1, 0)
	assert.False(t, ok)
	ok, _ = Verify(k.Secret, "", time.Now(), 1, 0)
	assert.False(t, ok)
}
