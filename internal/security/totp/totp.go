// Package totp wraps RFC 6238 codes (SHA1, 6 digits, 30s) with anti-replay
// by time step.
package totp

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Period is the step length in seconds.
const Period = 30

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Key is a freshly generated secret.
type Key struct {
	Secret string // base32, no padding
	URL    string // otpauth:// for QR rendering
}

// Generate creates a 20-byte secret for accountName under issuer.
func Generate(issuer, accountName string) (*Key, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &Key{Secret: k.Secret(), URL: k.URL()}, nil
}

// Code returns the code for secret at t.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts)
}

// Step returns the time step containing t.
func Step(t time.Time) int64 { return t.Unix() / Period }

// Verify checks code within +/- window steps of t, skipping steps at or
// before lastStep. It returns the matching step.
func Verify(secret, code string, t time.Time, window int, lastStep int64) (bool, int64) {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return false, 0
	}
	cur := Step(t)
	for s := cur - int64(window); s <= cur+int64(window); s++ {
		if s <= lastStep {
			continue
		}
		want, err := totp.GenerateCodeCustom(secret, time.Unix(s*Period, 0), validateOpts)
		if err != nil {
			return false, 0
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, s
		}
	}
	return false, 0
}
