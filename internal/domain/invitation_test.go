package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvitationCheck(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	used := now.Add(-time.Minute)

	cases := []struct {
		name string
		inv  Invitation
		want error
	}{
		{"open", Invitation{ExpiresAt: now.Add(time.Hour)}, nil},
		{"consumed", Invitation{ExpiresAt: now.Add(time.Hour), ConsumedAt: &used}, ErrAlreadyConsumed},
		{"expired", Invitation{ExpiresAt: now}, ErrExpired},
		{"consumed then expired", Invitation{ExpiresAt: now.Add(-time.Second), ConsumedAt: &used}, ErrExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.inv.Check(now)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
