// Package credential verifies login secrets. Exactly one Verifier is chosen
// at startup: the directory verifier when a directory is configured,
// otherwise the local password verifier.
package credential

import (
	"context"

	"github.com/dropDatabas3/gatehouse/internal/domain"
)

// Verifier authenticates an identifier/secret pair. Failures are
// ErrInvalidCredentials (never revealing whether the account exists) or
// ErrServiceUnavailable when the backing system cannot be reached.
type Verifier interface {
	Name() string
	Authenticate(ctx context.Context, identifier, secret string) (*domain.Account, error)
}

// New returns the directory verifier when dir is non-nil, the local one otherwise.
func New(accounts domain.AccountRepository, dir *DirectoryConfig) (Verifier, error) {
	if dir != nil {
		return NewDirectory(accounts, *dir, nil), nil
	}
	return NewLocal(accounts)
}
