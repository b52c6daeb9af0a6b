package ports

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned by GetSecret when no secret is stored.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds the master extended private key, apart from the public
// keystore.
type SecretStore interface {
	GetSecret(ctx context.Context) (string, error)
	SetSecret(ctx context.Context, secret string) error
	// RemoveSecret is a no-op if no secret is stored.
	RemoveSecret(ctx context.Context) error
	Close() error
}
