package domain

import "context"

// KeystoreRepository persists the single keystore of the application.
type KeystoreRepository interface {
	// GetKeystore returns ErrKeystoreNotInitialized if nothing is stored.
	GetKeystore(ctx context.Context) (*Keystore, error)
	// AddKeystore returns ErrKeystoreAlreadyInitialized if a keystore exists.
	AddKeystore(ctx context.Context, keystore Keystore) error
	// UpdateKeystore atomically replaces the stored keystore with the one
	// returned by updateFn. Nothing is written if updateFn fails or returns a
	// nil keystore.
	UpdateKeystore(
		ctx context.Context,
		updateFn func(k *Keystore) (*Keystore, error),
	) error
	// DeleteKeystore is a no-op if nothing is stored.
	DeleteKeystore(ctx context.Context) error
	Close()
}
