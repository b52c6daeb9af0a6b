package inmemory

import (
	"context"
	"sync"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

// KeystoreRepositoryImpl represents an in memory storage. It hands out
// copies, so callers never share state with the stored keystore.
type KeystoreRepositoryImpl struct {
	locker   sync.Mutex
	keystore *domain.Keystore
}

// NewKeystoreRepository returns a new empty KeystoreRepositoryImpl
func NewKeystoreRepository() domain.KeystoreRepository {
	return &KeystoreRepositoryImpl{}
}

func (r *KeystoreRepositoryImpl) GetKeystore(
	ctx context.Context,
) (*domain.Keystore, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.keystore == nil {
		return nil, domain.ErrKeystoreNotInitialized
	}
	return r.keystore.Clone(), nil
}

func (r *KeystoreRepositoryImpl) AddKeystore(
	ctx context.Context, keystore domain.Keystore,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.keystore != nil {
		return domain.ErrKeystoreAlreadyInitialized
	}
	r.keystore = keystore.Clone()
	return nil
}

// UpdateKeystore updates the keystore passing an update function
func (r *KeystoreRepositoryImpl) UpdateKeystore(
	ctx context.Context,
	updateFn func(k *domain.Keystore) (*domain.Keystore, error),
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	if r.keystore == nil {
		return domain.ErrKeystoreNotInitialized
	}

	updatedKeystore, err := updateFn(r.keystore.Clone())
	if err != nil {
		return err
	}
	if updatedKeystore == nil {
		return nil
	}

	r.keystore = updatedKeystore.Clone()
	return nil
}

func (r *KeystoreRepositoryImpl) DeleteKeystore(ctx context.Context) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.keystore = nil
	return nil
}

func (r *KeystoreRepositoryImpl) Close() {}
