package dbbadger

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
)

const (
	keystoreDir = "keystore"
	keystoreKey = "keystore"
)

type keystoreRepository struct {
	store *badgerhold.Store
}

// NewKeystoreRepository opens (or creates if not exists) the keystore db in
// a dedicated subdirectory of baseDbDir. An empty baseDbDir keeps the db in
// memory.
func NewKeystoreRepository(
	baseDbDir string, logger badger.Logger,
) (domain.KeystoreRepository, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, keystoreDir)
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening keystore db: %w", err)
	}
	return &keystoreRepository{store}, nil
}

func (r *keystoreRepository) GetKeystore(
	ctx context.Context,
) (*domain.Keystore, error) {
	var keystore domain.Keystore
	if err := r.store.Get(keystoreKey, &keystore); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrKeystoreNotInitialized
		}
		return nil, err
	}
	return &keystore, nil
}

func (r *keystoreRepository) AddKeystore(
	ctx context.Context, keystore domain.Keystore,
) error {
	if err := r.store.Insert(keystoreKey, &keystore); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrKeystoreAlreadyInitialized
		}
		return err
	}
	return nil
}

func (r *keystoreRepository) UpdateKeystore(
	ctx context.Context,
	updateFn func(k *domain.Keystore) (*domain.Keystore, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var keystore domain.Keystore
		if err := r.store.TxGet(tx, keystoreKey, &keystore); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrKeystoreNotInitialized
			}
			return err
		}

		updatedKeystore, err := updateFn(&keystore)
		if err != nil {
			return err
		}
		if updatedKeystore == nil {
			return nil
		}

		return r.store.TxUpdate(tx, keystoreKey, updatedKeystore)
	})
}

func (r *keystoreRepository) DeleteKeystore(ctx context.Context) error {
	if err := r.store.Delete(keystoreKey, domain.Keystore{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (r *keystoreRepository) Close() {
	r.store.Close()
}
