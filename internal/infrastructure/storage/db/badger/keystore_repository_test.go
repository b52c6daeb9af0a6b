package dbbadger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	dbbadger "github.com/atbitcoin/handlekeeper/internal/infrastructure/storage/db/badger"
	"github.com/stretchr/testify/require"
)

const testXpub = "xpub661MyMwAqRbcFkPHucMnrGNzDwb6teAX1RbKQmqtEF8kK3Z7LZ59qafCjB9eCRLiTVG3uxBxgKvRgbubRhqSKXnGGb1aoaqLrpMBDrVxga8"

func TestKeystoreRepository(t *testing.T) {
	t.Run("AddAndGetKeystore", testAddAndGetKeystore())
	t.Run("UpdateKeystore", testUpdateKeystore())
	t.Run("DeleteKeystore", testDeleteKeystore())
	t.Run("Persistence", testPersistence())
}

func testAddAndGetKeystore() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()

		repo, err := dbbadger.NewKeystoreRepository("", nil)
		require.NoError(t, err)
		defer repo.Close()

		_, err = repo.GetKeystore(ctx)
		require.ErrorIs(t, err, domain.ErrKeystoreNotInitialized)

		keystore := newTestKeystore(t)
		err = repo.AddKeystore(ctx, *keystore)
		require.NoError(t, err)

		err = repo.AddKeystore(ctx, *keystore)
		require.ErrorIs(t, err, domain.ErrKeystoreAlreadyInitialized)

		stored, err := repo.GetKeystore(ctx)
		require.NoError(t, err)
		require.Equal(t, keystore, stored)
	}
}

func testUpdateKeystore() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()

		repo, err := dbbadger.NewKeystoreRepository("", nil)
		require.NoError(t, err)
		defer repo.Close()

		err = repo.UpdateKeystore(ctx, nil)
		require.ErrorIs(t, err, domain.ErrKeystoreNotInitialized)

		keystore := newTestKeystore(t)
		err = repo.AddKeystore(ctx, *keystore)
		require.NoError(t, err)

		err = repo.UpdateKeystore(
			ctx, func(k *domain.Keystore) (*domain.Keystore, error) {
				_, _, err := k.CreateHandle("bob@bitcoin")
				return k, err
			},
		)
		require.NoError(t, err)

		stored, err := repo.GetKeystore(ctx)
		require.NoError(t, err)
		require.Len(t, stored.Handles, 2)
		require.Equal(t, uint32(2), stored.NextIndex)

		// A failing update writes nothing.
		err = repo.UpdateKeystore(
			ctx, func(k *domain.Keystore) (*domain.Keystore, error) {
				k.RemoveHandle("bob@bitcoin")
				return nil, errors.New("boom")
			},
		)
		require.EqualError(t, err, "boom")

		// Returning nil skips the write.
		err = repo.UpdateKeystore(
			ctx, func(k *domain.Keystore) (*domain.Keystore, error) {
				k.RemoveHandle("bob@bitcoin")
				return nil, nil
			},
		)
		require.NoError(t, err)

		stored, err = repo.GetKeystore(ctx)
		require.NoError(t, err)
		require.Len(t, stored.Handles, 2)
	}
}

func testDeleteKeystore() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()

		repo, err := dbbadger.NewKeystoreRepository("", nil)
		require.NoError(t, err)
		defer repo.Close()

		err = repo.DeleteKeystore(ctx)
		require.NoError(t, err)

		err = repo.AddKeystore(ctx, *newTestKeystore(t))
		require.NoError(t, err)

		err = repo.DeleteKeystore(ctx)
		require.NoError(t, err)

		_, err = repo.GetKeystore(ctx)
		require.ErrorIs(t, err, domain.ErrKeystoreNotInitialized)
	}
}

func testPersistence() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		datadir := t.TempDir()

		repo, err := dbbadger.NewKeystoreRepository(datadir, nil)
		require.NoError(t, err)

		keystore, err := domain.NewKeystore(testXpub, nil)
		require.NoError(t, err)
		err = repo.AddKeystore(ctx, *keystore)
		require.NoError(t, err)
		repo.Close()

		repo, err = dbbadger.NewKeystoreRepository(datadir, nil)
		require.NoError(t, err)
		defer repo.Close()

		stored, err := repo.GetKeystore(ctx)
		require.NoError(t, err)
		require.Equal(t, testXpub, stored.MasterPublicKey)
		require.NotNil(t, stored.Handles)
		require.Empty(t, stored.Handles)
	}
}

func newTestKeystore(t *testing.T) *domain.Keystore {
	keystore, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
		"alice@bitcoin": {
			DerivationPath: "m/35053/0/0/0",
			Certificate: &domain.CertificateData{
				Anchor:  "a7f3c2",
				Witness: domain.Witness{Type: domain.WitnessTypeSubtree, Data: "00ff"},
			},
		},
	})
	require.NoError(t, err)
	return keystore
}
