package boltsecurestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/btcsuite/btcwallet/snacl"
	bolt "go.etcd.io/bbolt"
)

const (
	dbFileMode  = 0600
	openTimeout = time.Second
)

var (
	// RootKeyBucketName is the name of the root key store bucket.
	RootKeyBucketName = []byte("root")

	// encryptionKeyID is the name of the database key that stores the
	// encryption key, encrypted with a salted + hashed password. The
	// format is 32 bytes of salt, and the rest is encrypted key.
	encryptionKeyID = []byte("enckey")
	// secretKeyID is the name of the database key that stores the encrypted
	// master secret.
	secretKeyID = []byte("secret")
)

// SecureStore is a SecretStore that encrypts the secret with a key derived
// from a password. It must be unlocked before use.
type SecureStore interface {
	ports.SecretStore
	// IsLocked returns whether the store is (un)locked.
	IsLocked() bool
	// Lock locks the store once unlocked.
	Lock()
	// CreateUnlock creates or unlocks the store with a password.
	CreateUnlock(password *[]byte) error
	// ChangePassword re-encrypts the store content with a new password.
	ChangePassword(oldPw, newPw []byte) error
}

type boltSecureStore struct {
	db *bolt.DB

	encKeyMtx sync.RWMutex
	encKey    *snacl.SecretKey
}

// NewSecureStore opens, or creates if not exists, the bolt db file at
// datadir/filename.
func NewSecureStore(datadir, filename string) (SecureStore, error) {
	if err := os.MkdirAll(datadir, os.ModeDir|0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(
		filepath.Join(datadir, filename), dbFileMode,
		&bolt.Options{Timeout: openTimeout},
	)
	if err != nil {
		return nil, err
	}

	// If the store's bucket doesn't exist, create it.
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(RootKeyBucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &boltSecureStore{db: db}, nil
}

// IsLocked returns whether the store is locked by checking if the encryption
// key is stored in-memory.
func (s *boltSecureStore) IsLocked() bool {
	s.encKeyMtx.RLock()
	defer s.encKeyMtx.RUnlock()

	return s.encKey == nil
}

// Lock eventually locks the store by flushing the in-memory encryption key.
func (s *boltSecureStore) Lock() {
	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	s.lock()
}

// CreateUnlock sets an encryption key if one is not already set, otherwise it
// checks if the password is correct for the stored encryption key.
func (s *boltSecureStore) CreateUnlock(password *[]byte) error {
	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	// If the store is already unlocked there's nothing to do here.
	if s.encKey != nil {
		return nil
	}
	if password == nil {
		return ErrPasswordRequired
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RootKeyBucketName)
		if bucket == nil {
			return ErrRootKeyBucketNotFound
		}

		dbKey := bucket.Get(encryptionKeyID)
		if len(dbKey) > 0 {
			// A key is already stored, so try to unlock with the password.
			encKey := &snacl.SecretKey{}
			if err := encKey.Unmarshal(dbKey); err != nil {
				return err
			}
			if err := encKey.DeriveKey(password); err != nil {
				return ErrInvalidPassword
			}

			s.encKey = encKey
			return nil
		}

		// The encryption key is not yet stored, so create a new one.
		encKey, err := snacl.NewSecretKey(
			password, snacl.DefaultN, snacl.DefaultR, snacl.DefaultP,
		)
		if err != nil {
			return err
		}
		if err := bucket.Put(encryptionKeyID, encKey.Marshal()); err != nil {
			return err
		}

		s.encKey = encKey
		return nil
	})
}

// ChangePassword decrypts the secret with the old password and then encrypts
// it again with the new one, in a single transaction.
func (s *boltSecureStore) ChangePassword(oldPw, newPw []byte) error {
	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	// The store must be already unlocked. This ensures that there already is a
	// key in the DB.
	if s.encKey == nil {
		return ErrStoreLocked
	}
	if oldPw == nil || newPw == nil {
		return ErrPasswordRequired
	}

	encKeyNew, err := snacl.NewSecretKey(
		&newPw, snacl.DefaultN, snacl.DefaultR, snacl.DefaultP,
	)
	if err != nil {
		return err
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RootKeyBucketName)
		if bucket == nil {
			return ErrRootKeyBucketNotFound
		}
		dbKey := bucket.Get(encryptionKeyID)
		if len(dbKey) <= 0 {
			return ErrEncKeyNotFound
		}

		// Check that old password is correct.
		encKeyOld := &snacl.SecretKey{}
		if err := encKeyOld.Unmarshal(dbKey); err != nil {
			return err
		}
		if err := encKeyOld.DeriveKey(&oldPw); err != nil {
			return ErrInvalidPassword
		}

		if encrypted := bucket.Get(secretKeyID); len(encrypted) > 0 {
			secret, err := encKeyOld.Decrypt(encrypted)
			if err != nil {
				return err
			}
			reencrypted, err := encKeyNew.Encrypt(secret)
			if err != nil {
				return err
			}
			if err := bucket.Put(secretKeyID, reencrypted); err != nil {
				return err
			}
		}

		return bucket.Put(encryptionKeyID, encKeyNew.Marshal())
	}); err != nil {
		return err
	}

	s.lock()
	s.encKey = encKeyNew
	return nil
}

func (s *boltSecureStore) GetSecret(_ context.Context) (string, error) {
	s.encKeyMtx.RLock()
	defer s.encKeyMtx.RUnlock()

	if s.encKey == nil {
		return "", ErrStoreLocked
	}

	var secret string
	if err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RootKeyBucketName)
		if bucket == nil {
			return ErrRootKeyBucketNotFound
		}

		encrypted := bucket.Get(secretKeyID)
		if len(encrypted) <= 0 {
			return ports.ErrSecretNotFound
		}

		value, err := s.encKey.Decrypt(encrypted)
		if err != nil {
			return err
		}
		secret = string(value)
		return nil
	}); err != nil {
		return "", err
	}

	return secret, nil
}

func (s *boltSecureStore) SetSecret(_ context.Context, secret string) error {
	s.encKeyMtx.RLock()
	defer s.encKeyMtx.RUnlock()

	if s.encKey == nil {
		return ErrStoreLocked
	}
	if len(secret) <= 0 {
		return ErrMissingSecret
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RootKeyBucketName)
		if bucket == nil {
			return ErrRootKeyBucketNotFound
		}

		encrypted, err := s.encKey.Encrypt([]byte(secret))
		if err != nil {
			return err
		}
		return bucket.Put(secretKeyID, encrypted)
	})
}

// RemoveSecret deletes the secret. The store does not need to be unlocked.
func (s *boltSecureStore) RemoveSecret(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(RootKeyBucketName)
		if bucket == nil {
			return ErrRootKeyBucketNotFound
		}
		return bucket.Delete(secretKeyID)
	})
}

// Close closes the underlying database and zeroes the encryption key stored
// in memory.
func (s *boltSecureStore) Close() error {
	s.encKeyMtx.Lock()
	defer s.encKeyMtx.Unlock()

	s.lock()
	return s.db.Close()
}

func (s *boltSecureStore) lock() {
	if s.encKey != nil {
		s.encKey.Zero()
		s.encKey = nil
	}
}
