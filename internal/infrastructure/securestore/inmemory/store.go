package inmemorysecurestore

import (
	"context"
	"sync"

	"github.com/atbitcoin/handlekeeper/internal/core/ports"
)

// SecretStore keeps the secret in memory only. It is meant for tests and
// throwaway sessions.
type SecretStore struct {
	locker sync.RWMutex
	secret string
}

func NewSecretStore() *SecretStore {
	return &SecretStore{}
}

func (s *SecretStore) GetSecret(_ context.Context) (string, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	if s.secret == "" {
		return "", ports.ErrSecretNotFound
	}
	return s.secret, nil
}

func (s *SecretStore) SetSecret(_ context.Context, secret string) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.secret = secret
	return nil
}

func (s *SecretStore) RemoveSecret(_ context.Context) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	s.secret = ""
	return nil
}

func (s *SecretStore) Close() error {
	return nil
}
