package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/atbitcoin/handlekeeper/pkg/nostrutil"
	"github.com/atbitcoin/handlekeeper/pkg/wallet"
	log "github.com/sirupsen/logrus"
)

// MutateFn changes the given keystore copy in place and reports whether it
// did change anything. Returning false skips the write.
type MutateFn func(k *domain.Keystore) (bool, error)

// KeystoreService is the only writer of the keystore. Every mutation is
// applied to a copy, persisted and only then published.
type KeystoreService interface {
	GenSeed(ctx context.Context) (string, error)
	IsInitialized(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, mnemonic string) error
	Restore(ctx context.Context, mnemonic string, backup domain.Backup) error
	VerifySecret(ctx context.Context, mnemonic string) error
	Teardown(ctx context.Context) error

	Get(ctx context.Context) (*domain.Keystore, error)
	Mutate(ctx context.Context, fn MutateFn) (*domain.Keystore, error)

	CreateHandle(ctx context.Context, name string) (string, *domain.HandleRecord, error)
	RemoveHandle(ctx context.Context, name string) (bool, error)
	SetCertificate(
		ctx context.Context, name string, data *domain.CertificateData,
	) (bool, error)
	ImportCertificate(ctx context.Context, cert domain.Certificate) error

	ListHandles(ctx context.Context) ([]HandleInfo, error)
	GetHandle(ctx context.Context, name string) (*HandleInfo, error)
	ExportBackup(ctx context.Context) (*domain.Backup, error)
	ExportCertificate(ctx context.Context, name string) (*domain.Certificate, error)
	ExportHandleRequest(ctx context.Context, name string) (*domain.HandleRequest, error)

	MasterPrivateKey(ctx context.Context) (string, error)
}

type keystoreService struct {
	repo    domain.KeystoreRepository
	secrets ports.SecretStore

	lock     sync.Mutex
	keystore *domain.Keystore
}

func NewKeystoreService(
	repo domain.KeystoreRepository, secrets ports.SecretStore,
) KeystoreService {
	return &keystoreService{
		repo:    repo,
		secrets: secrets,
	}
}

func (s *keystoreService) GenSeed(_ context.Context) (string, error) {
	return wallet.GenerateSecret()
}

func (s *keystoreService) IsInitialized(ctx context.Context) (bool, error) {
	if _, err := s.Get(ctx); err != nil {
		if errors.Is(err, domain.ErrKeystoreNotInitialized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *keystoreService) Initialize(ctx context.Context, mnemonic string) error {
	xprv, err := masterKeyFromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	return s.initialize(ctx, xprv, nil)
}

func (s *keystoreService) Restore(
	ctx context.Context, mnemonic string, backup domain.Backup,
) error {
	xprv, err := masterKeyFromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	xpub, err := wallet.MasterPublicKey(xprv)
	if err != nil {
		return err
	}
	if xpub != backup.MasterPublicKey {
		return domain.ErrSecretMismatch
	}
	return s.initialize(ctx, xprv, backup.Handles)
}

func (s *keystoreService) VerifySecret(ctx context.Context, mnemonic string) error {
	k, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if !wallet.ValidateSecret(mnemonic) {
		return fmt.Errorf("%w: %s", domain.ErrValidation, wallet.ErrInvalidMnemonic)
	}
	xpub, err := wallet.MasterPublicKeyFromSecret(mnemonic)
	if err != nil {
		return err
	}
	if xpub != k.MasterPublicKey {
		return domain.ErrSecretMismatch
	}
	return nil
}

func (s *keystoreService) Teardown(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.repo.DeleteKeystore(ctx); err != nil {
		return err
	}
	s.keystore = nil
	if err := s.secrets.RemoveSecret(ctx); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSecureStorage, err)
	}
	log.Info("keystore removed")
	return nil
}

// Get returns a copy of the last published keystore, loading it from the
// repository the first time.
func (s *keystoreService) Get(ctx context.Context) (*domain.Keystore, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.keystore == nil {
		k, err := s.repo.GetKeystore(ctx)
		if err != nil {
			return nil, err
		}
		s.keystore = k
	}
	return s.keystore.Clone(), nil
}

// Mutate applies fn to a copy of the stored keystore. The result is checked
// against the stored state, persisted, and only then published. Nothing
// changes if fn fails or reports no change.
func (s *keystoreService) Mutate(
	ctx context.Context, fn MutateFn,
) (*domain.Keystore, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var result *domain.Keystore
	if err := s.repo.UpdateKeystore(
		ctx,
		func(stored *domain.Keystore) (*domain.Keystore, error) {
			next := stored.Clone()
			changed, err := fn(next)
			if err != nil {
				return nil, err
			}
			if !changed {
				result = stored
				return nil, nil
			}
			if err := stored.CheckTransition(next); err != nil {
				return nil, err
			}
			result = next
			return next, nil
		},
	); err != nil {
		return nil, err
	}

	s.keystore = result
	return result.Clone(), nil
}

func (s *keystoreService) CreateHandle(
	ctx context.Context, name string,
) (string, *domain.HandleRecord, error) {
	name, err := domain.ParseHandleName(name)
	if err != nil {
		return "", nil, err
	}

	var record domain.HandleRecord
	if _, err := s.Mutate(ctx, func(k *domain.Keystore) (bool, error) {
		r, created, err := k.CreateHandle(name)
		if err != nil {
			return false, err
		}
		record = r
		return created, nil
	}); err != nil {
		return "", nil, err
	}

	log.WithFields(log.Fields{
		"handle": name,
		"path":   record.DerivationPath,
	}).Debug("handle added")
	return name, &record, nil
}

func (s *keystoreService) RemoveHandle(
	ctx context.Context, name string,
) (bool, error) {
	name = domain.NormalizeHandleName(name)

	var removed bool
	if _, err := s.Mutate(ctx, func(k *domain.Keystore) (bool, error) {
		removed = k.RemoveHandle(name)
		return removed, nil
	}); err != nil {
		return false, err
	}
	return removed, nil
}

func (s *keystoreService) SetCertificate(
	ctx context.Context, name string, data *domain.CertificateData,
) (bool, error) {
	name = domain.NormalizeHandleName(name)

	var found bool
	if _, err := s.Mutate(ctx, func(k *domain.Keystore) (bool, error) {
		record, ok := k.Handle(name)
		found = ok
		if !ok || sameCertificate(record.Certificate, data) {
			return false, nil
		}
		return k.SetCertificate(name, data)
	}); err != nil {
		return false, err
	}
	return found, nil
}

// ImportCertificate stores a certificate obtained out of band. It must be
// bound to a local handle and to the script derived for it.
func (s *keystoreService) ImportCertificate(
	ctx context.Context, cert domain.Certificate,
) error {
	name := domain.NormalizeHandleName(cert.Handle)
	data := cert.Data()
	_, err := s.Mutate(ctx, func(k *domain.Keystore) (bool, error) {
		script, err := k.HandleScript(name)
		if err != nil {
			return false, err
		}
		if !cert.IsBoundTo(name, script) {
			return false, domain.ErrCertificateMismatch
		}
		record, _ := k.Handle(name)
		if sameCertificate(record.Certificate, &data) {
			return false, nil
		}
		return k.SetCertificate(name, &data)
	})
	return err
}

func (s *keystoreService) ListHandles(ctx context.Context) ([]HandleInfo, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	names := k.HandleNames()
	list := make([]HandleInfo, 0, len(names))
	for _, name := range names {
		info, err := handleInfo(k, name)
		if err != nil {
			return nil, err
		}
		list = append(list, *info)
	}
	return list, nil
}

func (s *keystoreService) GetHandle(
	ctx context.Context, name string,
) (*HandleInfo, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return handleInfo(k, domain.NormalizeHandleName(name))
}

func (s *keystoreService) ExportBackup(ctx context.Context) (*domain.Backup, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	backup := k.ToBackup()
	return &backup, nil
}

func (s *keystoreService) ExportCertificate(
	ctx context.Context, name string,
) (*domain.Certificate, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return k.Certificate(domain.NormalizeHandleName(name))
}

func (s *keystoreService) ExportHandleRequest(
	ctx context.Context, name string,
) (*domain.HandleRequest, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	name = domain.NormalizeHandleName(name)
	script, err := k.HandleScript(name)
	if err != nil {
		return nil, err
	}
	return &domain.HandleRequest{Handle: name, ScriptPubkey: script}, nil
}

// MasterPrivateKey loads the master secret and checks that it still derives
// the keystore master public key.
func (s *keystoreService) MasterPrivateKey(ctx context.Context) (string, error) {
	k, err := s.Get(ctx)
	if err != nil {
		return "", err
	}

	xprv, err := s.secrets.GetSecret(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSecureStorage, err)
	}
	xpub, err := wallet.MasterPublicKey(xprv)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSecureStorage, err)
	}
	if xpub != k.MasterPublicKey {
		return "", ErrSecretNotMatchingKeystore
	}
	return xprv, nil
}

func (s *keystoreService) initialize(
	ctx context.Context, xprv string, handles map[string]domain.HandleRecord,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, err := s.repo.GetKeystore(ctx); err == nil {
		return domain.ErrKeystoreAlreadyInitialized
	} else if !errors.Is(err, domain.ErrKeystoreNotInitialized) {
		return err
	}

	xpub, err := wallet.MasterPublicKey(xprv)
	if err != nil {
		return err
	}
	k, err := domain.NewKeystore(xpub, handles)
	if err != nil {
		return err
	}

	if err := s.secrets.SetSecret(ctx, xprv); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSecureStorage, err)
	}
	if err := s.repo.AddKeystore(ctx, *k); err != nil {
		if rerr := s.secrets.RemoveSecret(ctx); rerr != nil {
			log.WithError(rerr).Warn("failed to roll back master secret")
		}
		return err
	}

	s.keystore = k
	log.WithField("handles", len(k.Handles)).Info("keystore initialized")
	return nil
}

// HandleInfo is the public view of a local handle.
type HandleInfo struct {
	Handle         string
	DerivationPath string
	PublicKey      string
	NPub           string
	ScriptPubkey   string
	Certificate    *domain.CertificateData
}

func handleInfo(k *domain.Keystore, name string) (*HandleInfo, error) {
	record, ok := k.Handle(name)
	if !ok {
		return nil, domain.ErrHandleNotFound
	}
	pubkey, err := k.HandlePublicKey(name)
	if err != nil {
		return nil, err
	}
	npub, err := nostrutil.NPub(hex.EncodeToString(pubkey))
	if err != nil {
		return nil, err
	}
	script, err := wallet.ScriptHexForPublicKey(pubkey)
	if err != nil {
		return nil, err
	}
	return &HandleInfo{
		Handle:         name,
		DerivationPath: record.DerivationPath,
		PublicKey:      hex.EncodeToString(pubkey),
		NPub:           npub,
		ScriptPubkey:   script,
		Certificate:    record.Certificate,
	}, nil
}

func masterKeyFromMnemonic(mnemonic string) (string, error) {
	if !wallet.ValidateSecret(mnemonic) {
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, wallet.ErrInvalidMnemonic)
	}
	return wallet.MasterPrivateKey(mnemonic)
}

func sameCertificate(a, b *domain.CertificateData) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
