package application

import (
	"fmt"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	dbbadger "github.com/atbitcoin/handlekeeper/internal/infrastructure/storage/db/badger"
	"github.com/atbitcoin/handlekeeper/internal/infrastructure/storage/db/inmemory"
	log "github.com/sirupsen/logrus"
)

const (
	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
	}
)

// Config wires the application services together. Services are created
// lazily on first use and shared afterwards.
type Config struct {
	DBType   string
	DBConfig interface{}

	SecretStore     ports.SecretStore
	RegistryClient  ports.RegistryClient
	PurchaseBackend ports.PurchaseBackend
	PaymentMethod   string
	PollInterval    time.Duration
	MaxConcurrency  int
	Metrics         *Metrics

	repo       domain.KeystoreRepository
	keystore   KeystoreService
	reconciler ReconcilerService
	purchase   PurchaseService
	signer     SignerService
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("db type %q not supported", c.DBType)
	}
	if c.SecretStore == nil {
		return fmt.Errorf("missing secret store")
	}
	if c.RegistryClient == nil {
		return fmt.Errorf("missing registry client")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	return nil
}

func (c *Config) KeystoreRepository() domain.KeystoreRepository {
	repo, _ := c.repoManager()
	return repo
}

func (c *Config) KeystoreService() KeystoreService {
	if c.keystore == nil {
		c.keystore = NewKeystoreService(c.KeystoreRepository(), c.SecretStore)
	}
	return c.keystore
}

func (c *Config) ReconcilerService() ReconcilerService {
	if c.reconciler == nil {
		c.reconciler = NewReconcilerService(
			c.KeystoreService(), c.RegistryClient, ReconcilerOpts{
				PollInterval:   c.PollInterval,
				MaxConcurrency: c.MaxConcurrency,
				Metrics:        c.Metrics,
			},
		)
	}
	return c.reconciler
}

func (c *Config) PurchaseService() PurchaseService {
	if c.purchase == nil {
		c.purchase = NewPurchaseService(
			c.KeystoreService(), c.ReconcilerService(), c.RegistryClient,
			c.PurchaseBackend, c.PaymentMethod,
		)
	}
	return c.purchase
}

func (c *Config) SignerService() SignerService {
	if c.signer == nil {
		c.signer = NewSignerService(c.KeystoreService())
	}
	return c.signer
}

// Close releases the repository and the secret store.
func (c *Config) Close() {
	if c.repo != nil {
		c.repo.Close()
	}
	if c.SecretStore != nil {
		if err := c.SecretStore.Close(); err != nil {
			log.WithError(err).Warn("failed to close secret store")
		}
	}
}

func (c *Config) repoManager() (domain.KeystoreRepository, error) {
	if c.repo == nil {
		switch c.DBType {
		case DBBadger:
			datadir, _ := c.DBConfig.(string)
			logger := log.New()
			logger.SetLevel(log.WarnLevel)
			repo, err := dbbadger.NewKeystoreRepository(datadir, logger)
			if err != nil {
				return nil, err
			}
			c.repo = repo
		case DBInMemory:
			c.repo = inmemory.NewKeystoreRepository()
		default:
			return nil, fmt.Errorf("db type %q not supported", c.DBType)
		}
	}
	return c.repo, nil
}
