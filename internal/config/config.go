package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory where the keystore and the
	// encrypted secret are stored
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// RegistryURLKey is the base url of the handle registry
	RegistryURLKey = "REGISTRY_URL"
	// RegistryTimeoutKey is the timeout in seconds of registry requests
	RegistryTimeoutKey = "REGISTRY_TIMEOUT"
	// RegistryRateLimitKey is the max number of registry requests per second
	RegistryRateLimitKey = "REGISTRY_RATE_LIMIT"
	// PollIntervalKey is the interval in seconds between two status checks
	// while watching handles
	PollIntervalKey = "POLL_INTERVAL"
	// MaxConcurrencyKey is the max number of handles reconciled at once
	MaxConcurrencyKey = "MAX_CONCURRENCY"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// SecretPasswordKey is the password of the encrypted secret store. The
	// CLI prompts for it if not set
	SecretPasswordKey = "SECRET_PASSWORD"
	// PaymentMethodKey is the payment method sent along with reservations
	PaymentMethodKey = "PAYMENT_METHOD"
	// MetricsAddrKey is the <host:port> where prometheus metrics are served
	// while watching, disabled if empty
	MetricsAddrKey = "METRICS_ADDR"

	DbLocation     = "db"
	SecretLocation = "secret"
	SecretFilename = "secret.db"

	defaultRegistryURL = "https://testnet.atbitcoin.com"
	minRegistryTimeout = 3
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("handlekeeper", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("HANDLES")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(RegistryURLKey, defaultRegistryURL)
	vip.SetDefault(RegistryTimeoutKey, 15)
	vip.SetDefault(RegistryRateLimitKey, 5)
	vip.SetDefault(PollIntervalKey, 10)
	vip.SetDefault(MaxConcurrencyKey, 4)
	vip.SetDefault(DBTypeKey, application.DBBadger)
	vip.SetDefault(PaymentMethodKey, ports.PaymentMethodGoogleIAP)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	log.SetLevel(log.Level(GetInt(LogLevelKey)))
	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetSeconds returns the integer value of key as a number of seconds.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetSecretDir() string {
	return filepath.Join(GetDatadir(), SecretLocation)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf(
			"%s must be in range [%d, %d]", LogLevelKey, log.PanicLevel, log.TraceLevel,
		)
	}

	registryURL, err := url.Parse(GetString(RegistryURLKey))
	if err != nil || !registryURL.IsAbs() ||
		(registryURL.Scheme != "http" && registryURL.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) url", RegistryURLKey)
	}

	if GetInt(RegistryTimeoutKey) < minRegistryTimeout {
		return fmt.Errorf(
			"%s must be at least %d seconds", RegistryTimeoutKey, minRegistryTimeout,
		)
	}
	if GetInt(RegistryRateLimitKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", RegistryRateLimitKey)
	}
	if GetInt(PollIntervalKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", PollIntervalKey)
	}
	if GetInt(MaxConcurrencyKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", MaxConcurrencyKey)
	}

	dbType := GetString(DBTypeKey)
	if _, ok := application.SupportedDBType[dbType]; !ok {
		return fmt.Errorf("%s %q not supported", DBTypeKey, dbType)
	}

	if GetString(PaymentMethodKey) == "" {
		return fmt.Errorf("missing %s", PaymentMethodKey)
	}

	return nil
}

func initDatadir() error {
	for _, dir := range []string{GetDbDir(), GetSecretDir()} {
		if err := makeDirectoryIfNotExists(dir); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0700)
	}
	return nil
}
