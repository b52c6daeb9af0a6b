package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/atbitcoin/handlekeeper/internal/config"
	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/atbitcoin/handlekeeper/internal/infrastructure/purchase/noop"
	httpregistry "github.com/atbitcoin/handlekeeper/internal/infrastructure/registry/http"
	boltsecurestore "github.com/atbitcoin/handlekeeper/internal/infrastructure/securestore/bolt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "handlectl"
	app.Usage = "Command line interface to manage @bitcoin handles and their keys"
	app.Before = func(*cli.Context) error {
		return config.InitConfig()
	}
	app.Commands = append(
		app.Commands,
		&genseed,
		&initkeystore,
		&restore,
		&verifyseed,
		&exportkeystore,
		&changepassword,
		&teardown,
		&addhandle,
		&removehandle,
		&listhandles,
		&showhandle,
		&status,
		&watch,
		&suggest,
		&reserve,
		&buy,
		&claim,
		&importcert,
		&exportcert,
		&exportrequest,
		&signnostr,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

// appState holds the services of a single command run.
type appState struct {
	*application.Config
	secrets boltsecurestore.SecureStore
	metrics *prometheus.Registry
}

func getAppState(ctx *cli.Context) (*appState, func(), error) {
	secrets, err := boltsecurestore.NewSecureStore(
		config.GetSecretDir(), config.SecretFilename,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open secret store: %w", err)
	}

	registry, err := httpregistry.NewRegistryClient(httpregistry.Config{
		BaseURL:        config.GetString(config.RegistryURLKey),
		RequestTimeout: config.GetSeconds(config.RegistryTimeoutKey),
		RateLimit:      config.GetInt(config.RegistryRateLimitKey),
	})
	if err != nil {
		_ = secrets.Close()
		return nil, nil, err
	}

	var backend ports.PurchaseBackend = noop.Unavailable{}
	if ctx.Bool("noop-purchase") {
		backend = noop.NewPurchaseBackend()
	}

	reg := prometheus.NewRegistry()
	appCfg := &application.Config{
		DBType:          config.GetString(config.DBTypeKey),
		DBConfig:        config.GetDbDir(),
		SecretStore:     secrets,
		RegistryClient:  registry,
		PurchaseBackend: backend,
		PaymentMethod:   config.GetString(config.PaymentMethodKey),
		PollInterval:    config.GetSeconds(config.PollIntervalKey),
		MaxConcurrency:  config.GetInt(config.MaxConcurrencyKey),
		Metrics:         application.NewMetrics(reg),
	}
	if err := appCfg.Validate(); err != nil {
		appCfg.Close()
		return nil, nil, err
	}

	state := &appState{appCfg, secrets, reg}
	return state, appCfg.Close, nil
}

// unlock opens the secret store, creating its encryption key on first use.
func (s *appState) unlock() error {
	if !s.secrets.IsLocked() {
		return nil
	}
	password, err := readPassword("secret store password: ")
	if err != nil {
		return err
	}
	return s.secrets.CreateUnlock(&password)
}

func printJSON(resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}
	fmt.Println(string(buf))
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[handlectl] %s\n", describeError(err))
	}
	os.Exit(1)
}
