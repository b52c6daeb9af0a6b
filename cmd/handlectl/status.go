package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/config"
	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var status = cli.Command{
	Name:      "status",
	Usage:     "fetch the registry status of one or all handles and store new certificates",
	ArgsUsage: "[label@space]",
	Action:    statusAction,
}

var watch = cli.Command{
	Name:      "watch",
	Usage:     "poll the registry until one or all handles are settled",
	ArgsUsage: "[label@space]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "metrics",
			Usage: "serve prometheus metrics on <host:port>",
		},
	},
	Action: watchAction,
}

type outcomeView struct {
	Handle         string          `json:"handle"`
	Verdict        string          `json:"verdict"`
	Status         json.RawMessage `json:"status,omitempty"`
	ExpectedScript string          `json:"expected_script,omitempty"`
	Removable      bool            `json:"removable,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func newOutcomeView(o application.Outcome) outcomeView {
	view := outcomeView{
		Handle:         o.Handle,
		Verdict:        o.Verdict.String(),
		ExpectedScript: o.ExpectedScript,
		Removable:      o.Removable,
	}
	if o.Status != nil {
		if buf, err := domain.MarshalHandleStatus(o.Status); err == nil {
			view.Status = buf
		}
	}
	if o.Err != nil {
		view.Error = describeError(o.Err)
	}
	return view
}

func printOutcome(o application.Outcome) {
	printJSON(newOutcomeView(o))
}

func statusAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := state.ReconcilerService()
	if ctx.NArg() > 0 {
		outcome, err := svc.Reconcile(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		printOutcome(*outcome)
		return nil
	}

	outcomes, err := svc.ReconcileAll(ctx.Context)
	if err != nil {
		return err
	}
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		views = append(views, newOutcomeView(o))
	}
	printJSON(views)
	return nil
}

func watchAction(ctx *cli.Context) error {
	state, cleanup, err := getAppState(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ctx.String("metrics")
	if addr == "" {
		addr = config.GetString(config.MetricsAddrKey)
	}
	if addr != "" {
		srv := serveMetrics(addr, state.metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	svc := state.ReconcilerService()
	if ctx.NArg() > 0 {
		_, err := svc.Watch(sigCtx, ctx.Args().First(), time.Time{}, printOutcome)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return svc.WatchAll(sigCtx, printOutcome)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	return srv
}
