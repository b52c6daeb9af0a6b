package application

import (
	"context"
	"errors"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

func (r *reconciler) Watch(
	ctx context.Context, handle string, deadline time.Time,
	onOutcome func(Outcome),
) (*Outcome, error) {
	handle = domain.NormalizeHandleName(handle)

	r.metrics.watchStarted()
	defer r.metrics.watchStopped()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		outcome, err := r.Reconcile(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A removed handle or a broken keystore will not recover.
			if errors.Is(err, domain.ErrHandleNotFound) ||
				errors.Is(err, domain.ErrKeystoreNotInitialized) {
				return nil, err
			}
			log.WithError(err).WithField("handle", handle).Warn("poll failed, retrying")
			outcome = &Outcome{Handle: handle, Verdict: VerdictFailed, Err: err}
		}
		if onOutcome != nil {
			onOutcome(*outcome)
		}
		if outcome.IsTerminal() {
			return outcome, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return outcome, ErrReservationExpired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *reconciler) WatchAll(
	ctx context.Context, onOutcome func(Outcome),
) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		outcomes, err := r.ReconcileAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if onOutcome != nil {
			for _, o := range outcomes {
				onOutcome(o)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
