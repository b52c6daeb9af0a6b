package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxConcurrency = 4
	defaultPollInterval   = 10 * time.Second
)

// Verdict is the local reading of a registry status.
type Verdict int

const (
	// VerdictFailed means the status could not be obtained or applied.
	VerdictFailed Verdict = iota
	VerdictPurchasable
	VerdictInvalid
	VerdictAwaitingPayment
	VerdictAwaitingCertificate
	VerdictCertified
	VerdictConflict
)

func (v Verdict) String() string {
	switch v {
	case VerdictPurchasable:
		return "purchasable"
	case VerdictInvalid:
		return "invalid"
	case VerdictAwaitingPayment:
		return "awaiting_payment"
	case VerdictAwaitingCertificate:
		return "awaiting_certificate"
	case VerdictCertified:
		return "certified"
	case VerdictConflict:
		return "conflict"
	default:
		return "failed"
	}
}

// Outcome is the result of reconciling one handle. Err is set for failed,
// invalid and conflicting outcomes. Removable tells whether the handle can
// be dropped without losing a certificate.
type Outcome struct {
	Handle         string
	Status         domain.HandleStatus
	Verdict        Verdict
	ExpectedScript string
	Removable      bool
	Err            error
}

// IsTerminal returns whether polling the handle can stop.
func (o Outcome) IsTerminal() bool {
	switch o.Verdict {
	case VerdictCertified, VerdictConflict, VerdictInvalid:
		return true
	default:
		return false
	}
}

// ReconcilerService merges registry statuses into the keystore.
type ReconcilerService interface {
	// Reconcile fetches the status of handle and applies it.
	Reconcile(ctx context.Context, handle string) (*Outcome, error)
	// ReconcileAll reconciles every local handle. Per-handle failures are
	// reported in the outcomes, the error is only for keystore failures.
	ReconcileAll(ctx context.Context) ([]Outcome, error)
	// Apply merges an already fetched status into the keystore.
	Apply(ctx context.Context, status domain.HandleStatus) (*Outcome, error)
	// Watch polls handle until a terminal outcome, the deadline if not zero,
	// or ctx cancellation.
	Watch(
		ctx context.Context, handle string, deadline time.Time,
		onOutcome func(Outcome),
	) (*Outcome, error)
	// WatchAll reconciles all handles at every tick until ctx is done.
	WatchAll(ctx context.Context, onOutcome func(Outcome)) error
	// Conflict returns the conflict last seen for handle, if any.
	Conflict(handle string) error
}

type reconciler struct {
	keystore       KeystoreService
	registry       ports.RegistryClient
	metrics        *Metrics
	pollInterval   time.Duration
	maxConcurrency int

	group singleflight.Group

	lock      sync.RWMutex
	conflicts map[string]error
}

// ReconcilerOpts ...
type ReconcilerOpts struct {
	PollInterval   time.Duration
	MaxConcurrency int
	Metrics        *Metrics
}

func NewReconcilerService(
	keystore KeystoreService,
	registry ports.RegistryClient,
	opts ReconcilerOpts,
) ReconcilerService {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &reconciler{
		keystore:       keystore,
		registry:       registry,
		metrics:        opts.Metrics,
		pollInterval:   pollInterval,
		maxConcurrency: maxConcurrency,
		conflicts:      make(map[string]error),
	}
}

func (r *reconciler) Reconcile(
	ctx context.Context, handle string,
) (*Outcome, error) {
	handle = domain.NormalizeHandleName(handle)

	k, err := r.keystore.Get(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := k.Handle(handle); !ok {
		return nil, domain.ErrHandleNotFound
	}

	status, err := r.fetchStatus(ctx, handle)
	if err != nil {
		r.metrics.observeFetchFailure()
		return nil, err
	}
	return r.Apply(ctx, status)
}

func (r *reconciler) ReconcileAll(ctx context.Context) ([]Outcome, error) {
	k, err := r.keystore.Get(ctx)
	if err != nil {
		return nil, err
	}

	names := k.HandleNames()
	outcomes := make([]Outcome, len(names))

	eg := &errgroup.Group{}
	eg.SetLimit(r.maxConcurrency)
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			outcome, err := r.Reconcile(ctx, name)
			if err != nil {
				outcomes[i] = Outcome{Handle: name, Verdict: VerdictFailed, Err: err}
				log.WithError(err).WithField("handle", name).Warn("failed to reconcile handle")
				return nil
			}
			outcomes[i] = *outcome
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *reconciler) Apply(
	ctx context.Context, status domain.HandleStatus,
) (*Outcome, error) {
	if status == nil {
		return nil, fmt.Errorf("%w: missing status", domain.ErrInvalidHandleStatus)
	}
	name := status.HandleName()

	k, err := r.keystore.Get(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := k.Handle(name)
	if !ok {
		return nil, domain.ErrHandleNotFound
	}
	expected, err := k.HandleScript(name)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Handle:         name,
		Status:         status,
		ExpectedScript: expected,
	}
	removable := !record.HasCertificate()

	switch s := status.(type) {
	case domain.Available:
		outcome.Verdict = VerdictPurchasable
		r.clearConflict(name)
	case domain.Unknown:
		outcome.Verdict = VerdictPurchasable
	case domain.Invalid:
		outcome.Verdict = VerdictInvalid
		outcome.Removable = removable
		outcome.Err = domain.ErrInvalidHandle
	case domain.PendingPayment:
		if s.ScriptPubkey != expected {
			outcome.Verdict = VerdictConflict
			outcome.Removable = removable
			outcome.Err = domain.ErrReservedByOtherKey
			break
		}
		outcome.Verdict = VerdictAwaitingPayment
	case domain.Taken:
		if s.ScriptPubkey == "" {
			outcome.Verdict = VerdictAwaitingCertificate
			break
		}
		if s.ScriptPubkey != expected {
			outcome.Verdict = VerdictConflict
			outcome.Removable = removable
			outcome.Err = domain.ErrOwnedByOtherKey
			break
		}
		if s.Certificate == nil {
			outcome.Verdict = VerdictAwaitingCertificate
			break
		}
		if !s.Certificate.IsBoundTo(name, expected) {
			return nil, fmt.Errorf("%s: %w", name, domain.ErrCertificateMismatch)
		}
		if err := r.storeCertificate(ctx, name, s); err != nil {
			return nil, err
		}
		outcome.Verdict = VerdictCertified
	default:
		return nil, fmt.Errorf(
			"%w: unsupported status %T", domain.ErrInvalidHandleStatus, status,
		)
	}

	if outcome.Verdict == VerdictConflict {
		r.setConflict(name, outcome.Err)
	}
	r.metrics.observeOutcome(outcome.Verdict)

	log.WithFields(log.Fields{
		"handle":  name,
		"status":  status.Status(),
		"verdict": outcome.Verdict.String(),
	}).Debug("handle reconciled")
	return outcome, nil
}

// storeCertificate re-checks the binding against the record being mutated, so
// a handle re-created under another path never receives the certificate.
func (r *reconciler) storeCertificate(
	ctx context.Context, name string, status domain.Taken,
) error {
	cert := status.Certificate
	data := cert.Data()
	_, err := r.keystore.Mutate(ctx, func(k *domain.Keystore) (bool, error) {
		script, err := k.HandleScript(name)
		if err != nil {
			return false, err
		}
		if status.ScriptPubkey != script || !cert.IsBoundTo(name, script) {
			return false, fmt.Errorf("%s: %w", name, domain.ErrCertificateMismatch)
		}
		record, _ := k.Handle(name)
		if sameCertificate(record.Certificate, &data) {
			return false, nil
		}
		return k.SetCertificate(name, &data)
	})
	return err
}

func (r *reconciler) Conflict(handle string) error {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.conflicts[domain.NormalizeHandleName(handle)]
}

// fetchStatus shares one registry request among concurrent callers for the
// same handle. A cancelled caller stops waiting and ignores the result.
func (r *reconciler) fetchStatus(
	ctx context.Context, handle string,
) (domain.HandleStatus, error) {
	fetchCtx := context.WithoutCancel(ctx)
	resultCh := r.group.DoChan(handle, func() (interface{}, error) {
		statuses, err := r.registry.HandleStatuses(fetchCtx, []string{handle})
		if err != nil {
			return nil, err
		}
		return domain.StatusOf(statuses, handle), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.HandleStatus), nil
	}
}

func (r *reconciler) setConflict(handle string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.conflicts[handle] = err
	r.metrics.setConflicts(len(r.conflicts))
}

func (r *reconciler) clearConflict(handle string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.conflicts, handle)
	r.metrics.setConflicts(len(r.conflicts))
}
