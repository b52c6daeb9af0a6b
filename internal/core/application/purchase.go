package application

import (
	"context"
	"fmt"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// Reservation is a registry reservation along with its local reading.
type Reservation struct {
	Deadline  time.Time
	ProductID string
	Outcome   Outcome
}

// PurchaseService drives the reservation, payment and claim of a handle.
type PurchaseService interface {
	// Suggest returns handles proposed by the registry for query. It never
	// fails: an unreachable registry yields no suggestions.
	Suggest(ctx context.Context, query string) []string
	Reserve(ctx context.Context, handle string) (*Reservation, error)
	// Buy reserves handle, pays for it through the purchase backend, claims
	// it and watches it until it is certified or the reservation lapses.
	Buy(ctx context.Context, handle string, onOutcome func(Outcome)) (*Outcome, error)
	// Claim submits an externally obtained purchase token.
	Claim(ctx context.Context, handle, purchaseToken string) (*Outcome, error)
}

type purchaseService struct {
	keystore      KeystoreService
	reconciler    ReconcilerService
	registry      ports.RegistryClient
	backend       ports.PurchaseBackend
	paymentMethod string
}

func NewPurchaseService(
	keystore KeystoreService,
	reconciler ReconcilerService,
	registry ports.RegistryClient,
	backend ports.PurchaseBackend,
	paymentMethod string,
) PurchaseService {
	if paymentMethod == "" {
		paymentMethod = ports.PaymentMethodGoogleIAP
	}
	return &purchaseService{
		keystore:      keystore,
		reconciler:    reconciler,
		registry:      registry,
		backend:       backend,
		paymentMethod: paymentMethod,
	}
}

func (p *purchaseService) Suggest(ctx context.Context, query string) []string {
	handles, err := p.registry.ProposedHandles(ctx, query)
	if err != nil {
		log.WithError(err).Debug("failed to fetch suggestions")
		return []string{}
	}
	return handles
}

func (p *purchaseService) Reserve(
	ctx context.Context, handle string,
) (*Reservation, error) {
	handle, script, err := p.handleScript(ctx, handle)
	if err != nil {
		return nil, err
	}

	res, err := p.registry.Reserve(ctx, handle, script, p.paymentMethod)
	if err != nil {
		return nil, err
	}
	if res.Status == nil || res.Status.HandleName() != handle {
		return nil, fmt.Errorf(
			"%w: reservation not reported for %s", domain.ErrInvalidHandleStatus,
			handle,
		)
	}
	outcome, err := p.reconciler.Apply(ctx, res.Status)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"handle":   handle,
		"product":  res.ProductID,
		"deadline": res.Deadline,
	}).Info("handle reserved")
	return &Reservation{
		Deadline:  time.Unix(res.Deadline, 0),
		ProductID: res.ProductID,
		Outcome:   *outcome,
	}, nil
}

func (p *purchaseService) Buy(
	ctx context.Context, handle string, onOutcome func(Outcome),
) (*Outcome, error) {
	if p.backend == nil {
		return nil, ErrMissingPurchaseBackend
	}

	reservation, err := p.Reserve(ctx, handle)
	if err != nil {
		return nil, err
	}
	handle = reservation.Outcome.Handle
	if reservation.Outcome.Verdict != VerdictAwaitingPayment {
		// Nothing to pay: the handle is either ours already or not for sale.
		return &reservation.Outcome, reservation.Outcome.Err
	}

	purchase, err := p.backend.Purchase(ctx, reservation.ProductID)
	if err != nil {
		return nil, err
	}

	outcome, err := p.claim(ctx, handle, reservation.Outcome.ExpectedScript, purchase.Token)
	if err != nil {
		return nil, err
	}
	if err := p.backend.Finish(ctx, *purchase); err != nil {
		log.WithError(err).WithField("handle", handle).Warn("failed to finish purchase")
	}
	if onOutcome != nil {
		onOutcome(*outcome)
	}
	if outcome.IsTerminal() {
		return outcome, outcome.Err
	}

	return p.reconciler.Watch(ctx, handle, reservation.Deadline, onOutcome)
}

func (p *purchaseService) Claim(
	ctx context.Context, handle, purchaseToken string,
) (*Outcome, error) {
	handle, script, err := p.handleScript(ctx, handle)
	if err != nil {
		return nil, err
	}
	return p.claim(ctx, handle, script, purchaseToken)
}

func (p *purchaseService) claim(
	ctx context.Context, handle, script, purchaseToken string,
) (*Outcome, error) {
	res, err := p.registry.Claim(ctx, handle, script, purchaseToken)
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrClaimRefused, res.Error)
	}
	if res.Status == nil {
		return p.reconciler.Reconcile(ctx, handle)
	}
	if res.Status.HandleName() != handle {
		return nil, fmt.Errorf(
			"%w: claim reported for %s", domain.ErrInvalidHandleStatus,
			res.Status.HandleName(),
		)
	}
	return p.reconciler.Apply(ctx, res.Status)
}

func (p *purchaseService) handleScript(
	ctx context.Context, handle string,
) (string, string, error) {
	handle = domain.NormalizeHandleName(handle)
	k, err := p.keystore.Get(ctx)
	if err != nil {
		return "", "", err
	}
	script, err := k.HandleScript(handle)
	if err != nil {
		return "", "", err
	}
	return handle, script, nil
}
