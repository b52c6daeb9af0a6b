package ports

import (
	"context"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

// PaymentMethodGoogleIAP is the only payment method accepted by the
// registry for reservations.
const PaymentMethodGoogleIAP = "google_iap"

// Reservation is the registry response to a reserve request. Deadline is a
// unix timestamp in seconds after which the reservation lapses.
type Reservation struct {
	Deadline  int64
	Status    domain.HandleStatus
	ProductID string
}

// ClaimResult is the registry response to a claim request. Error is the
// optional message of a refused claim.
type ClaimResult struct {
	Status domain.HandleStatus
	Error  string
}

// RegistryClient is the boundary towards the remote handle registry. Every
// response is structurally validated before being returned: transport
// failures wrap domain.ErrNetwork, malformed responses wrap
// domain.ErrValidation.
type RegistryClient interface {
	// ProposedHandles returns handles suggested for query.
	ProposedHandles(ctx context.Context, query string) ([]string, error)
	// HandleStatuses returns the statuses of the given handles. The result
	// may be shorter than handles, see domain.StatusOf.
	HandleStatuses(ctx context.Context, handles []string) ([]domain.HandleStatus, error)
	// Reserve requests a reservation of handle for scriptPubkey.
	Reserve(
		ctx context.Context, handle, scriptPubkey, paymentMethod string,
	) (*Reservation, error)
	// Claim submits the proof of payment of a reservation.
	Claim(
		ctx context.Context, handle, scriptPubkey, purchaseToken string,
	) (*ClaimResult, error)
}
