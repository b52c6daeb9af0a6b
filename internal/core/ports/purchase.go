package ports

import (
	"context"
	"errors"
)

// ErrPurchaseUnavailable is returned by backends that cannot take payments
// on this platform.
var ErrPurchaseUnavailable = errors.New("in-app purchases are not available")

// Purchase is a completed payment for a registry product.
type Purchase struct {
	ProductID string
	Token     string
}

// PurchaseBackend is the external payment step of a reservation.
type PurchaseBackend interface {
	// Purchase pays for productID and returns the proof of payment.
	Purchase(ctx context.Context, productID string) (*Purchase, error)
	// Finish acknowledges the purchase once the registry accepted the claim.
	Finish(ctx context.Context, purchase Purchase) error
}
