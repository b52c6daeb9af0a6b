package noop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"github.com/thanhpk/randstr"
)

// Backend is a purchase backend that pays for any product without charging
// anything. Tokens are random and only meaningful to a test registry.
type Backend struct {
	lock     sync.Mutex
	pending  map[string]ports.Purchase
	finished map[string]ports.Purchase
}

func NewPurchaseBackend() *Backend {
	return &Backend{
		pending:  make(map[string]ports.Purchase),
		finished: make(map[string]ports.Purchase),
	}
}

func (b *Backend) Purchase(
	_ context.Context, productID string,
) (*ports.Purchase, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, ErrMissingProductID
	}

	purchase := ports.Purchase{
		ProductID: productID,
		Token:     fmt.Sprintf("noop.%s", randstr.Hex(16)),
	}

	b.lock.Lock()
	b.pending[purchase.Token] = purchase
	b.lock.Unlock()

	log.WithField("product", productID).Debug("noop purchase completed")
	return &purchase, nil
}

func (b *Backend) Finish(_ context.Context, purchase ports.Purchase) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.pending[purchase.Token]; !ok {
		return ErrUnknownPurchase
	}
	delete(b.pending, purchase.Token)
	b.finished[purchase.Token] = purchase
	return nil
}

// Finished returns the purchases acknowledged so far.
func (b *Backend) Finished() []ports.Purchase {
	b.lock.Lock()
	defer b.lock.Unlock()

	list := make([]ports.Purchase, 0, len(b.finished))
	for _, p := range b.finished {
		list = append(list, p)
	}
	return list
}

// Unavailable is the backend used where in-app purchases can not be made.
type Unavailable struct{}

func (Unavailable) Purchase(context.Context, string) (*ports.Purchase, error) {
	return nil, ports.ErrPurchaseUnavailable
}

func (Unavailable) Finish(context.Context, ports.Purchase) error {
	return ports.ErrPurchaseUnavailable
}
