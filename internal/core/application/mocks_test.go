package application_test

import (
	"context"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// **** Registry ****

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) ProposedHandles(
	ctx context.Context, query string,
) ([]string, error) {
	args := m.Called(ctx, query)

	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockRegistry) HandleStatuses(
	ctx context.Context, handles []string,
) ([]domain.HandleStatus, error) {
	args := m.Called(ctx, handles)

	var res []domain.HandleStatus
	if a := args.Get(0); a != nil {
		res = a.([]domain.HandleStatus)
	}
	return res, args.Error(1)
}

func (m *mockRegistry) Reserve(
	ctx context.Context, handle, scriptPubkey, paymentMethod string,
) (*ports.Reservation, error) {
	args := m.Called(ctx, handle, scriptPubkey, paymentMethod)

	var res *ports.Reservation
	if a := args.Get(0); a != nil {
		res = a.(*ports.Reservation)
	}
	return res, args.Error(1)
}

func (m *mockRegistry) Claim(
	ctx context.Context, handle, scriptPubkey, purchaseToken string,
) (*ports.ClaimResult, error) {
	args := m.Called(ctx, handle, scriptPubkey, purchaseToken)

	var res *ports.ClaimResult
	if a := args.Get(0); a != nil {
		res = a.(*ports.ClaimResult)
	}
	return res, args.Error(1)
}

// **** Purchase backend ****

type mockPurchaseBackend struct {
	mock.Mock
}

func (m *mockPurchaseBackend) Purchase(
	ctx context.Context, productID string,
) (*ports.Purchase, error) {
	args := m.Called(ctx, productID)

	var res *ports.Purchase
	if a := args.Get(0); a != nil {
		res = a.(*ports.Purchase)
	}
	return res, args.Error(1)
}

func (m *mockPurchaseBackend) Finish(
	ctx context.Context, purchase ports.Purchase,
) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

// **** Secret store ****

type failingSecretStore struct {
	ports.SecretStore
	err error
}

func (s failingSecretStore) SetSecret(context.Context, string) error {
	return s.err
}
