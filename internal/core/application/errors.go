package application

import (
	"errors"
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

var (
	// ErrReservationExpired is returned when a watched reservation passes its
	// deadline before the handle is certified.
	ErrReservationExpired = errors.New("reservation deadline passed")
	// ErrClaimRefused is returned when the registry rejects a purchase claim.
	ErrClaimRefused = fmt.Errorf("%w: claim refused by registry", domain.ErrValidation)
	// ErrSecretNotMatchingKeystore is returned when the stored master secret
	// does not derive the keystore master public key.
	ErrSecretNotMatchingKeystore = fmt.Errorf(
		"%w: stored secret does not match the keystore", domain.ErrSecureStorage,
	)
	// ErrMissingPurchaseBackend ...
	ErrMissingPurchaseBackend = errors.New("no purchase backend configured")
)
