package httpregistry

import (
	"errors"
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

var (
	// ErrMissingBaseURL ...
	ErrMissingBaseURL = errors.New("missing registry base url")
	// ErrInvalidBaseURL ...
	ErrInvalidBaseURL = errors.New("registry base url must be an absolute http(s) url")
	// ErrTimeoutTooShort ...
	ErrTimeoutTooShort = fmt.Errorf("request timeout must be at least %s", MinRequestTimeout)

	// ErrInvalidResponse is returned for registry responses with an
	// unexpected shape.
	ErrInvalidResponse = fmt.Errorf("%w: invalid registry response", domain.ErrValidation)
	// ErrReservationRejected is returned when the registry refuses a
	// reservation. The message carries the registry reason.
	ErrReservationRejected = fmt.Errorf("%w: reservation rejected", domain.ErrValidation)
)
