package main

import (
	"errors"
	"fmt"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
)

const (
	classNotYetAvailable = "not yet available"
	classConflict        = "conflict with another key"
	classFailure         = "network/validation failure"
)

// errorClass maps err to the category shown to the user, if any.
func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotYetAvailable):
		return classNotYetAvailable
	case errors.Is(err, domain.ErrConflict):
		return classConflict
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrValidation):
		return classFailure
	default:
		return ""
	}
}

func describeError(err error) string {
	if class := errorClass(err); class != "" {
		return fmt.Sprintf("%s: %v", class, err)
	}
	return err.Error()
}
