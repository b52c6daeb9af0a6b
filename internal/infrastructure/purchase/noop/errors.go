package noop

import "errors"

var (
	// ErrMissingProductID ...
	ErrMissingProductID = errors.New("missing product id")
	// ErrUnknownPurchase ...
	ErrUnknownPurchase = errors.New("purchase not found or already finished")
)
