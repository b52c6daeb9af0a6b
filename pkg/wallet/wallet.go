// Package wallet derives every handle key of a keystore from a single BIP39
// mnemonic. Keys live under the BIP32 branch m/35053/0/0 and are exposed in
// BIP340 x-only form along with their segwit v1 output script.
package wallet

import (
	"errors"
)

var (
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic must not be null")
	// ErrNullExtendedKey ...
	ErrNullExtendedKey = errors.New("extended key must not be null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidHandlePath ...
	ErrInvalidHandlePath = errors.New(
		"handle derivation path must be in the form \"m/35053/0/0/index\"",
	)
	// ErrNotPublicExtendedKey ...
	ErrNotPublicExtendedKey = errors.New("extended key must be a public key")
	// ErrInvalidPublicKey ...
	ErrInvalidPublicKey = errors.New("public key must be a 32 byte x-only key")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)

	// ErrEntropySource is returned when the system cannot provide secure
	// randomness for a new mnemonic.
	ErrEntropySource = errors.New("secure entropy source unavailable")
	// ErrDerivation is returned when a derived node lacks the requested key
	// material, for example a private key below a neutered parent.
	ErrDerivation = errors.New("key derivation failed")
)
