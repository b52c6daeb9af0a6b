package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the core wraps one of these so that
// callers can tell apart what to show to the user.
var (
	// ErrValidation is a malformed input or registry response. It is never
	// partially applied.
	ErrValidation = errors.New("validation failure")
	// ErrConflict means the registry contradicts the locally derived key.
	ErrConflict = errors.New("conflict with another key")
	// ErrNetwork is a transient transport failure, safe to retry.
	ErrNetwork = errors.New("network failure")
	// ErrSecureStorage is a failure of the secret store. It is fatal for the
	// operation that needs the master key.
	ErrSecureStorage = errors.New("secure storage failure")
	// ErrNotYetAvailable is returned for data the registry has not issued yet,
	// ie. a certificate of a handle still being processed.
	ErrNotYetAvailable = errors.New("not yet available")
)

var (
	// ErrReservedByOtherKey ...
	ErrReservedByOtherKey = fmt.Errorf("%w: handle is reserved by a different key", ErrConflict)
	// ErrOwnedByOtherKey ...
	ErrOwnedByOtherKey = fmt.Errorf("%w: handle belongs to a different key", ErrConflict)

	// ErrInvalidHandleName ...
	ErrInvalidHandleName = fmt.Errorf("%w: invalid handle name", ErrValidation)
	// ErrInvalidCertificate ...
	ErrInvalidCertificate = fmt.Errorf("%w: invalid certificate", ErrValidation)
	// ErrInvalidHandleStatus ...
	ErrInvalidHandleStatus = fmt.Errorf("%w: invalid handle status", ErrValidation)
	// ErrInvalidHandle is the registry verdict for a name it will never
	// accept.
	ErrInvalidHandle = fmt.Errorf("%w: handle is not valid for the registry", ErrValidation)
	// ErrInvalidKeystore ...
	ErrInvalidKeystore = fmt.Errorf("%w: invalid keystore", ErrValidation)
	// ErrCertificateMismatch is returned when a certificate is not bound to the
	// locally derived script of its handle.
	ErrCertificateMismatch = fmt.Errorf("%w: invalid handle / pubkey combination", ErrValidation)
	// ErrSecretMismatch ...
	ErrSecretMismatch = fmt.Errorf("%w: seed phrase does not match the keystore", ErrValidation)

	// ErrKeystoreAlreadyInitialized ...
	ErrKeystoreAlreadyInitialized = errors.New("keystore is already initialized")
	// ErrKeystoreNotInitialized ...
	ErrKeystoreNotInitialized = errors.New("keystore is not initialized")
	// ErrMasterKeyImmutable ...
	ErrMasterKeyImmutable = errors.New("master public key must not change")
	// ErrHandleNotFound ...
	ErrHandleNotFound = errors.New("handle not found in keystore")
	// ErrPathIndexReused ...
	ErrPathIndexReused = errors.New("derivation path index must strictly increase")
)
