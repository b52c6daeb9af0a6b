package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// MasterPrivateKey returns the BIP32 master extended private key (xprv) of
// the given mnemonic. The seed is derived with an empty passphrase.
func MasterPrivateKey(mnemonic string) (string, error) {
	seed, err := generateSeedFromMnemonic(mnemonic)
	if err != nil {
		return "", err
	}
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return "", err
	}
	return masterKey.String(), nil
}

// MasterPublicKey returns the neutered form (xpub) of the given extended
// private key.
func MasterPublicKey(xprv string) (string, error) {
	masterKey, err := parseExtendedKey(xprv)
	if err != nil {
		return "", err
	}
	if !masterKey.IsPrivate() {
		return "", fmt.Errorf("%w: %s", ErrDerivation, hdkeychain.ErrNotPrivExtKey)
	}
	xpub, err := masterKey.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

// MasterPublicKeyFromSecret returns the master xpub of the given mnemonic.
func MasterPublicKeyFromSecret(mnemonic string) (string, error) {
	xprv, err := MasterPrivateKey(mnemonic)
	if err != nil {
		return "", err
	}
	return MasterPublicKey(xprv)
}

// ValidateMasterPublicKey checks that xpub is a neutered extended key.
func ValidateMasterPublicKey(xpub string) error {
	key, err := parseExtendedKey(xpub)
	if err != nil {
		return err
	}
	if key.IsPrivate() {
		return ErrNotPublicExtendedKey
	}
	return nil
}

// DerivePrivateKey derives the 32-byte private key at the given path.
func DerivePrivateKey(xprv string, path DerivationPath) ([]byte, error) {
	node, err := deriveNode(xprv, path)
	if err != nil {
		return nil, err
	}
	privateKey, err := node.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDerivation, err)
	}
	return privateKey.Serialize(), nil
}

// DerivePublicKey derives the 32-byte x-only public key at the given path.
// Both extended public and private keys are accepted.
func DerivePublicKey(xpub string, path DerivationPath) ([]byte, error) {
	node, err := deriveNode(xpub, path)
	if err != nil {
		return nil, err
	}
	publicKey, err := node.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDerivation, err)
	}
	return schnorr.SerializePubKey(publicKey), nil
}

func deriveNode(key string, path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	if len(path) <= 0 {
		return nil, ErrNullDerivationPath
	}
	node, err := parseExtendedKey(key)
	if err != nil {
		return nil, err
	}
	for _, step := range path {
		node, err = node.Derive(step)
		if err != nil {
			if errors.Is(err, hdkeychain.ErrDeriveHardFromPublic) {
				return nil, fmt.Errorf("%w: %s", ErrDerivation, err)
			}
			return nil, err
		}
	}
	return node, nil
}

func parseExtendedKey(key string) (*hdkeychain.ExtendedKey, error) {
	if key == "" {
		return nil, ErrNullExtendedKey
	}
	return hdkeychain.NewKeyFromString(key)
}
