package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// NewMnemonicOpts is the struct given to the NewMnemonic method.
type NewMnemonicOpts struct {
	EntropySize int
}

func (o NewMnemonicOpts) validate() error {
	if o.EntropySize > 0 {
		if o.EntropySize < 128 || o.EntropySize > 256 || o.EntropySize%32 != 0 {
			return ErrInvalidEntropySize
		}
	}
	if o.EntropySize < 0 {
		return ErrInvalidEntropySize
	}
	return nil
}

// NewMnemonic returns a new mnemonic phrase. A zero EntropySize defaults to
// 128 bits, ie. 12 words.
func NewMnemonic(opts NewMnemonicOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if opts.EntropySize == 0 {
		opts.EntropySize = 128
	}

	return generateMnemonic(opts.EntropySize)
}

// GenerateSecret returns a fresh 12-word mnemonic.
func GenerateSecret() (string, error) {
	return NewMnemonic(NewMnemonicOpts{})
}

// ValidateSecret checks the mnemonic words and checksum against the english
// wordlist.
func ValidateSecret(mnemonic string) bool {
	mnemonic = normalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return false
	}
	return bip39.IsMnemonicValid(mnemonic)
}

func generateMnemonic(entropySize int) (string, error) {
	entropy, err := bip39.NewEntropy(entropySize)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEntropySource, err)
	}
	return bip39.NewMnemonic(entropy)
}

func generateSeedFromMnemonic(mnemonic string) ([]byte, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return nil, ErrNullMnemonic
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}
