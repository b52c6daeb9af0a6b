package wallet

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// HandlePurpose is the first level of every handle derivation path.
	HandlePurpose = 35053
)

// DerivationPath is the internal representation of a hierarchical
// deterministic derivation path.
type DerivationPath []uint32

var (
	// HandleBaseDerivationPath m/35053/0/0
	HandleBaseDerivationPath = DerivationPath{HandlePurpose, 0, 0}
)

// HandleDerivationPath returns the path of the handle key with the given
// index, ie. m/35053/0/0/<index>.
func HandleDerivationPath(index uint32) DerivationPath {
	path := make(DerivationPath, 0, len(HandleBaseDerivationPath)+1)
	path = append(path, HandleBaseDerivationPath...)
	return append(path, index)
}

// HandleIndex returns the leaf index of a handle derivation path. Any path
// that is not a non-hardened child of m/35053/0/0 is rejected.
func HandleIndex(strPath string) (uint32, error) {
	path, err := ParseDerivationPath(strPath)
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(strings.TrimSpace(strPath), "m") {
		return 0, ErrInvalidHandlePath
	}
	if len(path) != len(HandleBaseDerivationPath)+1 {
		return 0, ErrInvalidHandlePath
	}
	for i, step := range HandleBaseDerivationPath {
		if path[i] != step {
			return 0, ErrInvalidHandlePath
		}
	}
	index := path[len(path)-1]
	if index >= hdkeychain.HardenedKeyStart {
		return 0, ErrInvalidHandlePath
	}
	return index, nil
}

// ParseDerivationPath converts a derivation path string to the
// internal binary representation
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath

	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath

	case len(elems) > 1:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}

	default:
		return nil, ErrInvalidDerivationPath
	}

	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("%w: invalid elem '%s' in path", ErrInvalidDerivationPath, elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
