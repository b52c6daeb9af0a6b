package wallet

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
)

// ScriptForPublicKey returns the segwit v1 output script OP_1 <32-byte key>
// locking to the given x-only public key.
func ScriptForPublicKey(pubkey []byte) ([]byte, error) {
	if len(pubkey) != 32 {
		return nil, ErrInvalidPublicKey
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(pubkey).
		Script()
}

// ScriptHexForPublicKey is the hex encoded variant of ScriptForPublicKey.
func ScriptHexForPublicKey(pubkey []byte) (string, error) {
	script, err := ScriptForPublicKey(pubkey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(script), nil
}

// HandleScript derives the x-only key of the handle at the given path and
// returns its output script in hex format.
func HandleScript(xpub string, strPath string) (string, error) {
	if _, err := HandleIndex(strPath); err != nil {
		return "", err
	}
	path, err := ParseDerivationPath(strPath)
	if err != nil {
		return "", err
	}
	pubkey, err := DerivePublicKey(xpub, path)
	if err != nil {
		return "", err
	}
	return ScriptHexForPublicKey(pubkey)
}
