package domain

import (
	"fmt"
)

// Backup is the exported form of a keystore. It holds public data only.
type Backup struct {
	MasterPublicKey string                  `json:"xpub"`
	Handles         map[string]HandleRecord `json:"handles"`
}

// HandleRequest is what a user hands over to request a handle out of band.
type HandleRequest struct {
	Handle       string `json:"handle"`
	ScriptPubkey string `json:"script_pubkey"`
}

// ParseBackup validates and decodes an exported keystore.
func ParseBackup(buf []byte) (*Backup, error) {
	fields, err := decodeObject(buf, ErrInvalidKeystore)
	if err != nil {
		return nil, err
	}
	xpub, err := fields.stringField("xpub", ErrInvalidKeystore)
	if err != nil {
		return nil, err
	}

	var rawHandles map[string]jsonFields
	if err := fields.field("handles", &rawHandles, ErrInvalidKeystore); err != nil {
		return nil, err
	}

	handles := make(map[string]HandleRecord, len(rawHandles))
	for name, recordFields := range rawHandles {
		if recordFields == nil {
			return nil, fmt.Errorf("%w: handle %s is not an object", ErrInvalidKeystore, name)
		}
		path, err := recordFields.stringField("path", ErrInvalidKeystore)
		if err != nil {
			return nil, fmt.Errorf("handle %s: %w", name, err)
		}
		record := HandleRecord{DerivationPath: path}
		if recordFields.has("cert") {
			data, err := ParseCertificateData(recordFields["cert"])
			if err != nil {
				return nil, fmt.Errorf("%w: handle %s: %s", ErrInvalidKeystore, name, err)
			}
			record.Certificate = data
		}
		handles[name] = record
	}

	return &Backup{MasterPublicKey: xpub, Handles: handles}, nil
}

// ToKeystore validates the backup content and returns the keystore it
// describes.
func (b Backup) ToKeystore() (*Keystore, error) {
	return NewKeystore(b.MasterPublicKey, b.Handles)
}

// ParseHandleRequest validates and decodes a handle request.
func ParseHandleRequest(buf []byte) (*HandleRequest, error) {
	fields, err := decodeObject(buf, ErrValidation)
	if err != nil {
		return nil, err
	}
	handle, err := fields.stringField("handle", ErrValidation)
	if err != nil {
		return nil, err
	}
	script, err := fields.stringField("script_pubkey", ErrValidation)
	if err != nil {
		return nil, err
	}
	return &HandleRequest{Handle: handle, ScriptPubkey: script}, nil
}
