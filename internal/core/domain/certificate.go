package domain

import (
	"fmt"
)

// WitnessTypeSubtree is the only proof type issued by the registry.
const WitnessTypeSubtree = "subtree"

// Witness is the opaque inclusion proof of a certificate.
type Witness struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// CertificateData is the part of a certificate stored in a handle record.
type CertificateData struct {
	Anchor  string  `json:"anchor"`
	Witness Witness `json:"witness"`
}

// Certificate is the wire form of a certificate, binding a handle and its
// output script to the proof data. It is never stored as is: handle and
// script are implied by the record that holds the data.
type Certificate struct {
	Handle       string `json:"handle"`
	ScriptPubkey string `json:"script_pubkey"`
	CertificateData
}

// Validate checks the proof type of typed certificate data.
func (d CertificateData) Validate() error {
	if d.Witness.Type != WitnessTypeSubtree {
		return fmt.Errorf("%w: witness type must be %q", ErrInvalidCertificate, WitnessTypeSubtree)
	}
	return nil
}

// NewCertificate composes the wire form out of the stored data and the
// handle binding. It does not check the binding.
func NewCertificate(data CertificateData, handle, scriptPubkey string) Certificate {
	return Certificate{
		Handle:       handle,
		ScriptPubkey: scriptPubkey,
		CertificateData: CertificateData{
			Anchor:  data.Anchor,
			Witness: Witness{Type: WitnessTypeSubtree, Data: data.Witness.Data},
		},
	}
}

// Data projects the certificate down to the stored subset.
func (c Certificate) Data() CertificateData {
	return CertificateData{
		Anchor:  c.Anchor,
		Witness: Witness{Type: WitnessTypeSubtree, Data: c.Witness.Data},
	}
}

// IsBoundTo returns whether the certificate names the given handle and
// script.
func (c Certificate) IsBoundTo(handle, scriptPubkey string) bool {
	return c.Handle == handle && c.ScriptPubkey == scriptPubkey
}

// ParseCertificateData validates and decodes certificate data.
func ParseCertificateData(buf []byte) (*CertificateData, error) {
	fields, err := decodeObject(buf, ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	return parseCertificateData(fields)
}

// ParseCertificate validates and decodes a certificate in wire form.
func ParseCertificate(buf []byte) (*Certificate, error) {
	fields, err := decodeObject(buf, ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	data, err := parseCertificateData(fields)
	if err != nil {
		return nil, err
	}
	handle, err := fields.stringField("handle", ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	script, err := fields.stringField("script_pubkey", ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	return &Certificate{
		Handle:          handle,
		ScriptPubkey:    script,
		CertificateData: *data,
	}, nil
}

// IsCertificateData reports whether buf is valid certificate data.
func IsCertificateData(buf []byte) bool {
	_, err := ParseCertificateData(buf)
	return err == nil
}

// IsCertificate reports whether buf is a valid certificate.
func IsCertificate(buf []byte) bool {
	_, err := ParseCertificate(buf)
	return err == nil
}

func parseCertificateData(fields jsonFields) (*CertificateData, error) {
	anchor, err := fields.stringField("anchor", ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	if !fields.has("witness") {
		return nil, fmt.Errorf("%w: missing witness", ErrInvalidCertificate)
	}
	witnessFields, err := decodeObject(fields["witness"], ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	witnessType, err := witnessFields.stringField("type", ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}
	witnessData, err := witnessFields.stringField("data", ErrInvalidCertificate)
	if err != nil {
		return nil, err
	}

	data := &CertificateData{
		Anchor:  anchor,
		Witness: Witness{Type: witnessType, Data: witnessData},
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}
