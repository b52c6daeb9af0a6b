package domain

import (
	"encoding/json"
	"fmt"
)

const (
	StatusNameAvailable      = "available"
	StatusNameUnknown        = "unknown"
	StatusNameInvalid        = "invalid"
	StatusNamePendingPayment = "pending_payment"
	StatusNameTaken          = "taken"
)

// HandleStatus is the registry view of a handle. The set of implementations
// is closed: Available, Unknown, Invalid, PendingPayment and Taken.
type HandleStatus interface {
	HandleName() string
	Status() string
	isHandleStatus()
}

// Available means nobody holds or reserved the handle.
type Available struct {
	Handle string
}

// Unknown is used for handles the registry did not report.
type Unknown struct {
	Handle string
}

// Invalid means the registry will never accept the handle.
type Invalid struct {
	Handle string
}

// PendingPayment means the handle is reserved for ScriptPubkey until the
// payment is claimed.
type PendingPayment struct {
	Handle       string
	ScriptPubkey string
}

// Taken means the handle is owned. ScriptPubkey is empty when the registry
// did not report the owner and Certificate is nil until it is issued.
type Taken struct {
	Handle       string
	ScriptPubkey string
	Certificate  *Certificate
}

func (s Available) HandleName() string      { return s.Handle }
func (s Unknown) HandleName() string        { return s.Handle }
func (s Invalid) HandleName() string        { return s.Handle }
func (s PendingPayment) HandleName() string { return s.Handle }
func (s Taken) HandleName() string          { return s.Handle }

func (Available) Status() string      { return StatusNameAvailable }
func (Unknown) Status() string        { return StatusNameUnknown }
func (Invalid) Status() string        { return StatusNameInvalid }
func (PendingPayment) Status() string { return StatusNamePendingPayment }
func (Taken) Status() string          { return StatusNameTaken }

func (Available) isHandleStatus()      {}
func (Unknown) isHandleStatus()        {}
func (Invalid) isHandleStatus()        {}
func (PendingPayment) isHandleStatus() {}
func (Taken) isHandleStatus()          {}

// ParseHandleStatus validates and decodes a single status object as returned
// by the registry.
func ParseHandleStatus(buf []byte) (HandleStatus, error) {
	fields, err := decodeObject(buf, ErrInvalidHandleStatus)
	if err != nil {
		return nil, err
	}
	return parseHandleStatus(fields)
}

// ParseHandleStatuses decodes a list of statuses. A single invalid element
// invalidates the whole list.
func ParseHandleStatuses(buf []byte) ([]HandleStatus, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(buf, &list); err != nil || list == nil {
		return nil, fmt.Errorf("%w: expected an array", ErrInvalidHandleStatus)
	}
	statuses := make([]HandleStatus, 0, len(list))
	for i, raw := range list {
		status, err := ParseHandleStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// StatusOf returns the status reported for handle, defaulting to Unknown.
func StatusOf(statuses []HandleStatus, handle string) HandleStatus {
	for _, s := range statuses {
		if s.HandleName() == handle {
			return s
		}
	}
	return Unknown{Handle: handle}
}

func parseHandleStatus(fields jsonFields) (HandleStatus, error) {
	handle, err := fields.stringField("handle", ErrInvalidHandleStatus)
	if err != nil {
		return nil, err
	}
	status, err := fields.stringField("status", ErrInvalidHandleStatus)
	if err != nil {
		return nil, err
	}

	switch status {
	case StatusNameAvailable:
		return Available{Handle: handle}, nil
	case StatusNameUnknown:
		return Unknown{Handle: handle}, nil
	case StatusNameInvalid:
		return Invalid{Handle: handle}, nil
	case StatusNamePendingPayment:
		script, err := fields.stringField("script_pubkey", ErrInvalidHandleStatus)
		if err != nil {
			return nil, err
		}
		return PendingPayment{Handle: handle, ScriptPubkey: script}, nil
	case StatusNameTaken:
		return parseTaken(handle, fields)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidHandleStatus, status)
	}
}

func parseTaken(handle string, fields jsonFields) (HandleStatus, error) {
	taken := Taken{Handle: handle}
	if fields.has("script_pubkey") {
		script, err := fields.stringField("script_pubkey", ErrInvalidHandleStatus)
		if err != nil {
			return nil, err
		}
		taken.ScriptPubkey = script
	}
	if fields.has("certificate") {
		if taken.ScriptPubkey == "" {
			return nil, fmt.Errorf(
				"%w: certificate reported without script_pubkey", ErrInvalidHandleStatus,
			)
		}
		cert, err := ParseCertificate(fields["certificate"])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidHandleStatus, err)
		}
		taken.Certificate = cert
	}
	return taken, nil
}

// MarshalHandleStatus encodes a status in the registry wire format.
func MarshalHandleStatus(s HandleStatus) ([]byte, error) {
	out := map[string]interface{}{
		"handle": s.HandleName(),
		"status": s.Status(),
	}
	switch v := s.(type) {
	case PendingPayment:
		out["script_pubkey"] = v.ScriptPubkey
	case Taken:
		if v.ScriptPubkey != "" {
			out["script_pubkey"] = v.ScriptPubkey
		}
		if v.Certificate != nil {
			out["certificate"] = v.Certificate
		}
	}
	return json.Marshal(out)
}
