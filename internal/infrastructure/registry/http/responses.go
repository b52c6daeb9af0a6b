package httpregistry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
)

type object map[string]json.RawMessage

func decodeObject(body []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidResponse)
	}
	return obj, nil
}

func (o object) present(name string) bool {
	raw, ok := o[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (o object) decode(name string, v interface{}) error {
	if !o.present(name) {
		return fmt.Errorf("%w: missing %s", ErrInvalidResponse, name)
	}
	if err := json.Unmarshal(o[name], v); err != nil {
		return fmt.Errorf("%w: wrong type for %s", ErrInvalidResponse, name)
	}
	return nil
}

// parseProposedResponse returns the available_subspaces list, empty when the
// field is absent.
func parseProposedResponse(body []byte) ([]string, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if !obj.present("available_subspaces") {
		return []string{}, nil
	}
	var handles []string
	if err := obj.decode("available_subspaces", &handles); err != nil {
		return nil, err
	}
	return handles, nil
}

func parseReserveResponse(body []byte) (*ports.Reservation, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	var deadline float64
	if err := obj.decode("deadline", &deadline); err != nil {
		return nil, err
	}
	if deadline < 0 || deadline > math.MaxInt64 {
		return nil, fmt.Errorf("%w: deadline out of range", ErrInvalidResponse)
	}
	var productID string
	if err := obj.decode("product_id", &productID); err != nil {
		return nil, err
	}
	if !obj.present("handle_status") {
		return nil, fmt.Errorf("%w: missing handle_status", ErrInvalidResponse)
	}
	status, err := domain.ParseHandleStatus(obj["handle_status"])
	if err != nil {
		return nil, err
	}

	return &ports.Reservation{
		Deadline:  int64(deadline),
		Status:    status,
		ProductID: productID,
	}, nil
}

func parseClaimResponse(body []byte) (*ports.ClaimResult, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	if !obj.present("handle_status") {
		return nil, fmt.Errorf("%w: missing handle_status", ErrInvalidResponse)
	}
	status, err := domain.ParseHandleStatus(obj["handle_status"])
	if err != nil {
		return nil, err
	}

	var msg string
	if obj.present("error") {
		if err := obj.decode("error", &msg); err != nil {
			return nil, err
		}
	}

	return &ports.ClaimResult{Status: status, Error: msg}, nil
}
