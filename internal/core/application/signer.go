package application

import (
	"context"
	"encoding/hex"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/pkg/nostrutil"
	"github.com/atbitcoin/handlekeeper/pkg/wallet"
)

// SignerService signs Nostr events with the key of a handle.
type SignerService interface {
	SignEvent(
		ctx context.Context, handle string, data nostrutil.EventData,
	) (*nostrutil.Event, error)
}

type signerService struct {
	keystore KeystoreService
}

func NewSignerService(keystore KeystoreService) SignerService {
	return &signerService{keystore}
}

func (s *signerService) SignEvent(
	ctx context.Context, handle string, data nostrutil.EventData,
) (*nostrutil.Event, error) {
	handle = domain.NormalizeHandleName(handle)

	k, err := s.keystore.Get(ctx)
	if err != nil {
		return nil, err
	}
	record, ok := k.Handle(handle)
	if !ok {
		return nil, domain.ErrHandleNotFound
	}
	path, err := wallet.ParseDerivationPath(record.DerivationPath)
	if err != nil {
		return nil, err
	}

	xprv, err := s.keystore.MasterPrivateKey(ctx)
	if err != nil {
		return nil, err
	}
	key, err := wallet.DerivePrivateKey(xprv, path)
	if err != nil {
		return nil, err
	}
	return nostrutil.SignEvent(data, hex.EncodeToString(key))
}
