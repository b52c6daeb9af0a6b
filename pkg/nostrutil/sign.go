package nostrutil

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// SignEvent signs data with the given hex encoded private key. The returned
// event id is the SHA-256 of [0,<pub>,created_at,kind,tags,content].
func SignEvent(data EventData, privateKeyHex string) (*Event, error) {
	privateKeyHex = strings.ToLower(strings.TrimSpace(privateKeyHex))
	if _, err := ParsePrivateKey(privateKeyHex); err != nil {
		return nil, err
	}

	ev := toNostrEvent(data)
	if err := ev.Sign(privateKeyHex); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	return &Event{
		EventData: copyEventData(data),
		ID:        ev.ID,
		PubKey:    ev.PubKey,
		Sig:       ev.Sig,
	}, nil
}

// VerifyEvent checks that the event id matches its content and that the
// signature verifies against the event public key.
func VerifyEvent(e Event) error {
	ev := toNostrEvent(e.EventData)
	ev.PubKey = e.PubKey
	ev.Sig = e.Sig

	if ev.GetID() != e.ID {
		return ErrInvalidID
	}
	ev.ID = e.ID

	ok, err := ev.CheckSignature()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// ParsePrivateKey decodes a hex encoded secp256k1 private key, rejecting
// zero and out of range scalars instead of reducing them.
func ParsePrivateKey(privateKeyHex string) (*btcec.PrivateKey, error) {
	buf, err := hex.DecodeString(privateKeyHex)
	if err != nil || len(buf) != 32 {
		return nil, ErrInvalidKey
	}

	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(buf); overflow || scalar.IsZero() {
		return nil, ErrInvalidKey
	}

	privateKey, _ := btcec.PrivKeyFromBytes(buf)
	return privateKey, nil
}

// PublicKeyHex returns the hex encoded x-only public key of the given private
// key.
func PublicKeyHex(privateKeyHex string) (string, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(schnorr.SerializePubKey(privateKey.PubKey())), nil
}

// NPub returns the bech32 npub encoding of a hex encoded x-only public key.
func NPub(publicKeyHex string) (string, error) {
	return nip19.EncodePublicKey(publicKeyHex)
}

func toNostrEvent(data EventData) *nostr.Event {
	tags := make(nostr.Tags, 0, len(data.Tags))
	for _, tag := range data.Tags {
		tags = append(tags, nostr.Tag(tag))
	}
	return &nostr.Event{
		CreatedAt: nostr.Timestamp(data.CreatedAt),
		Kind:      data.Kind,
		Tags:      tags,
		Content:   data.Content,
	}
}

func copyEventData(data EventData) EventData {
	tags := make([][]string, 0, len(data.Tags))
	for _, tag := range data.Tags {
		tags = append(tags, append([]string{}, tag...))
	}
	data.Tags = tags
	return data
}
