package domain_test

import (
	"encoding/hex"
	"testing"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/stretchr/testify/require"
)

const (
	testXpub = "xpub661MyMwAqRbcFkPHucMnrGNzDwb6teAX1RbKQmqtEF8kK3Z7LZ59qafCjB9eCRLiTVG3uxBxgKvRgbubRhqSKXnGGb1aoaqLrpMBDrVxga8"
	testXprv = "xprv9s21ZrQH143K3GJpoapnV8SFfukcVBSfeCficPSGfubmSFDxo1kuHnLisriDvSnRRuL2Qrg5ggqHKNVpxR86QEC8w35uxmGoggxtQTPvfUu"

	testXonly0  = "a52d46cf9dd838ec615d55031eae5d02b5d7a18eebffeaec30d8923eb70d69f7"
	testScript0 = "5120" + testXonly0
	testXonly1  = "1a16ef3d7f8f399a350bf1e28df147a0436a7eba4d30843907b3298ff9ddc837"
	testScript1 = "5120" + testXonly1
)

func TestNewKeystore(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		k, err := domain.NewKeystore(testXpub, nil)
		require.NoError(t, err)
		require.False(t, k.IsZero())
		require.Empty(t, k.Handles)
		require.NotNil(t, k.Handles)
		require.Zero(t, k.NextIndex)
	})

	t.Run("with handles", func(t *testing.T) {
		k, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
			"alice@bitcoin": {DerivationPath: "m/35053/0/0/0"},
			"bob@bitcoin":   {DerivationPath: "m/35053/0/0/4", Certificate: &testCertData},
		})
		require.NoError(t, err)
		require.Equal(t, uint32(5), k.NextIndex)
		require.Equal(t, []string{"alice@bitcoin", "bob@bitcoin"}, k.HandleNames())

		record, ok := k.Handle("bob@bitcoin")
		require.True(t, ok)
		require.True(t, record.HasCertificate())
		index, err := record.Index()
		require.NoError(t, err)
		require.Equal(t, uint32(4), index)
	})

	tests := []struct {
		name    string
		xpub    string
		handles map[string]domain.HandleRecord
	}{
		{"missing xpub", "", nil},
		{"private key", testXprv, nil},
		{"malformed xpub", "xpub123", nil},
		{
			"invalid handle name",
			testXpub,
			map[string]domain.HandleRecord{"alice": {DerivationPath: "m/35053/0/0/0"}},
		},
		{
			"foreign path",
			testXpub,
			map[string]domain.HandleRecord{"alice@bitcoin": {DerivationPath: "m/44/0/0/0"}},
		},
		{
			"hardened leaf",
			testXpub,
			map[string]domain.HandleRecord{"alice@bitcoin": {DerivationPath: "m/35053/0/0/0'"}},
		},
		{
			"shared path",
			testXpub,
			map[string]domain.HandleRecord{
				"alice@bitcoin": {DerivationPath: "m/35053/0/0/1"},
				"bob@bitcoin":   {DerivationPath: "m/35053/0/0/1"},
			},
		},
		{
			"invalid certificate",
			testXpub,
			map[string]domain.HandleRecord{
				"alice@bitcoin": {
					DerivationPath: "m/35053/0/0/0",
					Certificate:    &domain.CertificateData{Anchor: "a", Witness: domain.Witness{Type: "tree"}},
				},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			k, err := domain.NewKeystore(tt.xpub, tt.handles)
			require.ErrorIs(t, err, domain.ErrInvalidKeystore)
			require.Nil(t, k)
		})
	}
}

func TestKeystoreCreateHandle(t *testing.T) {
	k, err := domain.NewKeystore(testXpub, nil)
	require.NoError(t, err)

	record, created, err := k.CreateHandle("alice@bitcoin")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "m/35053/0/0/0", record.DerivationPath)

	record, created, err = k.CreateHandle("bob@bitcoin")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "m/35053/0/0/1", record.DerivationPath)

	// Creating an existing handle is idempotent.
	record, created, err = k.CreateHandle("alice@bitcoin")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "m/35053/0/0/0", record.DerivationPath)
	require.Equal(t, uint32(2), k.NextIndex)

	// Indexes of removed handles are never reused.
	require.True(t, k.RemoveHandle("bob@bitcoin"))
	require.False(t, k.RemoveHandle("bob@bitcoin"))
	record, created, err = k.CreateHandle("carol@bitcoin")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "m/35053/0/0/2", record.DerivationPath)

	_, _, err = k.CreateHandle("not a handle")
	require.ErrorIs(t, err, domain.ErrInvalidHandleName)
}

func TestKeystoreDerivedData(t *testing.T) {
	k, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
		"alice@bitcoin": {DerivationPath: "m/35053/0/0/0", Certificate: &testCertData},
		"bob@bitcoin":   {DerivationPath: "m/35053/0/0/1"},
	})
	require.NoError(t, err)

	script, err := k.HandleScript("alice@bitcoin")
	require.NoError(t, err)
	require.Equal(t, testScript0, script)

	script, err = k.HandleScript("bob@bitcoin")
	require.NoError(t, err)
	require.Equal(t, testScript1, script)

	pubkey, err := k.HandlePublicKey("bob@bitcoin")
	require.NoError(t, err)
	require.Equal(t, testXonly1, hex.EncodeToString(pubkey))

	cert, err := k.Certificate("alice@bitcoin")
	require.NoError(t, err)
	require.Equal(t, "alice@bitcoin", cert.Handle)
	require.Equal(t, testScript0, cert.ScriptPubkey)
	require.Equal(t, testCertData, cert.Data())

	_, err = k.Certificate("bob@bitcoin")
	require.ErrorIs(t, err, domain.ErrNotYetAvailable)

	_, err = k.Certificate("carol@bitcoin")
	require.ErrorIs(t, err, domain.ErrHandleNotFound)
	_, err = k.HandleScript("carol@bitcoin")
	require.ErrorIs(t, err, domain.ErrHandleNotFound)
}

func TestKeystoreSetCertificate(t *testing.T) {
	k, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
		"alice@bitcoin": {DerivationPath: "m/35053/0/0/0"},
	})
	require.NoError(t, err)

	ok, err := k.SetCertificate("alice@bitcoin", &testCertData)
	require.NoError(t, err)
	require.True(t, ok)

	// The stored data must not alias the argument.
	data := testCertData
	ok, err = k.SetCertificate("alice@bitcoin", &data)
	require.NoError(t, err)
	require.True(t, ok)
	data.Anchor = "changed"
	record, _ := k.Handle("alice@bitcoin")
	require.Equal(t, testCertData.Anchor, record.Certificate.Anchor)

	ok, err = k.SetCertificate("bob@bitcoin", &testCertData)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = k.SetCertificate("alice@bitcoin", &domain.CertificateData{Witness: domain.Witness{Type: "x"}})
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)

	ok, err = k.SetCertificate("alice@bitcoin", nil)
	require.NoError(t, err)
	require.True(t, ok)
	record, _ = k.Handle("alice@bitcoin")
	require.False(t, record.HasCertificate())
}

func TestKeystoreClone(t *testing.T) {
	k, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
		"alice@bitcoin": {DerivationPath: "m/35053/0/0/0", Certificate: &testCertData},
	})
	require.NoError(t, err)

	clone := k.Clone()
	require.Equal(t, k, clone)

	clone.Handles["alice@bitcoin"].Certificate.Anchor = "changed"
	_, _, err = clone.CreateHandle("bob@bitcoin")
	require.NoError(t, err)

	require.Equal(t, testCertData.Anchor, k.Handles["alice@bitcoin"].Certificate.Anchor)
	require.Len(t, k.Handles, 1)
	require.Equal(t, uint32(1), k.NextIndex)
}

func TestKeystoreCheckTransition(t *testing.T) {
	newKeystore := func(t *testing.T) *domain.Keystore {
		k, err := domain.NewKeystore(testXpub, map[string]domain.HandleRecord{
			"alice@bitcoin": {DerivationPath: "m/35053/0/0/0"},
			"bob@bitcoin":   {DerivationPath: "m/35053/0/0/1"},
		})
		require.NoError(t, err)
		return k
	}

	t.Run("valid", func(t *testing.T) {
		k := newKeystore(t)
		next := k.Clone()
		_, _, err := next.CreateHandle("carol@bitcoin")
		require.NoError(t, err)
		next.RemoveHandle("alice@bitcoin")
		_, err = next.SetCertificate("bob@bitcoin", &testCertData)
		require.NoError(t, err)
		require.NoError(t, k.CheckTransition(next))
	})

	tests := []struct {
		name        string
		mutate      func(k *domain.Keystore)
		expectedErr error
	}{
		{
			name:        "zero keystore",
			mutate:      func(k *domain.Keystore) { k.MasterPublicKey = "" },
			expectedErr: domain.ErrKeystoreNotInitialized,
		},
		{
			name: "changed master key",
			mutate: func(k *domain.Keystore) {
				k.MasterPublicKey = "xpub661MyMwAqRbcGczjuMoRm6dXaLDEhW1u34gKenbeYqAix21mdUKJyuyu5F1rzYGVxyL6tmgBUAEPrEz92mBXjByMRiJdba9wpnN37RLLAXa"
			},
			expectedErr: domain.ErrMasterKeyImmutable,
		},
		{
			name:        "decreased high-water mark",
			mutate:      func(k *domain.Keystore) { k.NextIndex = 1 },
			expectedErr: domain.ErrPathIndexReused,
		},
		{
			name: "reused index of removed handle",
			mutate: func(k *domain.Keystore) {
				k.RemoveHandle("bob@bitcoin")
				k.Handles["carol@bitcoin"] = domain.HandleRecord{DerivationPath: "m/35053/0/0/1"}
			},
			expectedErr: domain.ErrPathIndexReused,
		},
		{
			name: "changed path of existing handle",
			mutate: func(k *domain.Keystore) {
				k.Handles["bob@bitcoin"] = domain.HandleRecord{DerivationPath: "m/35053/0/0/0"}
			},
			expectedErr: domain.ErrPathIndexReused,
		},
		{
			name: "invalid path",
			mutate: func(k *domain.Keystore) {
				k.Handles["carol@bitcoin"] = domain.HandleRecord{DerivationPath: "m/0"}
			},
			expectedErr: domain.ErrInvalidKeystore,
		},
		{
			name: "shared path",
			mutate: func(k *domain.Keystore) {
				k.NextIndex = 4
				k.Handles["carol@bitcoin"] = domain.HandleRecord{DerivationPath: "m/35053/0/0/3"}
				k.Handles["dave@bitcoin"] = domain.HandleRecord{DerivationPath: "m/35053/0/0/3"}
			},
			expectedErr: domain.ErrInvalidKeystore,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			k := newKeystore(t)
			next := k.Clone()
			tt.mutate(next)
			require.ErrorIs(t, k.CheckTransition(next), tt.expectedErr)
		})
	}
}
