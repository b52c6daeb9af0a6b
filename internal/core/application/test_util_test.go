package application_test

import (
	"context"
	"testing"

	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	inmemorysecurestore "github.com/atbitcoin/handlekeeper/internal/infrastructure/securestore/inmemory"
	"github.com/atbitcoin/handlekeeper/internal/infrastructure/storage/db/inmemory"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"
	testOtherMnemonic = "legal winner thank year wave sausage worth useful " +
		"legal winner thank yellow"
	testXpub = "xpub661MyMwAqRbcFkPHucMnrGNzDwb6teAX1RbKQmqtEF8kK3Z7LZ59qafCjB9eCRLiTVG3uxBxgKvRgbubRhqSKXnGGb1aoaqLrpMBDrVxga8"
	testXprv = "xprv9s21ZrQH143K3GJpoapnV8SFfukcVBSfeCficPSGfubmSFDxo1kuHnLisriDvSnRRuL2Qrg5ggqHKNVpxR86QEC8w35uxmGoggxtQTPvfUu"

	testXonly0  = "a52d46cf9dd838ec615d55031eae5d02b5d7a18eebffeaec30d8923eb70d69f7"
	testScript0 = "5120" + testXonly0
	testXonly1  = "1a16ef3d7f8f399a350bf1e28df147a0436a7eba4d30843907b3298ff9ddc837"
	testScript1 = "5120" + testXonly1

	testHandle      = "alice@bitcoin"
	testOtherHandle = "bob@bitcoin"
)

var (
	ctx = context.Background()

	testCertData = domain.CertificateData{
		Anchor:  "a7f3c2",
		Witness: domain.Witness{Type: domain.WitnessTypeSubtree, Data: "00ff00ff"},
	}
)

func newKeystoreService(t *testing.T) application.KeystoreService {
	svc := application.NewKeystoreService(
		inmemory.NewKeystoreRepository(), inmemorysecurestore.NewSecretStore(),
	)
	require.NoError(t, svc.Initialize(ctx, testMnemonic))
	return svc
}

// newKeystoreWithHandles returns an initialized keystore service holding the
// given handles at increasing indices.
func newKeystoreWithHandles(
	t *testing.T, handles ...string,
) application.KeystoreService {
	svc := newKeystoreService(t)
	for _, h := range handles {
		_, _, err := svc.CreateHandle(ctx, h)
		require.NoError(t, err)
	}
	return svc
}

func testCertificate(handle, script string) *domain.Certificate {
	cert := domain.NewCertificate(testCertData, handle, script)
	return &cert
}
