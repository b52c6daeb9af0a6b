package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/application"
	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconciler(
	t *testing.T, handles ...string,
) (application.ReconcilerService, application.KeystoreService, *mockRegistry) {
	keystore := newKeystoreWithHandles(t, handles...)
	registry := &mockRegistry{}
	reconciler := application.NewReconcilerService(
		keystore, registry, application.ReconcilerOpts{},
	)
	return reconciler, keystore, registry
}

func mockStatus(registry *mockRegistry, status domain.HandleStatus) *mock.Call {
	return registry.
		On("HandleStatuses", mock.Anything, []string{status.HandleName()}).
		Return([]domain.HandleStatus{status}, nil)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name              string
		status            domain.HandleStatus
		expectedVerdict   application.Verdict
		expectedErr       error
		expectedRemovable bool
	}{
		{
			name:            "available",
			status:          domain.Available{Handle: testHandle},
			expectedVerdict: application.VerdictPurchasable,
		},
		{
			name:            "unknown",
			status:          domain.Unknown{Handle: testHandle},
			expectedVerdict: application.VerdictPurchasable,
		},
		{
			name:              "invalid",
			status:            domain.Invalid{Handle: testHandle},
			expectedVerdict:   application.VerdictInvalid,
			expectedErr:       domain.ErrInvalidHandle,
			expectedRemovable: true,
		},
		{
			name: "reserved by this key",
			status: domain.PendingPayment{
				Handle: testHandle, ScriptPubkey: testScript0,
			},
			expectedVerdict: application.VerdictAwaitingPayment,
		},
		{
			name: "reserved by another key",
			status: domain.PendingPayment{
				Handle: testHandle, ScriptPubkey: testScript1,
			},
			expectedVerdict:   application.VerdictConflict,
			expectedErr:       domain.ErrReservedByOtherKey,
			expectedRemovable: true,
		},
		{
			name:            "taken without owner",
			status:          domain.Taken{Handle: testHandle},
			expectedVerdict: application.VerdictAwaitingCertificate,
		},
		{
			name: "taken by this key without certificate",
			status: domain.Taken{
				Handle: testHandle, ScriptPubkey: testScript0,
			},
			expectedVerdict: application.VerdictAwaitingCertificate,
		},
		{
			name: "taken by another key",
			status: domain.Taken{
				Handle:       testHandle,
				ScriptPubkey: testScript1,
				Certificate:  testCertificate(testHandle, testScript1),
			},
			expectedVerdict:   application.VerdictConflict,
			expectedErr:       domain.ErrOwnedByOtherKey,
			expectedRemovable: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			reconciler, keystore, registry := newReconciler(t, testHandle)
			mockStatus(registry, tt.status)

			before, err := keystore.Get(ctx)
			require.NoError(t, err)

			outcome, err := reconciler.Reconcile(ctx, testHandle)
			require.NoError(t, err)
			require.Equal(t, tt.expectedVerdict, outcome.Verdict)
			require.Equal(t, tt.status, outcome.Status)
			require.Equal(t, testScript0, outcome.ExpectedScript)
			require.Equal(t, tt.expectedRemovable, outcome.Removable)
			if tt.expectedErr != nil {
				require.ErrorIs(t, outcome.Err, tt.expectedErr)
			} else {
				require.NoError(t, outcome.Err)
			}

			// None of these outcomes touches the keystore.
			after, err := keystore.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, before, after)
		})
	}
}

func TestReconcileCertified(t *testing.T) {
	reconciler, keystore, registry := newReconciler(t, testHandle, testOtherHandle)
	mockStatus(registry, domain.Taken{
		Handle:       testOtherHandle,
		ScriptPubkey: testScript1,
		Certificate:  testCertificate(testOtherHandle, testScript1),
	})

	outcome, err := reconciler.Reconcile(ctx, testOtherHandle)
	require.NoError(t, err)
	require.Equal(t, application.VerdictCertified, outcome.Verdict)
	require.True(t, outcome.IsTerminal())
	require.False(t, outcome.Removable)
	require.NoError(t, outcome.Err)

	cert, err := keystore.ExportCertificate(ctx, testOtherHandle)
	require.NoError(t, err)
	require.Equal(t, testCertificate(testOtherHandle, testScript1), cert)

	_, err = keystore.ExportCertificate(ctx, testHandle)
	require.ErrorIs(t, err, domain.ErrNotYetAvailable)

	// Reconciling again is stable.
	outcome, err = reconciler.Reconcile(ctx, testOtherHandle)
	require.NoError(t, err)
	require.Equal(t, application.VerdictCertified, outcome.Verdict)

	// A certified handle in conflict can not be dropped.
	registry.ExpectedCalls = nil
	mockStatus(registry, domain.Taken{Handle: testOtherHandle, ScriptPubkey: testScript0})
	outcome, err = reconciler.Reconcile(ctx, testOtherHandle)
	require.NoError(t, err)
	require.Equal(t, application.VerdictConflict, outcome.Verdict)
	require.False(t, outcome.Removable)
}

func TestReconcileFailures(t *testing.T) {
	t.Run("certificate bound to another script", func(t *testing.T) {
		reconciler, keystore, registry := newReconciler(t, testHandle)
		mockStatus(registry, domain.Taken{
			Handle:       testHandle,
			ScriptPubkey: testScript0,
			Certificate:  testCertificate(testHandle, testScript1),
		})

		_, err := reconciler.Reconcile(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrCertificateMismatch)

		_, err = keystore.ExportCertificate(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrNotYetAvailable)
	})

	t.Run("certificate bound to another handle", func(t *testing.T) {
		reconciler, keystore, registry := newReconciler(t, testHandle)
		mockStatus(registry, domain.Taken{
			Handle:       testHandle,
			ScriptPubkey: testScript0,
			Certificate:  testCertificate(testOtherHandle, testScript0),
		})

		_, err := reconciler.Reconcile(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrCertificateMismatch)

		_, err = keystore.ExportCertificate(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrNotYetAvailable)
	})

	t.Run("malformed registry response", func(t *testing.T) {
		reconciler, keystore, registry := newReconciler(t, testHandle)
		registry.
			On("HandleStatuses", mock.Anything, []string{testHandle}).
			Return(nil, fmt.Errorf("%w: missing status", domain.ErrInvalidHandleStatus))

		before, err := keystore.Get(ctx)
		require.NoError(t, err)

		_, err = reconciler.Reconcile(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrValidation)

		after, err := keystore.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("network failure", func(t *testing.T) {
		reconciler, _, registry := newReconciler(t, testHandle)
		registry.
			On("HandleStatuses", mock.Anything, []string{testHandle}).
			Return(nil, domain.ErrNetwork)

		_, err := reconciler.Reconcile(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrNetwork)
	})

	t.Run("unknown handle", func(t *testing.T) {
		reconciler, _, registry := newReconciler(t, testHandle)

		_, err := reconciler.Reconcile(ctx, testOtherHandle)
		require.ErrorIs(t, err, domain.ErrHandleNotFound)
		registry.AssertNotCalled(t, "HandleStatuses", mock.Anything, mock.Anything)

		_, err = reconciler.Apply(ctx, domain.Available{Handle: testOtherHandle})
		require.ErrorIs(t, err, domain.ErrHandleNotFound)
	})

	t.Run("status not reported", func(t *testing.T) {
		reconciler, _, registry := newReconciler(t, testHandle)
		registry.
			On("HandleStatuses", mock.Anything, []string{testHandle}).
			Return([]domain.HandleStatus{}, nil)

		outcome, err := reconciler.Reconcile(ctx, testHandle)
		require.NoError(t, err)
		require.Equal(t, domain.Unknown{Handle: testHandle}, outcome.Status)
		require.Equal(t, application.VerdictPurchasable, outcome.Verdict)
	})
}

// swappingKeystore re-creates a handle right before the first mutation, so
// the record written differs from the one the status was checked against.
type swappingKeystore struct {
	application.KeystoreService
	handle string
	once   sync.Once
}

func (k *swappingKeystore) Mutate(
	ctx context.Context, fn application.MutateFn,
) (*domain.Keystore, error) {
	var err error
	k.once.Do(func() {
		if _, err = k.KeystoreService.RemoveHandle(ctx, k.handle); err != nil {
			return
		}
		_, _, err = k.KeystoreService.CreateHandle(ctx, k.handle)
	})
	if err != nil {
		return nil, err
	}
	return k.KeystoreService.Mutate(ctx, fn)
}

func TestReconcileHandleRecreated(t *testing.T) {
	keystore := &swappingKeystore{
		KeystoreService: newKeystoreWithHandles(t, testHandle),
		handle:          testHandle,
	}
	registry := &mockRegistry{}
	reconciler := application.NewReconcilerService(
		keystore, registry, application.ReconcilerOpts{},
	)
	mockStatus(registry, domain.Taken{
		Handle:       testHandle,
		ScriptPubkey: testScript0,
		Certificate:  testCertificate(testHandle, testScript0),
	})

	_, err := reconciler.Reconcile(ctx, testHandle)
	require.ErrorIs(t, err, domain.ErrCertificateMismatch)

	info, err := keystore.GetHandle(ctx, testHandle)
	require.NoError(t, err)
	require.Equal(t, testScript1, info.ScriptPubkey)
	require.Nil(t, info.Certificate)
}

func TestReconcileSharedFetch(t *testing.T) {
	newBlockingReconciler := func(t *testing.T) (
		application.ReconcilerService, application.KeystoreService,
		*mockRegistry, chan struct{}, chan struct{},
	) {
		reconciler, keystore, registry := newReconciler(t, testHandle)
		started := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		mockStatus(registry, domain.Taken{
			Handle:       testHandle,
			ScriptPubkey: testScript0,
			Certificate:  testCertificate(testHandle, testScript0),
		}).Run(func(mock.Arguments) {
			once.Do(func() { close(started) })
			<-release
		})
		return reconciler, keystore, registry, started, release
	}

	t.Run("concurrent callers share one request", func(t *testing.T) {
		reconciler, keystore, registry, started, release := newBlockingReconciler(t)

		type result struct {
			outcome *application.Outcome
			err     error
		}
		results := make(chan result, 2)
		reconcile := func() {
			outcome, err := reconciler.Reconcile(ctx, testHandle)
			results <- result{outcome, err}
		}

		go reconcile()
		<-started
		go reconcile()
		time.Sleep(100 * time.Millisecond)
		close(release)

		for i := 0; i < 2; i++ {
			res := <-results
			require.NoError(t, res.err)
			require.Equal(t, application.VerdictCertified, res.outcome.Verdict)
		}
		registry.AssertNumberOfCalls(t, "HandleStatuses", 1)

		_, err := keystore.ExportCertificate(ctx, testHandle)
		require.NoError(t, err)
	})

	t.Run("cancelled caller drops the result", func(t *testing.T) {
		reconciler, keystore, registry, started, release := newBlockingReconciler(t)

		before, err := keystore.Get(ctx)
		require.NoError(t, err)

		cancelCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() {
			_, err := reconciler.Reconcile(cancelCtx, testHandle)
			errCh <- err
		}()

		<-started
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)

		close(release)
		time.Sleep(50 * time.Millisecond)
		registry.AssertNumberOfCalls(t, "HandleStatuses", 1)

		after, err := keystore.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, before, after)

		_, err = keystore.ExportCertificate(ctx, testHandle)
		require.ErrorIs(t, err, domain.ErrNotYetAvailable)
	})
}

func TestReconcileConflictState(t *testing.T) {
	reconciler, _, registry := newReconciler(t, testHandle)
	require.NoError(t, reconciler.Conflict(testHandle))

	mockStatus(registry, domain.PendingPayment{Handle: testHandle, ScriptPubkey: testScript1})
	_, err := reconciler.Reconcile(ctx, testHandle)
	require.NoError(t, err)
	require.ErrorIs(t, reconciler.Conflict(testHandle), domain.ErrReservedByOtherKey)

	// Only a handle back on the market clears the conflict.
	_, err = reconciler.Apply(ctx, domain.Unknown{Handle: testHandle})
	require.NoError(t, err)
	require.Error(t, reconciler.Conflict(testHandle))

	_, err = reconciler.Apply(ctx, domain.Available{Handle: testHandle})
	require.NoError(t, err)
	require.NoError(t, reconciler.Conflict(testHandle))
}

func TestReconcileAll(t *testing.T) {
	reconciler, keystore, registry := newReconciler(t, testHandle, testOtherHandle)
	mockStatus(registry, domain.Taken{
		Handle:       testHandle,
		ScriptPubkey: testScript0,
		Certificate:  testCertificate(testHandle, testScript0),
	})
	registry.
		On("HandleStatuses", mock.Anything, []string{testOtherHandle}).
		Return(nil, domain.ErrNetwork)

	outcomes, err := reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	require.Equal(t, testHandle, outcomes[0].Handle)
	require.Equal(t, application.VerdictCertified, outcomes[0].Verdict)

	require.Equal(t, testOtherHandle, outcomes[1].Handle)
	require.Equal(t, application.VerdictFailed, outcomes[1].Verdict)
	require.ErrorIs(t, outcomes[1].Err, domain.ErrNetwork)

	// The failing handle did not prevent the other from being certified.
	_, err = keystore.ExportCertificate(ctx, testHandle)
	require.NoError(t, err)
}

func TestVerdictString(t *testing.T) {
	require.Equal(t, "failed", application.VerdictFailed.String())
	require.Equal(t, "awaiting_payment", application.VerdictAwaitingPayment.String())
	require.Equal(t, "awaiting_certificate", application.VerdictAwaitingCertificate.String())
	require.Equal(t, "certified", application.VerdictCertified.String())
	require.Equal(t, "conflict", application.VerdictConflict.String())
}
