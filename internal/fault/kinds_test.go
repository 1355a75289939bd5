package fault

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds_Predicates(t *testing.T) {
	val := Validationf("tenor", "must be one of 30/90/120, got %d", 60)
	conf := Conflictf("idempotency key %q reused with different amount", "k1")
	adp := Adapter("sanctions", "screen", eris.New("status 503"))
	inv := Invariantf("pool %s replay mismatch", "p1")

	assert.True(t, IsValidation(val))
	assert.False(t, IsValidation(conf))

	assert.True(t, IsConflict(conf))
	assert.False(t, IsConflict(val))

	assert.True(t, IsAdapterFailure(adp))
	assert.False(t, IsAdapterFailure(inv))

	assert.True(t, IsInvariant(inv))
	assert.False(t, IsInvariant(adp))
}

func TestErrorKinds_SurviveWrapping(t *testing.T) {
	err := eris.Wrap(Validationf("amount", "must be positive"), "ledger: allocate")
	assert.True(t, IsValidation(err))

	err = eris.Wrap(Conflictf("key reuse"), "ledger: allocate")
	assert.True(t, IsConflict(err))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(Validationf("f", "bad")))
	assert.False(t, IsTransient(Conflictf("race")))
	assert.False(t, IsTransient(Invariantf("broken")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("provider returned status 503")))
	assert.False(t, IsTransient(eris.New("provider returned status 400")))
}

func TestRetry_StopsOnNonTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		calls++
		return Validationf("f", "permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransient(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
	calls := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return eris.New("i/o timeout")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, DefaultRetryConfig(), func(ctx context.Context) error {
		calls++
		return eris.New("i/o timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
