package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	warnings  int
	scheduled int
	exhausted int
}

func (r *recordingNotifier) RetryWarning(Role, int, int, Variant, string) { r.warnings++ }
func (r *recordingNotifier) RetryScheduled(Role, time.Duration)           { r.scheduled++ }
func (r *recordingNotifier) RetryExhausted(Role, int)                     { r.exhausted++ }

func fastCfg(role Role, maxRetries int) Config {
	return Config{Role: role, MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFrac: 0.1}
}

func TestExecuteSucceedsFirstTry(t *testing.T) {
	n := &recordingNotifier{}
	result, err := Execute(context.Background(), fastCfg(RolePlayer, 3), n, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 0, n.warnings)
}

func TestExecuteRetriesRecoverableThenSucceeds(t *testing.T) {
	n := &recordingNotifier{}
	calls := 0
	result, err := Execute(context.Background(), fastCfg(RoleCoach, 3), n, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &RecoverableError{Variant: VariantServerError, Message: "boom"}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, n.warnings)
	assert.Equal(t, 2, n.scheduled)
	assert.Equal(t, 0, n.exhausted)
}

func TestExecuteNonRecoverableFailsOnFirstAttempt(t *testing.T) {
	n := &recordingNotifier{}
	calls := 0
	_, err := Execute(context.Background(), fastCfg(RolePlayer, 5), n, func(ctx context.Context) (string, error) {
		calls++
		return "", &NonRecoverableError{Message: "bad request"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, n.warnings)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	n := &recordingNotifier{}
	calls := 0
	_, err := Execute(context.Background(), fastCfg(RolePlayer, 2), n, func(ctx context.Context) (string, error) {
		calls++
		return "", &RecoverableError{Variant: VariantTimeout, Message: "slow"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // 1 initial + 2 retries
	assert.Equal(t, 1, n.exhausted)
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := &recordingNotifier{}
	calls := 0
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()
	_, err := Execute(ctx, fastCfg(RolePlayer, 100), n, func(ctx context.Context) (string, error) {
		calls++
		return "", &RecoverableError{Variant: VariantNetworkError, Message: "down"}
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPlannerPresetUsesAutonomousOverrideWhenPositive(t *testing.T) {
	cfg := PlannerPreset(9)
	assert.Equal(t, 9, cfg.MaxRetries)
}

func TestPlannerPresetFallsBackToConstantWhenZero(t *testing.T) {
	cfg := PlannerPreset(0)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestBackoffDelayHonoursRetryAfterHintCappedAtMaxDelay(t *testing.T) {
	cfg := fastCfg(RolePlayer, 3)
	cfg.MaxDelay = 2 * time.Millisecond
	rec := &RecoverableError{Variant: VariantRateLimit, RetryAfter: time.Hour}
	d := backoffDelay(cfg, 1, rec)
	assert.Equal(t, cfg.MaxDelay, d)
}

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	cfg := Config{Role: RolePlayer, BaseDelay: time.Second, MaxDelay: time.Hour, JitterFrac: 0}
	rec := &RecoverableError{Variant: VariantServerError}
	d1 := backoffDelay(cfg, 1, rec)
	d2 := backoffDelay(cfg, 2, rec)
	d3 := backoffDelay(cfg, 3, rec)
	assert.Equal(t, time.Second, d1)
	assert.Equal(t, 2*time.Second, d2)
	assert.Equal(t, 4*time.Second, d3)
}
