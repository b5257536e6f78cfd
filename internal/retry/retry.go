// Package retry implements the coach/player/planner retry driver: jittered
// exponential backoff over a classified error, one configuration per role.
// Only Recoverable errors are retried; anything else fails on the first
// attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Role identifies which sub-agent role a RetryConfig governs.
type Role string

const (
	RolePlanner Role = "planner"
	RoleCoach   Role = "coach"
	RolePlayer  Role = "player"
)

// Variant classifies a Recoverable error.
type Variant string

const (
	VariantRateLimit    Variant = "RateLimit"
	VariantNetworkError Variant = "NetworkError"
	VariantServerError  Variant = "ServerError"
	VariantTimeout      Variant = "Timeout"
	VariantModelBusy    Variant = "ModelBusy"
)

// RecoverableError wraps a transient failure the driver may retry.
type RecoverableError struct {
	Variant    Variant
	Message    string
	RetryAfter time.Duration // zero means "no server hint"
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Variant, e.Message)
}

// NonRecoverableError wraps a failure the driver must not retry (auth,
// invalid request, and similar).
type NonRecoverableError struct {
	Message string
}

func (e *NonRecoverableError) Error() string { return e.Message }

// Config is a per-role retry preset.
type Config struct {
	Role       Role
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	JitterFrac float64
}

// PlannerPreset returns the retry preset for role="planner". max_retries=3
// is compiled in, but autonomousOverride (read from
// agent.autonomous_max_retry_attempts) wins whenever it is positive. The
// session always passes the loaded config value, and g3config defaults that
// key to 6 when it is unset or the config file is absent, so the constant
// applies only to callers that pass zero or a negative value.
func PlannerPreset(autonomousOverride int) Config {
	maxRetries := 3
	if autonomousOverride > 0 {
		maxRetries = autonomousOverride
	}
	return Config{
		Role:       RolePlanner,
		MaxRetries: maxRetries,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		JitterFrac: 0.2,
	}
}

// CoachPreset and PlayerPreset are the inner-loop role presets.
func CoachPreset() Config {
	return Config{Role: RoleCoach, MaxRetries: 3, BaseDelay: 1 * time.Second, MaxDelay: 30 * time.Second, JitterFrac: 0.2}
}

func PlayerPreset() Config {
	return Config{Role: RolePlayer, MaxRetries: 3, BaseDelay: 1 * time.Second, MaxDelay: 30 * time.Second, JitterFrac: 0.2}
}

// Notifier receives the user-visible retry events; the planner's UI writer
// implements this.
type Notifier interface {
	RetryWarning(role Role, attempt, maxAttempts int, variant Variant, message string)
	RetryScheduled(role Role, delay time.Duration)
	RetryExhausted(role Role, maxRetries int)
}

// NopNotifier discards all events; useful in tests.
type NopNotifier struct{}

func (NopNotifier) RetryWarning(Role, int, int, Variant, string) {}
func (NopNotifier) RetryScheduled(Role, time.Duration)           {}
func (NopNotifier) RetryExhausted(Role, int)                     {}

// Op is the operation executed under retry.
type Op func(ctx context.Context) (string, error)

// Execute runs op, retrying on RecoverableError per cfg until success,
// NonRecoverableError, or exhaustion. A NonRecoverableError gets exactly one
// attempt; a RecoverableError gets at most MaxRetries+1.
func Execute(ctx context.Context, cfg Config, notifier Notifier, op Op) (string, error) {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	maxAttempts := cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var recoverable *RecoverableError
		if !errors.As(err, &recoverable) {
			// NonRecoverable (or an unclassified error, treated the same way):
			// surfaced immediately, exactly one attempt.
			return "", err
		}

		lastErr = err
		notifier.RetryWarning(cfg.Role, attempt, maxAttempts, recoverable.Variant, recoverable.Message)

		if attempt == maxAttempts {
			notifier.RetryExhausted(cfg.Role, cfg.MaxRetries)
			return "", lastErr
		}

		delay := backoffDelay(cfg, attempt, recoverable)
		notifier.RetryScheduled(cfg.Role, delay)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

// backoffDelay computes delay_n = min(max, base*2^n) * (1 +/- jitter), with
// a server-supplied RetryAfter hint overriding the computed delay on
// RateLimit (still capped at MaxDelay).
func backoffDelay(cfg Config, attempt int, recoverable *RecoverableError) time.Duration {
	if recoverable.Variant == VariantRateLimit && recoverable.RetryAfter > 0 {
		if recoverable.RetryAfter > cfg.MaxDelay {
			return cfg.MaxDelay
		}
		return recoverable.RetryAfter
	}

	exp := math.Pow(2, float64(attempt-1))
	base := float64(cfg.BaseDelay) * exp
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	jitter := 1 + (rand.Float64()*2-1)*cfg.JitterFrac
	delay := time.Duration(base * jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}
