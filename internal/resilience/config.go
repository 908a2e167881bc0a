package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/vcf-dupe/internal/config"
)

// FromExternalConfig builds the retry and breaker settings for a backend.
// max_retries counts retries, so one retry means two attempts.
func FromExternalConfig(ext config.ExternalConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	retry.MaxAttempts = 1 + max(ext.MaxRetries, 0)
	if ext.TimeoutSecs > 0 {
		retry.AttemptTimeout = time.Duration(ext.TimeoutSecs) * time.Second
	}
	retry.OnRetry = RetryLogger(ext.Backend, "score")

	breaker := DefaultCircuitBreakerConfig()
	breaker.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	breaker.OnStateChange = StateLogger(ext.Backend)
	return retry, breaker
}
