package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/vcf-dupe/internal/config"
)

func TestFromExternalConfig(t *testing.T) {
	retry, breaker := FromExternalConfig(config.ExternalConfig{
		Backend:     config.BackendOpenAI,
		TimeoutSecs: 7,
		MaxRetries:  1,
	})

	if retry.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", retry.MaxAttempts)
	}
	if retry.AttemptTimeout != 7*time.Second {
		t.Errorf("expected 7s attempt timeout, got %v", retry.AttemptTimeout)
	}
	if retry.OnRetry == nil || breaker.OnStateChange == nil {
		t.Error("expected logging callbacks to be set")
	}
	if breaker.ShouldTrip(context.Canceled) {
		t.Error("cancellation should not trip the breaker")
	}
	if !breaker.ShouldTrip(errors.New("500")) {
		t.Error("backend errors should trip the breaker")
	}
}

func TestFromExternalConfig_NoRetry(t *testing.T) {
	retry, _ := FromExternalConfig(config.ExternalConfig{MaxRetries: 0})
	if retry.MaxAttempts != 1 {
		t.Errorf("expected 1 attempt, got %d", retry.MaxAttempts)
	}
	if retry.AttemptTimeout != 0 {
		t.Errorf("expected no attempt timeout, got %v", retry.AttemptTimeout)
	}
}
