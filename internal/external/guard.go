package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/resilience"
	"github.com/sells-group/vcf-dupe/internal/store"
)

// ScoreCache is the part of the state store Guard uses.
type ScoreCache interface {
	GetCachedScore(ctx context.Context, backend, key string) (float64, bool, error)
	SetCachedScore(ctx context.Context, backend, key string, score float64, ttl time.Duration) error
}

var _ ScoreCache = (store.Store)(nil)

// Guard wraps a Backend with the run's failure policy: per-attempt timeout,
// bounded retry on transient errors, a circuit breaker, a request rate limit
// and an optional persistent score cache. Every failure it returns matches
// ErrUnavailable. Safe for concurrent use.
type Guard struct {
	backend Backend
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	cache   ScoreCache
	ttl     time.Duration
}

// NewGuard builds a Guard from the external config. cache may be nil.
func NewGuard(backend Backend, ext config.ExternalConfig, cache ScoreCache) *Guard {
	retry, breaker := resilience.FromExternalConfig(ext)
	g := &Guard{
		backend: backend,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breaker),
		ttl:     time.Duration(ext.CacheTTLHours) * time.Hour,
	}
	if ext.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(ext.RequestsPerSecond), 1)
	}
	if cache != nil && g.ttl > 0 {
		g.cache = cache
	}
	return g
}

// Name implements Backend.
func (g *Guard) Name() string { return g.backend.Name() }

// Prepare forwards to the wrapped backend when it needs the corpus.
func (g *Guard) Prepare(records []*contact.Record) {
	if p, ok := g.backend.(Preparer); ok {
		p.Prepare(records)
	}
}

// Breaker exposes the circuit breaker state for reporting.
func (g *Guard) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Score implements Backend.
func (g *Guard) Score(ctx context.Context, a, b *contact.Record) (float64, error) {
	key := PairKey(a, b)
	name := g.backend.Name()

	if g.cache != nil {
		score, ok, err := g.cache.GetCachedScore(ctx, name, key)
		switch {
		case err != nil:
			zap.L().Debug("external: cache read failed", zap.String("backend", name), zap.Error(err))
		case ok:
			return score, nil
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return 0, unavailable(name, err)
		}
	}

	score, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (float64, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (float64, error) {
			return g.backend.Score(ctx, a, b)
		})
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, resilience.ErrCircuitOpen) {
			zap.L().Warn("external: score failed",
				zap.String("backend", name),
				zap.Stringer("a", a),
				zap.Stringer("b", b),
				zap.Error(err),
			)
		}
		return 0, unavailable(name, err)
	}

	if g.cache != nil {
		if err := g.cache.SetCachedScore(ctx, name, key, score, g.ttl); err != nil {
			zap.L().Debug("external: cache write failed", zap.String("backend", name), zap.Error(err))
		}
	}
	return score, nil
}

// PairKey identifies a pair by the content the backends see, independent of
// argument order and of generated UIDs.
func PairKey(a, b *contact.Record) string {
	ha, hb := digest(describe(a)), digest(describe(b))
	if hb < ha {
		ha, hb = hb, ha
	}
	return digest(ha + ":" + hb)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
