package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"semnotes/internal/port"
)

// RateLimited throttles calls to an embedding provider with a token bucket.
// Waiting is bounded by the caller's context; a request that cannot get a
// token before the context ends fails instead of being retried.
type RateLimited struct {
	next    port.Embedder
	limiter *rate.Limiter
}

var _ port.Embedder = (*RateLimited)(nil)

// NewRateLimited wraps next so that at most requestsPerSecond calls are made,
// with bursts of up to burst calls.
func NewRateLimited(next port.Embedder, requestsPerSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimited) Dimension() int {
	return r.next.Dimension()
}

func (r *RateLimited) ModelName() string {
	return r.next.ModelName()
}
