package collect

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/listing-comb/app/model"
)

// Limiters hands out one token bucket per source, shared by every task that
// collects from it.
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLimiters() *Limiters {
	return &Limiters{limiters: make(map[string]*rate.Limiter)}
}

func (l *Limiters) For(src *model.Source) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := perMinute(src.RateLimit)
	if limiter, ok := l.limiters[src.ID]; ok {
		if limiter.Limit() != limit {
			limiter.SetLimit(limit)
		}
		return limiter
	}

	limiter := rate.NewLimiter(limit, 1)
	l.limiters[src.ID] = limiter
	return limiter
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}
