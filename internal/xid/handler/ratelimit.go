package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/auth"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges every request to its client address.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByCaller charges authenticated requests to the calling principal, so
// an owner behind a shared NAT is not throttled by its neighbours.
// Unauthenticated requests fall back to the client address.
func ByCaller(c *gin.Context) string {
	if p, ok := auth.CallerFromCtx(c); ok && !p.IsAnonymous() {
		return "principal:" + p.String()
	}
	return ByClientIP(c)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type buckets struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*bucket
}

func (b *buckets) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[key]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(b.rps, b.burst)}
		b.m[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (b *buckets) sweep(idle time.Duration, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, e := range b.m {
		if now.Sub(e.lastSeen) > idle {
			delete(b.m, k)
		}
	}
}

// RateLimiter returns a token-bucket middleware with one bucket per key.
// Idle buckets are swept every five minutes until ctx ends. A rejected
// request gets 429 with Retry-After set to the wait for the next token.
func RateLimiter(ctx context.Context, rps, burst int, key KeyFunc) gin.HandlerFunc {
	b := &buckets{rps: rate.Limit(rps), burst: burst, m: make(map[string]*bucket)}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				b.sweep(10*time.Minute, now)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		now := time.Now()
		l := b.get(key(c), now)

		r := l.ReserveN(now, 1)
		if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
			r.CancelAt(now)
			retry := 1
			if r.OK() {
				retry = int(math.Ceil(delay.Seconds()))
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
