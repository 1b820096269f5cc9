package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

const (
	// limiterIdleTTL is how long a client's bucket survives without traffic
	// before the sweeper drops it.
	limiterIdleTTL = time.Hour
	sweepInterval  = 5 * time.Minute
)

// limiterTable tracks one token bucket per client identity.
type limiterTable struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (t *limiterTable) allow(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[identity]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[identity] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

func (t *limiterTable) sweep() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, b := range t.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(t.buckets, id)
		}
	}
}

// RateLimit returns token-bucket rate limiting middleware backed by
// golang.org/x/time/rate. Audits are expensive (a fetch, often a browser
// render, and dozens of checks), so the refill rate is low and the burst
// absorbs short spikes from dashboards.
//
// Each client gets its own bucket, keyed by API key when the auth
// middleware ran, by remote IP otherwise. Idle buckets are swept every
// few minutes so the table does not grow without bound.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	table := &limiterTable{
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*clientBucket),
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			table.sweep()
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString("api_key")
		if identity == "" {
			identity = c.ClientIP()
		}

		if !table.allow(identity) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.AuditResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
