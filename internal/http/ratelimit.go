package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"diary-assistant/internal/contextutil"
	"diary-assistant/internal/metrics"
)

// maxLimitedTenants bounds the number of tenant limiters kept in memory.
const maxLimitedTenants = 10000

// RateLimiter enforces a per-tenant request budget per hour.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	perHour  int
}

// NewRateLimiter creates a limiter allowing perHour requests per tenant, with
// the whole hourly budget available as a burst. perHour <= 0 disables limiting.
func NewRateLimiter(perHour int) *RateLimiter {
	limiters, _ := lru.New[string, *rate.Limiter](maxLimitedTenants)
	return &RateLimiter{
		limiters: limiters,
		perHour:  perHour,
	}
}

// Allow reports whether tenantID may make another request now.
func (l *RateLimiter) Allow(tenantID string) bool {
	if l.perHour <= 0 {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters.Get(tenantID)
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour)
		l.limiters.Add(tenantID, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the tenant's budget with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		if !l.Allow(tenantID) {
			ctx := r.Context()
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "rate limit exceeded", "tenant_id", tenantID)
			metrics.RateLimitedTotal.Inc()

			interval := time.Hour / time.Duration(l.perHour)
			retryAfter := int(interval.Seconds()) + 1
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
