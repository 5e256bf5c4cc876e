package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/pkg/response"
	"golang.org/x/time/rate"

	gocache "github.com/patrickmn/go-cache"
)

// RateLimitConfig bounds how many links one owner may create.
type RateLimitConfig struct {
	Enabled   bool
	Burst     int
	PerMinute int
	IdleTTL   time.Duration
}

// ownerLimiter keeps one token bucket per owner. Buckets of owners idle for
// longer than IdleTTL are evicted.
type ownerLimiter struct {
	mu       sync.Mutex
	buckets  *gocache.Cache
	limit    rate.Limit
	burst    int
	limitStr string
}

func newOwnerLimiter(cfg RateLimitConfig) *ownerLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PerMinute < 1 {
		cfg.PerMinute = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}

	return &ownerLimiter{
		buckets:  gocache.New(cfg.IdleTTL, cfg.IdleTTL),
		limit:    rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:    cfg.Burst,
		limitStr: strconv.Itoa(cfg.Burst),
	}
}

func (l *ownerLimiter) bucket(owner string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(owner); ok {
		lim := v.(*rate.Limiter)
		l.buckets.SetDefault(owner, lim)
		return lim
	}

	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.SetDefault(owner, lim)
	return lim
}

// allow takes one token and otherwise reports how long to wait for it.
func (l *ownerLimiter) allow(owner string, now time.Time) (bool, time.Duration) {
	res := l.bucket(owner).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}

	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}

	return true, 0
}

// rateLimitByOwner must run after authenticate.
func rateLimitByOwner(l *ownerLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, _ := OwnerFromContext(r.Context())

			ok, wait := l.allow(owner, time.Now())
			w.Header().Set("X-RateLimit-Limit", l.limitStr)

			if !ok {
				retry := int(math.Ceil(wait.Seconds()))
				if retry < 1 {
					retry = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retry))
				response.Render(w, r, http.StatusTooManyRequests, response.TooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
