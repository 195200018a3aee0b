package middlewarex

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"oaiserve/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// idle limiters are dropped once the pool grows past this size
const (
	maxLimiters = 10000
	limiterIdle = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*clientLimiter
	limit rate.Limit
	burst int
}

func newLimiterPool(perMin int) *limiterPool {
	burst := perMin / 10
	if burst < 1 {
		burst = 1
	}
	return &limiterPool{
		m:     make(map[string]*clientLimiter),
		limit: rate.Limit(float64(perMin) / 60),
		burst: burst,
	}
}

func (p *limiterPool) get(key string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cl, ok := p.m[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	if len(p.m) >= maxLimiters {
		for k, cl := range p.m {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(p.m, k)
			}
		}
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &clientLimiter{limiter: l, lastSeen: now}
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key, time.Now()).Allow()
}

// RateLimit throttles each client IP to perMin requests per minute. Rejected
// requests get 503 with Retry-After. A non-positive limit disables it.
func RateLimit(perMin int) func(http.Handler) http.Handler {
	if perMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	pool := newLimiterPool(perMin)
	retryAfter := strconv.Itoa(int(math.Ceil(60 / float64(perMin))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !pool.Allow(ip) {
				metrics.Throttled.Inc()
				log.Debug().Str("ip", ip).Msg("request throttled")
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "too many requests", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
