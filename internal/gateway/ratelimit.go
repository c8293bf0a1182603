package gateway

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"agentpoker/internal/metrics"
)

// window is one key's sliding rate-limit bucket: count resets to zero on
// the first request observed after resetAt.
type window struct {
	count   int
	resetAt time.Time
}

// limiter is a per-process, per-key sliding-window rate limiter. State is
// process-local and resets on restart.
type limiter struct {
	mu       sync.Mutex
	limit    int
	interval time.Duration
	windows  map[string]*window
}

func newLimiter(limit int, interval time.Duration) *limiter {
	return &limiter{limit: limit, interval: interval, windows: make(map[string]*window)}
}

// allow reports whether key may proceed now, along with the remaining
// count and the seconds until the window resets.
func (l *limiter) allow(key string, now time.Time) (ok bool, remaining int, resetIn int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(l.interval)}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return false, 0, int(w.resetAt.Sub(now).Seconds()) + 1
	}
	w.count++
	return true, l.limit - w.count, int(w.resetAt.Sub(now).Seconds()) + 1
}

// routeClass partitions routes into independent rate-limit buckets:
// registration, authenticated play, chat, and the public read-only
// surface (spectate, history, leaderboard, stats).
type routeClass string

const (
	classRegister      routeClass = "register"
	classAuthenticated routeClass = "authenticated"
	classChat          routeClass = "chat"
	classPublic        routeClass = "public"
)

var classLimits = map[routeClass]struct {
	limit    int
	interval time.Duration
}{
	classRegister:      {5, time.Minute},
	classAuthenticated: {60, time.Minute},
	classChat:          {10, time.Minute},
	classPublic:        {30, time.Minute},
}

// limiters holds one sliding-window limiter per route class.
type limiters struct {
	byClass map[routeClass]*limiter
}

func newLimiters() *limiters {
	ls := &limiters{byClass: make(map[routeClass]*limiter)}
	for class, cfg := range classLimits {
		ls.byClass[class] = newLimiter(cfg.limit, cfg.interval)
	}
	return ls
}

// byIP and byAgent choose what a request is limited against: registration
// and public routes per client IP, authenticated and chat routes per agent
// (keyed by agent id once the auth middleware has run ahead of this one).
func byIP(c *gin.Context) string { return c.ClientIP() }

func byAgent(c *gin.Context) string {
	if agent := agentFromContext(c); agent != nil {
		return agent.ID
	}
	return c.ClientIP()
}

// rateLimitMiddleware enforces one route class's sliding window and sets
// the X-RateLimit-* headers on every response.
func (ls *limiters) rateLimitMiddleware(class routeClass, key func(*gin.Context) string) gin.HandlerFunc {
	l := ls.byClass[class]
	limit := classLimits[class].limit
	return func(c *gin.Context) {
		ok, remaining, resetIn := l.allow(key(c), time.Now())

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetIn))

		if !ok {
			metrics.RateLimited.WithLabelValues(string(class)).Inc()
			respondError(c, errRateLimited("rate limit exceeded", resetIn))
			c.Abort()
			return
		}
		c.Next()
	}
}
