package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"interviewroom/pkg/config"
	apperrors "interviewroom/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per client key. Buckets idle for limiterIdleTTL
// are dropped on the next sweep so the set stays bounded by recent clients.
type limiterSet struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	nextSweep time.Time
	now       func() time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		clients: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.After(s.nextSweep) {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(s.clients, k)
			}
		}
		s.nextSweep = now.Add(limiterIdleTTL)
	}

	cl, ok := s.clients[key]
	if !ok {
		cl = &clientLimiter{Limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.AllowN(now, 1)
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// clientIP prefers the first X-Forwarded-For hop, then the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func passThrough(c *gin.Context) { c.Next() }

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return passThrough
	}

	clients := newLimiterSet(rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				_ = c.Error(apperrors.NewServiceUnavailableError("too many concurrent requests"))
				c.Abort()
				return
			}
		}

		if !clients.allow(clientIP(c.Request)) {
			c.Header("Retry-After", "1")
			_ = c.Error(apperrors.NewRateLimitError())
			c.Abort()
			return
		}
		c.Next()
	}
}

// NewWebSocketLimitMiddleware limits status stream upgrades per IP and in total.
// The concurrency slot is held until the handler returns, i.e. for the life of the socket.
func NewWebSocketLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return passThrough
	}

	ws := cfg.RateLimiting.WebSocket
	perMinute := rate.Every(time.Minute / time.Duration(ws.ConnectionsPerMinute))
	clients := newLimiterSet(perMinute, ws.ConnectionsPerMinute)

	var sem chan struct{}
	if ws.MaxConcurrent > 0 {
		sem = make(chan struct{}, ws.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if !clients.allow(clientIP(c.Request)) {
			_ = c.Error(apperrors.NewRateLimitError())
			c.Abort()
			return
		}
		if sem != nil {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			default:
				_ = c.Error(apperrors.NewServiceUnavailableError("too many open status streams"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
