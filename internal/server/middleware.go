package server

import (
	"net/http"
	"sync"
	"time"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const principalKey = "principal"

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func (s *Server) requireAuth(c *gin.Context) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	principal, err := s.Auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, domain.ErrUnauthorized)
		return
	}
	c.Set(principalKey, principal)
	c.Next()
}

func principalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

// limitByIP runs ahead of authentication, so requests carrying bad tokens
// are throttled as well.
func (s *Server) limitByIP(c *gin.Context) {
	if !s.ipLimiter.allow("ip:"+c.ClientIP(), time.Now()) {
		abortWithError(c, domain.ErrRateLimited)
		return
	}
	c.Next()
}

func (s *Server) limitByPrincipal(c *gin.Context) {
	p := principalFrom(c)
	if p.Authenticated() && !s.userLimiter.allow("user:"+p.ID, time.Now()) {
		abortWithError(c, domain.ErrRateLimited)
		return
	}
	c.Next()
}

type keyedEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// keyedLimiter holds one token bucket per key. Buckets idle for longer than
// idleAfter are dropped on the next sweep.
type keyedLimiter struct {
	mu        sync.Mutex
	entries   map[string]*keyedEntry
	rps       rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &keyedLimiter{
		entries:   make(map[string]*keyedEntry),
		rps:       limit,
		burst:     burst,
		idleAfter: 30 * time.Minute,
	}
}

func (l *keyedLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > 5*time.Minute {
		l.sweep(now)
	}

	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = e
	}
	e.last = now
	return e.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) sweep(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.last) > l.idleAfter {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

func (l *keyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
