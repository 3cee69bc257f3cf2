package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/server/authz"
	"github.com/dmitrijs2005/containeer/internal/server/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const principalKey = "containeer.principal"

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	}
}

func (s *HTTPServer) recoverPanic(c *gin.Context, rec any) {
	s.logger.Error(c.Request.Context(), "panic while serving request", "path", c.Request.URL.Path, "panic", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// limiterIdleTTL is how long a client bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client address. Buckets idle for
// longer than idle are swept, at most once per idle interval.
type ipLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	buckets   map[string]*bucket
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      limiterIdleTTL,
		now:       time.Now,
		lastSweep: time.Now(),
		buckets:   map[string]*bucket{},
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops idle buckets. Caller holds mu.
func (l *ipLimiter) sweep(now time.Time) {
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (s *HTTPServer) rateLimit() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(s.limiter.rps))))
	return func(c *gin.Context) {
		if s.limiter.get(c.ClientIP()).Allow() {
			c.Next()
			return
		}
		s.metrics.ObserveRateLimited()
		c.Header("Retry-After", retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	}
}

// requireAuth resolves the bearer credential to a principal or aborts with 401.
func (s *HTTPServer) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			s.abort(c, common.ErrorUnauthorized)
			return
		}
		p, err := s.users.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func (s *HTTPServer) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authz.RequireAdmin(principal(c).User); err != nil {
			s.abort(c, err, publicMessages{common.ErrForbidden: "The user doesn't have enough privileges"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// principal is only valid behind requireAuth.
func principal(c *gin.Context) *services.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(*services.Principal)
	if p == nil {
		return &services.Principal{}
	}
	return p
}
