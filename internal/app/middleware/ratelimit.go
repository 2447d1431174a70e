package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// AuthRateLimiter holds per-IP token buckets for the credential-bearing form
// endpoints (login, register, OTP, password reset).
type AuthRateLimiter struct {
	perSecond rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAuthRateLimiter(perSecond float64, burst int) *AuthRateLimiter {
	return &AuthRateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (l *AuthRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.perSecond, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

// Middleware rejects over-limit requests with 429.
func (l *AuthRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many attempts, please try again shortly",
			})
			return
		}
		c.Next()
	}
}
