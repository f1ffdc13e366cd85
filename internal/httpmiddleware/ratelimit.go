package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter caps requests per client IP. Recognition kiosks re-post
// frames in a tight loop when a capture fails, so each IP gets a per-minute
// token budget with full burst headroom. State lives in memory; limits reset
// on restart.
type IPRateLimiter struct {
	perMinute int
	mu        sync.Mutex
	clients   map[string]*ipBudget
}

type ipBudget struct {
	tokens int
	seen   time.Time
}

// NewIPRateLimiter creates a limiter allowing perMinute requests per IP.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &IPRateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*ipBudget),
	}
}

// Middleware rejects over-budget requests with 429.
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !rl.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (rl *IPRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.clients[ip]
	if !ok {
		rl.clients[ip] = &ipBudget{tokens: rl.perMinute - 1, seen: now}
		return true
	}

	refill := int(now.Sub(b.seen).Minutes() * float64(rl.perMinute))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.perMinute {
			b.tokens = rl.perMinute
		}
		b.seen = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
