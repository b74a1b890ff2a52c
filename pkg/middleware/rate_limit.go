package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/fileparser/pkg/configs"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

// RateLimitMiddleware 令牌桶限流，超限返回 429.
// cfg.Paths 非空时只对这些路径前缀生效，例如登录与上传.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyOf := rateKeyFunc(cfg.Key)
	buckets := newLimiterSet(rate.Limit(cfg.RPS), cfg.Burst)

	return func(c *gin.Context) {
		if len(cfg.Paths) > 0 && !matchPrefix(c.Request.URL.Path, cfg.Paths) {
			c.Next()
			return
		}

		if !buckets.allow(keyOf(c), time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})

			return
		}

		c.Next()
	}
}

// rateKeyFunc 解析限流维度：global、ip 或 header:Name，缺省按客户端 IP.
func rateKeyFunc(mode string) func(*gin.Context) string {
	mode = strings.TrimSpace(mode)

	switch {
	case mode == "" || strings.EqualFold(mode, "global"):
		return func(*gin.Context) string { return "" }
	case len(mode) > len("header:") && strings.EqualFold(mode[:len("header:")], "header:"):
		name := mode[len("header:"):]

		return func(c *gin.Context) string {
			if v := c.GetHeader(name); v != "" {
				return "h:" + v
			}

			return "ip:" + c.ClientIP()
		}
	default:
		return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按键懒创建令牌桶，闲置超过 limiterIdleTTL 的桶在访问时顺带清理.
type limiterSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{limit: limit, burst: burst, buckets: make(map[string]*bucket)}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()

	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(s.buckets, k)
			}
		}

		s.lastSweep = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}

	b.lastSeen = now
	s.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}
