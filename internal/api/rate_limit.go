package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端 IP 的令牌桶；perSecond <= 0 时不限流
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if burst <= 0 {
		burst = perSecond
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *RateLimiter) enabled() bool {
	return l != nil && l.limit > 0
}

// Allow 消耗 key 的一个令牌
func (l *RateLimiter) Allow(key string) bool {
	if !l.enabled() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep 删除超过 ttl 未出现的访客，返回删除数量
func (l *RateLimiter) Sweep(ttl time.Duration) int {
	if !l.enabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > ttl {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Run 定期清理，ctx 结束时返回
func (l *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if !l.enabled() {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(visitorTTL)
		}
	}
}

// RateLimit 限流中间件；页面请求显示 429 错误页
func (h *HTTPHandler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		c.Abort()
		if wantsJSON(c) {
			TooManyRequests(c)
			return
		}
		h.renderError(c, http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再度お試しください。")
	}
}
