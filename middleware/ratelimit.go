package middleware

import (
	"ResumeAI/pkg/cache"
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

var (
	rlMu        sync.Mutex
	buckets     = map[string]*bucket{}
	window      = 10 * time.Second
	capacity    = 5
	refillPerWd = capacity

	// last message per user, expiring after dupTTL
	dupMu    sync.Mutex
	lastMsgs = cache.New(10000, time.Minute)
	dupTTL   = 5 * time.Second

	cgMu     sync.Mutex
	userSem  = map[uint]chan struct{}{}
	userConc = 2
)

func SetRateLimitConfig(win time.Duration, cap, conc int) {
	rlMu.Lock()
	window = win
	capacity = cap
	refillPerWd = cap
	buckets = map[string]*bucket{}
	rlMu.Unlock()
	cgMu.Lock()
	userConc = conc
	userSem = map[uint]chan struct{}{}
	cgMu.Unlock()
}

func SetDuplicateTTL(ttl time.Duration) {
	dupMu.Lock()
	dupTTL = ttl
	dupMu.Unlock()
}

func clientIP(c *gin.Context) string {
	ip := strings.TrimSpace(c.ClientIP())
	if ip == "" {
		host, _, _ := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
		ip = host
	}
	return ip
}

// userKey buckets authenticated calls per user and anonymous ones per IP.
func userKey(c *gin.Context) string {
	uid := CurrentUserID(c)
	if uid == 0 {
		return "ip@" + clientIP(c)
	}
	return cast.ToString(uid) + "@" + clientIP(c)
}

func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := userKey(c)
		now := time.Now()

		rlMu.Lock()
		b := buckets[key]
		if b == nil {
			b = &bucket{tokens: capacity, lastRefill: now}
			buckets[key] = b
		}
		elapsed := now.Sub(b.lastRefill)
		if elapsed > 0 {
			add := int(float64(refillPerWd) * (float64(elapsed) / float64(window)))
			if add > 0 {
				b.tokens += add
				if b.tokens > capacity {
					b.tokens = capacity
				}
				b.lastRefill = now
			}
		}
		if b.tokens <= 0 {
			retry := int(window.Seconds())
			rlMu.Unlock()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		b.tokens--
		rlMu.Unlock()

		c.Next()
	}
}

// DuplicateGuard reports false when uid sent the same text within the
// duplicate window.
func DuplicateGuard(uid uint, text string) bool {
	text = strings.TrimSpace(text)
	k := cast.ToString(uid)

	dupMu.Lock()
	defer dupMu.Unlock()
	if prev, ok := lastMsgs.Get(k); ok && prev == text {
		return false
	}
	lastMsgs.Set(k, text, dupTTL)
	return true
}

// ForgetDuplicate clears the text DuplicateGuard recorded for uid, so a
// failed request can be retried at once.
func ForgetDuplicate(uid uint, text string) {
	text = strings.TrimSpace(text)
	k := cast.ToString(uid)

	dupMu.Lock()
	defer dupMu.Unlock()
	if prev, ok := lastMsgs.Get(k); ok && prev == text {
		lastMsgs.Delete(k)
	}
}

// AcquireUserSlot waits for one of the user's concurrent request slots.
// It gives up when ctx is done.
func AcquireUserSlot(ctx context.Context, uid uint) (release func(), err error) {
	cgMu.Lock()
	sem := userSem[uid]
	if sem == nil {
		sem = make(chan struct{}, userConc)
		userSem[uid] = sem
	}
	cgMu.Unlock()
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
