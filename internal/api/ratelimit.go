package api

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 15 * time.Minute
	limiterSweepInterval = time.Minute
)

// ipLimiter keeps one token bucket per client address
type ipLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*limitedClient
	lastSweep time.Time
	now       func() time.Time
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*limitedClient),
		now:     time.Now,
	}
}

// Allow reports whether key may make a request now
func (l *ipLimiter) Allow(key string) bool {
	lim, now := l.client(key)
	return lim.AllowN(now, 1)
}

// client returns the bucket of key, creating it on first use
func (l *ipLimiter) client(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter, now
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// slowDown tracks failed requests per client. Every failure spends a token
// from a bucket holding the window's allowance; once it is overdrawn each
// request waits delay for every token owed, up to maxDelay.
type slowDown struct {
	clients  *ipLimiter
	delay    time.Duration
	maxDelay time.Duration
}

func newSlowDown(after int, window, delay, maxDelay time.Duration) *slowDown {
	return &slowDown{
		clients:  newIPLimiter(float64(after)/window.Seconds(), after),
		delay:    delay,
		maxDelay: maxDelay,
	}
}

// Delay returns how long a request from key waits before it is served
func (s *slowDown) Delay(key string) time.Duration {
	lim, now := s.clients.client(key)
	tokens := lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	d := time.Duration(math.Ceil(1-tokens)) * s.delay
	if d > s.maxDelay {
		return s.maxDelay
	}
	return d
}

// Failed charges a failed response to key
func (s *slowDown) Failed(key string) {
	lim, now := s.clients.client(key)
	lim.ReserveN(now, 1)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
