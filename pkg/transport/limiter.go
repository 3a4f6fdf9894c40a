package transport

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Key exchange throttling defaults.
const (
	DefaultKeyExchangeRate  = 2.0
	DefaultKeyExchangeBurst = 5
	DefaultLimiterIdleTTL   = 10 * time.Minute
)

// KeyExchangeLimiter applies a token bucket per client IP to the key
// exchange route and periodically evicts idle clients. A nil limiter
// allows everything.
type KeyExchangeLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu       sync.Mutex
	byClient map[string]*limiterEntry
	hits     uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyExchangeLimiter creates a limiter allowing rps key exchanges per
// second per client with the given burst. It returns nil if rps or burst
// is not positive.
func NewKeyExchangeLimiter(rps float64, burst int, idleTTL time.Duration) *KeyExchangeLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = DefaultLimiterIdleTTL
	}
	return &KeyExchangeLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL,
		byClient: make(map[string]*limiterEntry),
	}
}

// Allow reports whether clientIP may attempt a key exchange at now.
func (l *KeyExchangeLimiter) Allow(clientIP string, now time.Time) bool {
	if l == nil {
		return true
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byClient[clientIP]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byClient[clientIP] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byClient {
			if v.lastSeen.Before(cutoff) {
				delete(l.byClient, k)
			}
		}
	}
	return allowed
}

// Clients returns the number of tracked clients.
func (l *KeyExchangeLimiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byClient)
}
