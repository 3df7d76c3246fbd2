package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GlobalRateLimiter throttles requests per remote IP using a token bucket
// per visitor. It exists purely as an ambient resilience layer: it never
// changes the meaning of a response, only whether a request is throttled
// with 429 before reaching a handler.
type GlobalRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGlobalRateLimiter builds a limiter allowing rps requests per second
// per IP, with the given burst, and starts its background cleanup.
func NewGlobalRateLimiter(rps int, burst int) *GlobalRateLimiter {
	l := &GlobalRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go l.cleanupVisitors()
	return l
}

func (l *GlobalRateLimiter) getVisitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: time.Now()}
		l.visitors[ip] = v
		return v.limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (l *GlobalRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware enforces the per-IP rate limit, responding 429 with a
// Retry-After header when exceeded.
func (l *GlobalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}

		if !l.getVisitor(ip).Allow() {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
