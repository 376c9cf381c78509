package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorTTL = 3 * time.Minute

// peerLimiter keeps one token bucket per remote host.
type peerLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newPeerLimiter(rps float64, burst int) *peerLimiter {
	return &peerLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (pl *peerLimiter) allow(host string) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	for h, v := range pl.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(pl.visitors, h)
		}
	}

	v, ok := pl.visitors[host]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(pl.rps, pl.burst)}
		pl.visitors[host] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// middleware limits every request for which exempt returns false.
func (pl *peerLimiter) middleware(next http.Handler, exempt func(*http.Request) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !exempt(r) && !pl.allow(remoteHost(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
