package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/adbpg-go/internal/logging"
)

const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

// bucketIdle is how long a caller's bucket survives without traffic.
const bucketIdle = 5 * time.Minute

// bucket is one caller's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles retrieval and tool calls per caller address. A
// single Dify deployment shares one API key, so the remote address is the
// only useful key.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	rps   rate.Limit
	burst int
	now   func() time.Time

	metrics *serverMetrics
}

// newRateLimiter builds a limiter and starts sweeping idle buckets once a
// minute. Call stop to end the sweeper.
func newRateLimiter(rps float64, burst int, m *serverMetrics) (rl *rateLimiter, stop func()) {
	rl = &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		metrics: m,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl, cancel
}

// reserve takes one token for key. When none is available it returns the
// wait until the next one and leaves the bucket untouched.
func (rl *rateLimiter) reserve(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return d, false
	}
	return 0, true
}

// sweep drops buckets idle for longer than bucketIdle.
func (rl *rateLimiter) sweep() {
	cutoff := rl.now().Add(-bucketIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size reports the number of tracked callers.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware answers 429 with a Retry-After header, in whole seconds, once a
// caller runs out of tokens.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := remoteHost(r)
		wait, ok := rl.reserve(addr)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		secs := int(math.Ceil(wait.Seconds()))
		if secs < 1 {
			secs = 1
		}
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("remote", addr),
			slog.Int("retry_after_s", secs),
		)
		rl.metrics.rejectedTotal.WithLabelValues(rejectRateLimited).Inc()
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
			ErrorCode: http.StatusTooManyRequests,
			ErrorMsg:  fmt.Sprintf("rate limit exceeded, retry in %ds", secs),
		})
	})
}

// remoteHost is the host part of RemoteAddr. Forwarding headers are ignored.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
