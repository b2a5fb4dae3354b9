package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// okHandler answers 200 so tests can tell a request got through.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// fakeClock is a settable time source for the limiter.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, rps float64, burst int) (*rateLimiter, *fakeClock, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	rl, stop := newRateLimiter(rps, burst, newServerMetrics(reg))
	t.Cleanup(stop)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock, reg
}

func call(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/retrieval", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenRefill(t *testing.T) {
	t.Parallel()

	rl, clock, reg := newTestLimiter(t, 1, 2)
	h := rl.middleware(okHandler)

	for i := range 2 {
		if w := call(h, "10.0.0.1:5000"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status %d", i, w.Code)
		}
	}

	w := call(h, "10.0.0.1:5000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request over burst: status %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.ErrorCode != http.StatusTooManyRequests || body.ErrorMsg == "" {
		t.Errorf("429 body = %+v", body)
	}
	if v, ok := counterValue(t, reg, "adbpg_http_rejected_total", "reason", rejectRateLimited); !ok || v != 1 {
		t.Errorf("rejected{rate_limited} = %v (found %v), want 1", v, ok)
	}

	clock.advance(time.Second)
	if w := call(h, "10.0.0.1:5000"); w.Code != http.StatusOK {
		t.Errorf("after refill: status %d, want 200", w.Code)
	}
}

func TestRateLimit_RetryAfterRoundsUp(t *testing.T) {
	t.Parallel()

	rl, _, _ := newTestLimiter(t, 0.1, 1)
	h := rl.middleware(okHandler)

	call(h, "10.0.0.2:1")
	w := call(h, "10.0.0.2:1")
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}
}

// A rejected request must not borrow from the next token.
func TestRateLimit_RejectionKeepsBucket(t *testing.T) {
	t.Parallel()

	rl, clock, _ := newTestLimiter(t, 1, 1)
	h := rl.middleware(okHandler)

	call(h, "10.0.0.3:1")
	for range 5 {
		call(h, "10.0.0.3:1")
	}
	clock.advance(time.Second)
	if w := call(h, "10.0.0.3:1"); w.Code != http.StatusOK {
		t.Errorf("status %d after one refill interval, want 200", w.Code)
	}
}

func TestRateLimit_PerCaller(t *testing.T) {
	t.Parallel()

	rl, _, _ := newTestLimiter(t, 0.001, 1)
	h := rl.middleware(okHandler)

	for range 3 {
		call(h, "192.168.1.1:1111")
	}
	if w := call(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second caller: status %d, want 200", w.Code)
	}
	// Another port on the same host shares the bucket.
	if w := call(h, "192.168.1.1:3333"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same host, new port: status %d, want 429", w.Code)
	}
}

func TestRateLimit_Sweep(t *testing.T) {
	t.Parallel()

	rl, clock, _ := newTestLimiter(t, 1, 1)
	h := rl.middleware(okHandler)

	call(h, "10.1.0.1:1")
	clock.advance(bucketIdle / 2)
	call(h, "10.1.0.2:1")
	clock.advance(bucketIdle/2 + time.Second)

	rl.sweep()
	if n := rl.size(); n != 1 {
		t.Errorf("buckets after sweep = %d, want 1", n)
	}
}

func TestRemoteHost(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"[::1]:8080":      "::1",
		"noport":          "noport",
	}
	for addr, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := remoteHost(req); got != want {
			t.Errorf("remoteHost(%q) = %q, want %q", addr, got, want)
		}
	}
}
