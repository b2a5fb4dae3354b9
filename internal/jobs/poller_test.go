package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// scriptedGetter replays job responses in order, repeating the last one.
type scriptedGetter struct {
	bodies []string
	calls  int
}

func (g *scriptedGetter) GetUploadDocumentJob(_ context.Context, _, _ string) (*adbpg.Response, error) {
	i := g.calls
	if i >= len(g.bodies) {
		i = len(g.bodies) - 1
	}
	g.calls++
	return adbpg.NewResponseFromJSON([]byte(g.bodies[i]))
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	t      time.Time
	sleeps int
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps++
	c.t = c.t.Add(d)
	return nil
}

type recordingObserver struct{ seen []adbpg.JobStatus }

func (r *recordingObserver) Observe(_ context.Context, _ string, s adbpg.JobStatus) {
	r.seen = append(r.seen, s)
}

func newTestPoller(g Getter, clock *fakeClock) *Poller {
	p := New(g, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = clock.now
	p.sleep = clock.sleep
	return p
}

func Test_Poller_CompletesOnThirdRead(t *testing.T) {
	t.Parallel()
	g := &scriptedGetter{bodies: []string{
		`{"Job":{"Completed":false}}`,
		`{"Job":{"Completed":false}}`,
		`{"Job":{"Completed":true,"Error":""},"ChunkResult":{"ChunkFileUrl":"https://x/chunks.jsonl"}}`,
	}}
	clock := &fakeClock{t: time.Unix(0, 0)}
	obs := &recordingObserver{}
	p := newTestPoller(g, clock)
	p.Observer = obs

	resp, err := p.Await(context.Background(), "kb", "job-1")
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if clock.sleeps != 2 {
		t.Errorf("want 2 sleeps, got %d", clock.sleeps)
	}
	if got := resp.Job().ChunkFileURL; got != "https://x/chunks.jsonl" {
		t.Errorf("expected chunk file url from third response, got %q", got)
	}
	if len(obs.seen) != 3 {
		t.Errorf("want 3 observations, got %d", len(obs.seen))
	}
}

func Test_Poller_CompletedWithError(t *testing.T) {
	t.Parallel()
	g := &scriptedGetter{bodies: []string{`{"Job":{"Completed":true,"Error":"parse failed"}}`}}
	p := newTestPoller(g, &fakeClock{})

	_, err := p.Await(context.Background(), "kb", "job-2")
	var failed *adbpg.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *JobFailedError, got %v", err)
	}
	if failed.Reason != "parse failed" {
		t.Errorf("expected reason 'parse failed', got %q", failed.Reason)
	}
	if failed.Response == nil || !failed.Response.Job().Completed {
		t.Error("expected the final status read on the error")
	}
}

func Test_Poller_Timeout(t *testing.T) {
	t.Parallel()
	g := &scriptedGetter{bodies: []string{`{"Job":{"Completed":false}}`}}
	clock := &fakeClock{t: time.Unix(0, 0)}
	reg := prometheus.NewRegistry()
	p := newTestPoller(g, clock)
	p.Metrics = NewMetrics(reg)

	_, err := p.Await(context.Background(), "kb", "job-3")
	if !errors.Is(err, adbpg.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// 1800s / 3s = 600 sleeps reach exactly the budget; one more read then
	// one more sleep pushes elapsed past it.
	if g.calls != 601 {
		t.Errorf("want 601 reads, got %d", g.calls)
	}
	if got := testutil.ToFloat64(p.Metrics.waitsTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("want 1 timeout recorded, got %v", got)
	}
}

func Test_Poller_ErrorAlone(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name          string
		terminalAlone bool
		wantCalls     int
	}{
		{name: "terminal", terminalAlone: true, wantCalls: 1},
		{name: "requires completed", terminalAlone: false, wantCalls: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := &scriptedGetter{bodies: []string{
				`{"Job":{"Completed":false,"Error":"oops"}}`,
				`{"Job":{"Completed":true}}`,
			}}
			p := newTestPoller(g, &fakeClock{})
			p.ErrorIsTerminalAlone = tc.terminalAlone

			if _, err := p.Await(context.Background(), "kb", "job-4"); err != nil {
				t.Fatalf("Await: %v", err)
			}
			if g.calls != tc.wantCalls {
				t.Errorf("want %d reads, got %d", tc.wantCalls, g.calls)
			}
		})
	}
}

func Test_Poller_ContextCancelled(t *testing.T) {
	t.Parallel()
	g := &scriptedGetter{bodies: []string{`{"Job":{"Completed":false}}`}}
	p := New(g, nil)
	p.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx, "kb", "job-5"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
