package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantOK     map[string]bool
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantOK:     map[string]bool{},
		},
		{
			name:       "all up",
			pingers:    []Pinger{&fakePinger{name: "analyticdb"}, &fakePinger{name: "job_ledger"}},
			wantStatus: http.StatusOK,
			wantOK:     map[string]bool{"analyticdb": true, "job_ledger": true},
		},
		{
			name:       "ledger down",
			pingers:    []Pinger{&fakePinger{name: "analyticdb"}, &fakePinger{name: "job_ledger", err: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     map[string]bool{"analyticdb": true, "job_ledger": false},
		},
		{
			name:       "all down",
			pingers:    []Pinger{&fakePinger{name: "analyticdb", err: down}, &fakePinger{name: "job_ledger", err: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantOK:     map[string]bool{"analyticdb": false, "job_ledger": false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			s.pingers = tc.pingers
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != (tc.wantStatus == http.StatusOK) {
				t.Errorf("ready = %v", resp.Ready)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("checks = %d, want %d", len(resp.Checks), len(tc.wantOK))
			}
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d = %q, want configured order", i, c.Name)
				}
				if c.OK != tc.wantOK[c.Name] {
					t.Errorf("check %q ok = %v", c.Name, c.OK)
				}
				if !c.OK && c.Error == "" {
					t.Errorf("check %q failed without an error", c.Name)
				}
			}
		})
	}
}

// Probes run concurrently, so two slow dependencies cost one delay.
func TestHandleReady_Concurrent(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pingers = []Pinger{
		&fakePinger{name: "a", delay: 200 * time.Millisecond},
		&fakePinger{name: "b", delay: 200 * time.Millisecond},
		&fakePinger{name: "c", delay: 200 * time.Millisecond},
	}

	start := time.Now()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if elapsed := time.Since(start); elapsed > 550*time.Millisecond {
		t.Errorf("ready took %v, probes look sequential", elapsed)
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, c := range resp.Checks {
		if c.LatencyMS < 150 {
			t.Errorf("check %q latency_ms = %d, want about 200", c.Name, c.LatencyMS)
		}
	}
}

func TestHandleReady_DependencyGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer()
	s.metrics = newServerMetrics(reg)
	s.pingers = []Pinger{&fakePinger{name: "analyticdb"}, &fakePinger{name: "job_ledger", err: errors.New("locked")}}

	s.handleReady(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "adbpg_ready_dependency_up" {
			continue
		}
		for _, m := range mf.GetMetric() {
			got[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	if got["analyticdb"] != 1 || got["job_ledger"] != 0 || len(got) != 2 {
		t.Errorf("dependency_up = %v", got)
	}
}
