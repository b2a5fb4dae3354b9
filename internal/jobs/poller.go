// Package jobs waits for asynchronous document jobs to finish.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

const (
	// DefaultInterval is the pause between status reads.
	DefaultInterval = 3 * time.Second
	// DefaultTimeout bounds a whole wait, measured from its first read.
	DefaultTimeout = 1800 * time.Second
)

// Getter reads the state of one job. *adbpg.Client satisfies it.
type Getter interface {
	GetUploadDocumentJob(ctx context.Context, collection, jobID string) (*adbpg.Response, error)
}

// Observer receives every status read. Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, jobID string, status adbpg.JobStatus)
}

// Poller blocks until a job reaches a terminal state.
type Poller struct {
	Getter   Getter
	Interval time.Duration
	Timeout  time.Duration
	// ErrorIsTerminalAlone stops polling on a non-empty Error even while
	// Completed is false. The response is returned as-is in that case.
	ErrorIsTerminalAlone bool
	// Observer is optional.
	Observer Observer
	// Metrics is optional.
	Metrics *Metrics
	Log     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Poller with the default interval and timeout.
func New(g Getter, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		Getter:   g,
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Log:      log,
	}
}

// Await polls jobID until it is terminal, the timeout elapses or ctx ends.
// A job that completed with an error returns *adbpg.JobFailedError.
func (p *Poller) Await(ctx context.Context, collection, jobID string) (*adbpg.Response, error) {
	if p.Getter == nil {
		return nil, fmt.Errorf("jobs: getter must not be nil")
	}
	now, sleep := p.now, p.sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepContext
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	interval, timeout := p.Interval, p.Timeout
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := now()
	for polls := 1; ; polls++ {
		if elapsed := now().Sub(start); elapsed > timeout {
			p.Metrics.observe("timeout")
			return nil, fmt.Errorf("%w: job %s did not finish within %s", adbpg.ErrTimeout, jobID, timeout)
		}

		resp, err := p.Getter.GetUploadDocumentJob(ctx, collection, jobID)
		if err != nil {
			p.Metrics.observe("error")
			return nil, fmt.Errorf("jobs: poll %s: %w", jobID, err)
		}
		status := resp.Job()
		if p.Observer != nil {
			p.Observer.Observe(ctx, jobID, status)
		}
		log.Debug("jobs: polled",
			slog.String("job_id", jobID),
			slog.Int("poll", polls),
			slog.Bool("completed", status.Completed),
			slog.String("status", status.Status),
		)

		switch {
		case status.Completed && status.Error != "":
			p.Metrics.observe("failed")
			return nil, &adbpg.JobFailedError{JobID: jobID, Reason: status.Error, Response: resp}
		case status.Completed:
			p.Metrics.observe("completed")
			log.Info("jobs: job completed", slog.String("job_id", jobID), slog.Int("polls", polls))
			return resp, nil
		case status.Error != "" && p.ErrorIsTerminalAlone:
			p.Metrics.observe("errored")
			log.Warn("jobs: job reported error", slog.String("job_id", jobID), slog.String("error", status.Error))
			return resp, nil
		}

		if err := sleep(ctx, interval); err != nil {
			p.Metrics.observe("cancelled")
			return nil, fmt.Errorf("jobs: wait for %s: %w", jobID, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Metrics counts finished waits by outcome.
type Metrics struct {
	waitsTotal *prometheus.CounterVec
}

// NewMetrics registers poller metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		waitsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "adbpg",
			Subsystem: "jobs",
			Name:      "waits_total",
			Help:      "Total number of job waits, partitioned by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.waitsTotal.WithLabelValues(outcome).Inc()
}
