package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Job{ID: "job-1", Collection: "kb", FileName: "a.pdf", Source: "/files/a", DryRun: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	j, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if j.Collection != "kb" || j.FileName != "a.pdf" || !j.DryRun {
		t.Errorf("unexpected job %+v", j)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to default to now")
	}
}

func Test_Store_ObserveUpdatesStatus(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Job{ID: "job-2", Collection: "kb"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	s.Observe(ctx, "job-2", adbpg.JobStatus{Status: "Failed", Completed: true, Error: "bad pdf"})

	j, err := s.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !j.Completed || j.Status != "Failed" || j.Error != "bad pdf" {
		t.Errorf("status not applied: %+v", j)
	}

	// Unknown ids are a no-op.
	s.Observe(ctx, "missing", adbpg.JobStatus{Completed: true})
}

func Test_Store_RecentNewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	for i, id := range []string{"first", "second", "third"} {
		if err := s.Record(ctx, Job{ID: id, Collection: "kb", CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	jobs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("want 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "third" || jobs[1].ID != "second" {
		t.Errorf("want third, second; got %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func Test_Store_GetMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want sql.ErrNoRows, got %v", err)
	}
}

func Test_OpenFromEnv_Disabled(t *testing.T) {
	t.Setenv("ADBPG_JOBS_DB", "disabled")
	s, err := OpenFromEnv()
	if err != nil || s != nil {
		t.Fatalf("want nil store, got %v, %v", s, err)
	}
}
