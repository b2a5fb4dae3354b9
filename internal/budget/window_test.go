package budget

import (
	"context"
	"errors"
	"testing"
)

func Test_RetryWithSlidingWindow_AlwaysFailing(t *testing.T) {
	t.Parallel()
	for _, n := range []int{3, 4, 7} {
		msgs := make([]int, n)
		for i := range msgs {
			msgs[i] = i
		}
		boom := errors.New("request too large")
		var sizes []int
		_, err := RetryWithSlidingWindow(context.Background(), msgs, func(_ context.Context, w []int) error {
			sizes = append(sizes, len(w))
			return boom
		}, nil)

		if !errors.Is(err, boom) {
			t.Fatalf("n=%d: expected original error, got %v", n, err)
		}
		if retries := len(sizes) - 1; retries != n-2 {
			t.Errorf("n=%d: want %d retries, got %d", n, n-2, retries)
		}
		for i, size := range sizes {
			if size != n-i {
				t.Errorf("n=%d: attempt %d used %d messages, want %d", n, i, size, n-i)
			}
		}
		if last := sizes[len(sizes)-1]; last != MinWindow {
			t.Errorf("n=%d: expected final window of %d, got %d", n, MinWindow, last)
		}
	}
}

func Test_RetryWithSlidingWindow_NoRetryAtFloor(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2} {
		calls := 0
		boom := errors.New("boom")
		_, err := RetryWithSlidingWindow(context.Background(), make([]string, n), func(context.Context, []string) error {
			calls++
			return boom
		}, nil)
		if !errors.Is(err, boom) {
			t.Fatalf("n=%d: expected boom, got %v", n, err)
		}
		if calls != 1 {
			t.Errorf("n=%d: want 1 call, got %d", n, calls)
		}
	}
}

func Test_RetryWithSlidingWindow_KeepsNewest(t *testing.T) {
	t.Parallel()
	msgs := []string{"sys", "u1", "a1", "u2"}
	got, err := RetryWithSlidingWindow(context.Background(), msgs, func(_ context.Context, w []string) error {
		if len(w) > 2 {
			return errors.New("too long")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("RetryWithSlidingWindow: %v", err)
	}
	if len(got) != 2 || got[0] != "a1" || got[1] != "u2" {
		t.Errorf("expected last two messages, got %v", got)
	}
}

func Test_RetryWithSlidingWindow_SuccessFirstTry(t *testing.T) {
	t.Parallel()
	msgs := []string{"a", "b", "c"}
	got, err := RetryWithSlidingWindow(context.Background(), msgs, func(context.Context, []string) error { return nil }, nil)
	if err != nil {
		t.Fatalf("RetryWithSlidingWindow: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("want untouched window of 3, got %d", len(got))
	}
}
