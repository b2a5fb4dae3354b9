package budget

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avast/retry-go/v4"
)

// MinWindow is the number of trailing messages that are never dropped.
const MinWindow = 2

// RetryWithSlidingWindow calls attempt with msgs. On failure it drops the
// oldest message and tries again, down to the last MinWindow messages; a
// failure at that size is returned as-is. A list of n >= 3 messages that
// always fails is retried exactly n-2 times.
//
// On success it returns the window that was accepted.
func RetryWithSlidingWindow[M any](ctx context.Context, msgs []M, attempt func(ctx context.Context, window []M) error, log *slog.Logger) ([]M, error) {
	if log == nil {
		log = slog.Default()
	}
	window := msgs
	attempts := max(1, len(msgs)-1)

	err := retry.Do(
		func() error { return attempt(ctx, window) },
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return len(window) > MinWindow
		}),
		retry.OnRetry(func(n uint, err error) {
			if len(window) <= MinWindow {
				return
			}
			keep := max(MinWindow, len(window)-1)
			log.Warn("budget: request failed, reducing messages with sliding window",
				slog.Uint64("attempt", uint64(n)+1),
				slog.Int("messages", len(window)),
				slog.Int("keep", keep),
				slog.Any("error", err),
			)
			window = window[len(window)-keep:]
		}),
	)
	if err != nil {
		return nil, err
	}
	return window, nil
}
