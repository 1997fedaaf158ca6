package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Time bucket layouts used by the feeds.
const (
	LayoutHourly = "2006010215"
	LayoutDaily  = "2006-01-02"
)

// DefaultMaxAttempts is the cascade budget: the requested bucket plus two
// earlier ones.
const DefaultMaxAttempts = 3

// Cascade is a feed's policy for walking back to earlier time buckets when
// the requested one has not been published yet.
type Cascade struct {
	Layout string
	// InitialShift moves the requested bucket back before the first attempt.
	InitialShift time.Duration
	// Step is how far back each retry moves. Must be positive.
	Step        time.Duration
	MaxAttempts int
}

// Hourly is the common policy: 1 hour back per retry, 3 attempts.
func Hourly() Cascade {
	return Cascade{Layout: LayoutHourly, Step: time.Hour, MaxAttempts: DefaultMaxAttempts}
}

// Daily walks back one calendar day per retry.
func Daily() Cascade {
	return Cascade{Layout: LayoutDaily, Step: 24 * time.Hour, MaxAttempts: DefaultMaxAttempts}
}

func (c Cascade) attempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

// Validate rejects policies that would not move strictly backward.
func (c Cascade) Validate() error {
	if c.Layout == "" {
		return errors.New("cascade layout is empty")
	}
	if c.Step <= 0 {
		return fmt.Errorf("cascade step must be positive, got %s", c.Step)
	}
	if c.InitialShift < 0 {
		return fmt.Errorf("cascade initial shift must not be negative, got %s", c.InitialShift)
	}
	return nil
}

// Bucket formats t in the policy's layout.
func (c Cascade) Bucket(t time.Time) string {
	return t.Format(c.Layout)
}

// Buckets lists the buckets the cascade would query for bucket, in order.
func (c Cascade) Buckets(bucket string) ([]string, error) {
	start, err := time.Parse(c.Layout, bucket)
	if err != nil {
		return nil, fmt.Errorf("invalid time bucket %q for layout %s: %w", bucket, c.Layout, err)
	}
	n := c.attempts()
	out := make([]string, 0, n)
	current := start.Add(-c.InitialShift)
	for i := 0; i < n; i++ {
		out = append(out, current.Format(c.Layout))
		current = current.Add(-c.Step)
	}
	return out, nil
}

// RunCascade calls attempt for successively earlier buckets until one yields
// items. An empty success or an ErrNoData failure moves on to the next
// bucket; any other failure ends the cascade. The result is never nil.
func RunCascade[T any](
	ctx context.Context,
	c Cascade,
	bucket string,
	logger *slog.Logger,
	attempt func(ctx context.Context, bucket string) Result[[]T],
) []T {
	if logger == nil {
		logger = slog.Default()
	}
	empty := make([]T, 0)

	if err := c.Validate(); err != nil {
		logger.Error("invalid cascade policy", "error", err)
		return empty
	}
	buckets, err := c.Buckets(bucket)
	if err != nil {
		logger.Warn("cascade not started", "error", err)
		return empty
	}

	for i, b := range buckets {
		if ctx.Err() != nil {
			logger.Warn("cascade cancelled", "bucket", b, "error", ctx.Err())
			return empty
		}

		res := attempt(ctx, b)
		switch {
		case res.OK() && len(res.Data()) > 0:
			if i > 0 {
				logger.Info("cascade fell back to earlier bucket", "requested", bucket, "bucket", b, "attempts", i+1)
			}
			return res.Data()
		case res.OK(), errors.Is(res.Cause(), ErrNoData):
			logger.Debug("no data for bucket", "bucket", b, "attempt", i+1)
		default:
			logger.Warn("feed call failed", "bucket", b, "error", res.Err())
			return empty
		}
	}

	logger.Info("no data after fallback", "requested", bucket, "attempts", len(buckets))
	return empty
}
