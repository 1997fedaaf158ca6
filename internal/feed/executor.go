package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour for transport faults.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultBackoff retries a failed fetch 3 times, waiting 2s, 4s, then 8s.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		Multiplier:      2.0,
		MaxInterval:     30 * time.Second,
	}
}

// maxDelay caps a backoff wait when MaxInterval is unset.
const maxDelay = time.Hour

func (b BackoffConfig) delay(attempt int) time.Duration {
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	limit := b.MaxInterval
	if limit <= 0 {
		limit = maxDelay
	}
	d := float64(b.InitialInterval) * math.Pow(mult, float64(attempt))
	if math.IsNaN(d) || d > float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// BreakerConfig controls the circuit breaker that spans a feed's calls.
// Threshold is how many consecutive failed fetches open it: 0 derives twice
// the fetches one call may make, a negative value disables the breaker.
// Cooldown is how long it stays open before letting one request through.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// DefaultBreaker opens after the derived threshold and cools down for 2 minutes.
func DefaultBreaker() BreakerConfig {
	return BreakerConfig{Cooldown: 2 * time.Minute}
}

func (b BreakerConfig) threshold(backoff BackoffConfig) uint32 {
	if b.Threshold > 0 {
		return uint32(b.Threshold)
	}
	n := 2 * (backoff.MaxRetries + 1)
	if n < 1 {
		n = 1
	}
	return uint32(n)
}

var (
	errCircuitOpen      = errors.New("circuit breaker open")
	errNoFetcher        = errors.New("fetcher not configured")
	errInvalidBackoff   = errors.New("invalid backoff configuration")
	errRetriesExhausted = errors.New("retries exhausted")

	// ErrUpstream is the cause of failures reported by the upstream itself.
	ErrUpstream = errors.New("upstream error")
)

// Executor runs single feed calls: fetch with retry and circuit breaking,
// classify, decode and transform. It never panics past Execute.
type Executor struct {
	fetcher     Fetcher
	backoff     BackoffConfig
	breaker     BreakerConfig
	circuit     *gobreaker.CircuitBreaker
	noDataToken bool
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

type ExecutorOption func(*Executor)

func WithBackoff(b BackoffConfig) ExecutorOption {
	return func(e *Executor) { e.backoff = b }
}

// WithSleep replaces the backoff wait. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithBreaker sets the threshold and cooldown of the default circuit breaker.
func WithBreaker(b BreakerConfig) ExecutorOption {
	return func(e *Executor) { e.breaker = b }
}

// WithNoDataToken makes a bare NO_DATA body mean ErrNoData rather than an
// unrecognized response.
func WithNoDataToken() ExecutorOption {
	return func(e *Executor) { e.noDataToken = true }
}

// WithCircuitBreaker replaces the default breaker entirely.
func WithCircuitBreaker(settings gobreaker.Settings) ExecutorOption {
	return func(e *Executor) { e.circuit = gobreaker.NewCircuitBreaker(settings) }
}

// NewExecutor builds an executor for one feed. name labels the circuit breaker.
func NewExecutor(name string, fetcher Fetcher, opts ...ExecutorOption) *Executor {
	e := &Executor{
		fetcher: fetcher,
		backoff: DefaultBackoff(),
		breaker: DefaultBreaker(),
		sleep:   sleepContext,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.circuit == nil && e.breaker.Threshold >= 0 {
		trip := e.breaker.threshold(e.backoff)
		e.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     e.breaker.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= trip
			},
		})
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute performs one logical call of client with params and hands the
// decoded payload to transform. Transport faults are retried here; upstream
// errors, decode failures and transform errors are returned as a Failure
// without retry.
func Execute[P any, D any, R any](
	ctx context.Context,
	ex *Executor,
	client Client[P, D],
	params P,
	transform func(D) (R, error),
) (res Result[R]) {
	name := "feed"
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			if ex != nil && ex.logger != nil {
				ex.logger.Error("feed call panicked", "feed", name, "error", err)
			}
			res = Failure[R](name+": unexpected failure", err)
		}
	}()

	if ex == nil || client == nil {
		return Failure[R](name+": executor not configured", errNoFetcher)
	}
	name = client.Name()

	u, err := client.BuildURL(params)
	if err != nil {
		return Failure[R](name+": build request", err)
	}

	text, err := ex.fetch(ctx, name, u)
	if err != nil {
		return Failure[R](name+": fetch failed", err)
	}

	class := Classify(text)
	if class.Kind == KindNoDataToken && ex.noDataToken {
		return Failure[R](name+": "+NoDataMsg, ErrNoData)
	}
	if class.Kind != KindJSON {
		ex.logger.Warn("feed returned error payload", "feed", name, "kind", class.Kind.String(), "errMsg", class.ErrMsg, "authMsg", class.AuthMsg)
		return Failure[R](class.describe(name), fmt.Errorf("%w: %s", ErrUpstream, class.Kind))
	}

	decoded, err := client.Decode(text)
	if err != nil {
		return Failure[R](err.Error(), err)
	}

	out, err := transform(decoded)
	if err != nil {
		return Failure[R](name+": "+err.Error(), err)
	}
	return Success(out)
}

// fetch calls the fetcher through the circuit breaker, retrying transport
// faults with exponential backoff.
func (e *Executor) fetch(ctx context.Context, feedName, url string) (string, error) {
	if e.fetcher == nil {
		return "", errNoFetcher
	}
	if e.backoff.MaxRetries < 0 || e.backoff.InitialInterval < 0 {
		return "", errInvalidBackoff
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		e.logger.Debug("feed request", "feed", feedName, "attempt", attempt+1)
		body, err := e.call(ctx, url)
		if err == nil {
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if isPermanent(err) || ctx.Err() != nil {
			return "", err
		}
		if attempt >= e.backoff.MaxRetries {
			return "", fmt.Errorf("%w after %d attempts: %w", errRetriesExhausted, attempt+1, err)
		}

		delay := e.backoff.delay(attempt)
		e.logger.Warn("feed request failed, retrying", "feed", feedName, "attempt", attempt+1, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			return "", err
		}
		attempt++
	}
}

func (e *Executor) call(ctx context.Context, url string) (string, error) {
	if e.circuit == nil {
		return e.fetcher.Fetch(ctx, url)
	}
	result, err := e.circuit.Execute(func() (interface{}, error) {
		return e.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		return "", err
	}
	body, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
