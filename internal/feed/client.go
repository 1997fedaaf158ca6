package feed

import (
	"context"
	"errors"
)

// Client is the per-feed capability set: build a request URL from params and
// decode a JSON payload into the feed's typed result.
type Client[P any, D any] interface {
	Name() string
	BuildURL(params P) (string, error)
	Decode(text string) (D, error)
}

// Fetcher performs one GET against url and returns the raw body text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// PermanentError marks a transport error that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the executor does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
