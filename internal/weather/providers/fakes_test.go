package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

var errTimeout = errors.New("dial tcp: i/o timeout")

type reply struct {
	body string
	err  error
}

// fakeFetcher replays replies in order, repeating the last one, and records
// the query of every request.
type fakeFetcher struct {
	mu      sync.Mutex
	replies []reply
	queries []url.Values
}

func replies(bodies ...string) *fakeFetcher {
	f := &fakeFetcher{}
	for _, b := range bodies {
		f.replies = append(f.replies, reply{body: b})
	}
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	f.queries = append(f.queries, u.Query())
	idx := len(f.queries) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx].body, f.replies[idx].err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeFetcher) query(i int) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[i]
}

func testEndpoint() Endpoint {
	return Endpoint{BaseURL: "http://feed.test/api", ServiceKey: "a+b/c="}
}

// testOptions silence logging and skip backoff waits.
func testOptions() []Option {
	return []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithExecutorOptions(feed.WithSleep(func(context.Context, time.Duration) error { return nil })),
	}
}

const (
	noDataBody     = `{"response":{"header":{"resultCode":"03","resultMsg":"NO_DATA"}}}`
	noDataMsgBody  = `{"response":{"header":{"resultCode":"99","resultMsg":"NO_DATA"}}}`
	serviceErrBody = `{"response":{"header":{"resultCode":"10","resultMsg":"INVALID_REQUEST_PARAMETER_ERROR"}}}`
)
