package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

var errTimeout = errors.New("dial tcp: i/o timeout")

type reply struct {
	body string
	err  error
}

// scriptedFetcher replays replies in order and repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	replies []reply
	urls    []string
}

func (f *scriptedFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, u)
	idx := len(f.urls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	return r.body, r.err
}

func (f *scriptedFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

type stubItem struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type stubClient struct{}

func (stubClient) Name() string { return "stub" }

func (stubClient) BuildURL(bucket string) (string, error) {
	v := url.Values{}
	v.Set("time", bucket)
	return "http://feed.test/stub?" + v.Encode(), nil
}

func (stubClient) Decode(text string) (Envelope[stubItem], error) {
	return DecodeEnvelope[stubItem]("stub", text)
}

func stubTransform(env Envelope[stubItem]) ([]stubItem, error) {
	h := env.Header()
	switch {
	case h.NoData():
		return nil, nil
	case !h.Normal():
		return nil, fmt.Errorf("result code %s", h)
	}
	return env.Items(), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestExecutor records backoff delays instead of sleeping.
func newTestExecutor(f Fetcher, delays *[]time.Duration) *Executor {
	return NewExecutor("stub", f,
		WithLogger(discardLogger()),
		WithSleep(func(_ context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		}),
	)
}

const (
	okPayload     = `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},"body":{"items":{"item":[{"date":"2025060111","value":"3"}]}}}}`
	noDataPayload = `{"response":{"header":{"resultCode":"03"},"body":{"items":{"item":[]}}}}`
)
