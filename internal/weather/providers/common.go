package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

// ErrNotConfigured is returned by constructors when a feed's base URL or
// service key is blank.
var ErrNotConfigured = errors.New("feed is not configured")

const (
	defaultPageNo    = 1
	defaultNumOfRows = 100
)

// Endpoint is the configuration a feed client captures at construction.
type Endpoint struct {
	BaseURL    string
	ServiceKey string
	// NumOfRows is the page size; 0 means the default.
	NumOfRows int
}

func (e Endpoint) validate(name string) error {
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("%w: %s base url is blank", ErrNotConfigured, name)
	}
	if _, err := url.ParseRequestURI(e.BaseURL); err != nil {
		return fmt.Errorf("%w: %s base url: %v", ErrNotConfigured, name, err)
	}
	if strings.TrimSpace(e.ServiceKey) == "" {
		return fmt.Errorf("%w: %s service key is blank", ErrNotConfigured, name)
	}
	return nil
}

// Page selects one page of results.
type Page struct {
	PageNo    int
	NumOfRows int
}

func (e Endpoint) page(p Page) Page {
	if p.PageNo <= 0 {
		p.PageNo = defaultPageNo
	}
	if p.NumOfRows <= 0 {
		p.NumOfRows = e.NumOfRows
	}
	if p.NumOfRows <= 0 {
		p.NumOfRows = defaultNumOfRows
	}
	return p
}

// query starts the parameter set every feed sends.
func (e Endpoint) query(p Page) url.Values {
	p = e.page(p)
	values := url.Values{}
	values.Set("serviceKey", e.ServiceKey)
	values.Set("pageNo", strconv.Itoa(p.PageNo))
	values.Set("numOfRows", strconv.Itoa(p.NumOfRows))
	values.Set("dataType", "JSON")
	return values
}

func (e Endpoint) url(values url.Values) string {
	sep := "?"
	if strings.Contains(e.BaseURL, "?") {
		sep = "&"
	}
	return e.BaseURL + sep + values.Encode()
}

// setIf adds key only when value is non-blank.
func setIf(values url.Values, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		values.Set(key, v)
	}
}

// field parses one raw sub-field. Blank input, a parse failure or a panic
// inside parse all mean the field is absent.
func field[V any](raw string, parse func(string) (V, bool)) (v V, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, ok = zero, false
		}
	}()
	s := strings.TrimSpace(raw)
	if s == "" {
		return v, false
	}
	return parse(s)
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseInt(s string) (float64, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

func parseText(s string) (string, bool) {
	return s, s != ""
}

// settings collects constructor options shared by every feed.
type settings struct {
	executor []feed.ExecutorOption
	logger   *slog.Logger
	cascade  *feed.Cascade
}

// Option tunes a feed at construction.
type Option func(*settings)

// WithExecutorOptions passes options through to the feed's executor.
func WithExecutorOptions(opts ...feed.ExecutorOption) Option {
	return func(s *settings) { s.executor = append(s.executor, opts...) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithCascade overrides the feed's fallback policy.
func WithCascade(c feed.Cascade) Option {
	return func(s *settings) { s.cascade = &c }
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// build finishes construction: validated endpoint, executor and cascade.
// extra executor options go before the caller's so they can be overridden.
func (s settings) build(name string, fetcher feed.Fetcher, def feed.Cascade, extra ...feed.ExecutorOption) (*feed.Executor, feed.Cascade, *slog.Logger, error) {
	c := def
	if s.cascade != nil {
		c = *s.cascade
	}
	if err := c.Validate(); err != nil {
		return nil, feed.Cascade{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	logger := s.logger.With("feed", name)
	opts := append([]feed.ExecutorOption{feed.WithLogger(logger)}, extra...)
	opts = append(opts, s.executor...)
	return feed.NewExecutor(name, fetcher, opts...), c, logger, nil
}
