package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

// IndexParams selects one living-weather index announcement.
type IndexParams struct {
	AreaNo string
	// Time is the announcement bucket, yyyyMMddHH.
	Time        string
	RequestCode string
	Page        Page
}

var hourKey = regexp.MustCompile(`^h(\d+)$`)

// indexItem is one index announcement: code/areaNo/date plus hour-offset
// fields h0, h1, ... whose set differs per index.
type indexItem struct {
	Code   string
	AreaNo string
	Date   string
	Hours  map[int]string
}

func (i *indexItem) UnmarshalJSON(data []byte) error {
	var raw map[string]feed.Text
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = indexItem{Hours: make(map[int]string)}
	for k, v := range raw {
		switch k {
		case "code":
			i.Code = v.String()
		case "areaNo":
			i.AreaNo = v.String()
		case "date":
			i.Date = v.String()
		default:
			if m := hourKey.FindStringSubmatch(k); m != nil {
				if h, err := strconv.Atoi(m[1]); err == nil {
					i.Hours[h] = v.String()
				}
			}
		}
	}
	return nil
}

// indexSpec is what distinguishes one index feed from another.
type indexSpec struct {
	name        string
	requestCode string
	offsets     []int
	parse       func(string) (float64, bool)
	cascade     feed.Cascade
	// noDataIsError turns the NO_DATA header, and a bare NO_DATA body, into
	// feed.ErrNoData instead of an empty success.
	noDataIsError bool
}

func offsets(from, to, step int) []int {
	var out []int
	for h := from; h <= to; h += step {
		out = append(out, h)
	}
	return out
}

// IndexClient implements feed.Client for the hourly living-weather indices.
type IndexClient struct {
	spec     indexSpec
	endpoint Endpoint
}

func (c *IndexClient) Name() string {
	return c.spec.name
}

func (c *IndexClient) BuildURL(p IndexParams) (string, error) {
	if strings.TrimSpace(p.AreaNo) == "" {
		return "", errors.New("area number is required")
	}
	if _, err := time.Parse(feed.LayoutHourly, p.Time); err != nil {
		return "", fmt.Errorf("invalid time %q: %w", p.Time, err)
	}

	values := c.endpoint.query(p.Page)
	values.Set("areaNo", strings.TrimSpace(p.AreaNo))
	values.Set("time", p.Time)
	setIf(values, "requestCode", p.RequestCode)
	return c.endpoint.url(values), nil
}

func (c *IndexClient) Decode(text string) (feed.Envelope[indexItem], error) {
	return feed.DecodeEnvelope[indexItem](c.spec.name, text)
}

// transform checks the result code and normalizes every usable item.
func (c *IndexClient) transform(env feed.Envelope[indexItem]) ([]weather.IndexInfo, error) {
	h := env.Header()
	switch {
	case h.NoData():
		if c.spec.noDataIsError {
			return nil, feed.ErrNoData
		}
		return nil, nil
	case !h.Normal():
		return nil, fmt.Errorf("result code %s", h)
	}

	out := make([]weather.IndexInfo, 0, len(env.Items()))
	for _, item := range env.Items() {
		if info, ok := c.toInfo(item); ok {
			out = append(out, info)
		}
	}
	return out, nil
}

// toInfo keeps the populated hour offsets of item. An item without a date or
// without any usable offset is absent.
func (c *IndexClient) toInfo(item indexItem) (weather.IndexInfo, bool) {
	date := strings.TrimSpace(item.Date)
	if date == "" {
		return weather.IndexInfo{}, false
	}

	values := make(map[int]float64)
	for _, h := range c.spec.offsets {
		if v, ok := field(item.Hours[h], c.spec.parse); ok {
			values[h] = v
		}
	}
	if len(values) == 0 {
		return weather.IndexInfo{}, false
	}

	return weather.IndexInfo{
		Date:   date,
		AreaNo: strings.TrimSpace(item.AreaNo),
		Code:   strings.TrimSpace(item.Code),
		Values: values,
	}, true
}

// IndexFeed is an hourly index source with fallback to earlier buckets.
type IndexFeed struct {
	client  *IndexClient
	exec    *feed.Executor
	cascade feed.Cascade
	logger  *slog.Logger
}

func newIndexFeed(spec indexSpec, endpoint Endpoint, fetcher feed.Fetcher, opts []Option) (*IndexFeed, error) {
	if err := endpoint.validate(spec.name); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s has no fetcher", ErrNotConfigured, spec.name)
	}
	var extra []feed.ExecutorOption
	if spec.noDataIsError {
		extra = append(extra, feed.WithNoDataToken())
	}
	exec, cascade, logger, err := newSettings(opts).build(spec.name, fetcher, spec.cascade, extra...)
	if err != nil {
		return nil, err
	}
	return &IndexFeed{
		client:  &IndexClient{spec: spec, endpoint: endpoint},
		exec:    exec,
		cascade: cascade,
		logger:  logger,
	}, nil
}

func (f *IndexFeed) Name() string {
	return f.client.Name()
}

func (f *IndexFeed) Bucket(t time.Time) string {
	return f.cascade.Bucket(t)
}

// Get returns the index announcements for areaNo at bucket, walking back to
// earlier buckets while nothing is published.
func (f *IndexFeed) Get(ctx context.Context, areaNo, bucket string) []weather.IndexInfo {
	return feed.RunCascade(ctx, f.cascade, bucket, f.logger,
		func(ctx context.Context, b string) feed.Result[[]weather.IndexInfo] {
			params := IndexParams{AreaNo: areaNo, Time: b, RequestCode: f.client.spec.requestCode}
			return feed.Execute(ctx, f.exec, f.client, params, f.client.transform)
		})
}
