package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

// DefaultDustURL is the AirKorea particulate forecast endpoint.
const DefaultDustURL = "http://apis.data.go.kr/B552584/ArpltnInforInqireSvc/getMinuDustFrcstDspth"

// DustParams selects the forecasts announced on one day.
type DustParams struct {
	SearchDate string // yyyy-MM-dd
	// InformCode is PM10, PM25 or O3; empty returns every pollutant.
	InformCode string
	Page       Page
}

type dustItem struct {
	InformCode    feed.Text `json:"informCode"`
	InformData    feed.Text `json:"informData"`
	InformOverall feed.Text `json:"informOverall"`
	InformGrade   feed.Text `json:"informGrade"`
	DataTime      feed.Text `json:"dataTime"`
}

// DustClient implements feed.Client for the particulate forecast.
type DustClient struct {
	endpoint   Endpoint
	informCode string
}

func (c *DustClient) Name() string {
	return "dust"
}

func (c *DustClient) BuildURL(p DustParams) (string, error) {
	if _, err := time.Parse(feed.LayoutDaily, p.SearchDate); err != nil {
		return "", fmt.Errorf("invalid search date %q: %w", p.SearchDate, err)
	}

	values := c.endpoint.query(p.Page)
	values.Set("returnType", "json")
	values.Set("searchDate", p.SearchDate)
	setIf(values, "InformCode", p.InformCode)
	return c.endpoint.url(values), nil
}

func (c *DustClient) Decode(text string) (feed.Envelope[dustItem], error) {
	return feed.DecodeEnvelope[dustItem](c.Name(), text)
}

// transform normalizes the announcements, keeping only region's grade when
// region is set.
func (c *DustClient) transform(env feed.Envelope[dustItem], region string) ([]weather.DustInfo, error) {
	h := env.Header()
	switch {
	case h.NoData():
		return nil, nil
	case !h.Normal():
		return nil, fmt.Errorf("result code %s", h)
	}

	out := make([]weather.DustInfo, 0, len(env.Items()))
	for _, item := range env.Items() {
		if info, ok := toDustInfo(item, region); ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func toDustInfo(item dustItem, region string) (weather.DustInfo, bool) {
	date := strings.TrimSpace(item.InformData.String())
	if date == "" {
		return weather.DustInfo{}, false
	}

	grades := parseGrades(item.InformGrade.String())
	if region = strings.TrimSpace(region); region != "" {
		filtered := make(map[string]string)
		for r, g := range grades {
			if strings.EqualFold(r, region) {
				filtered[r] = g
			}
		}
		grades = filtered
	}
	if len(grades) == 0 {
		return weather.DustInfo{}, false
	}

	return weather.DustInfo{
		Date:       date,
		InformCode: strings.TrimSpace(item.InformCode.String()),
		IssuedAt:   strings.TrimSpace(item.DataTime.String()),
		Overall:    strings.TrimSpace(item.InformOverall.String()),
		Grades:     grades,
	}, true
}

// parseGrades reads "서울 : 보통,제주 : 좋음" into region -> grade. Entries
// without a region or a grade are dropped.
func parseGrades(s string) map[string]string {
	grades := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		region, grade, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		region = strings.TrimSpace(region)
		g, ok := field(grade, parseText)
		if region == "" || !ok {
			continue
		}
		grades[region] = g
	}
	return grades
}

// DustFeed is the particulate forecast source.
type DustFeed struct {
	client  *DustClient
	exec    *feed.Executor
	cascade feed.Cascade
	logger  *slog.Logger
}

// NewDustFeed builds the dust forecast feed. Buckets are days; each retry
// moves back one day. informCode may be empty for every pollutant.
func NewDustFeed(endpoint Endpoint, informCode string, fetcher feed.Fetcher, opts ...Option) (*DustFeed, error) {
	const name = "dust"
	if err := endpoint.validate(name); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s has no fetcher", ErrNotConfigured, name)
	}
	exec, cascade, logger, err := newSettings(opts).build(name, fetcher, feed.Daily())
	if err != nil {
		return nil, err
	}
	return &DustFeed{
		client:  &DustClient{endpoint: endpoint, informCode: strings.TrimSpace(informCode)},
		exec:    exec,
		cascade: cascade,
		logger:  logger,
	}, nil
}

func (f *DustFeed) Name() string {
	return f.client.Name()
}

func (f *DustFeed) Bucket(t time.Time) string {
	return f.cascade.Bucket(t)
}

// Get returns the forecasts announced on date, restricted to region when it
// is non-empty.
func (f *DustFeed) Get(ctx context.Context, region, date string) []weather.DustInfo {
	transform := func(env feed.Envelope[dustItem]) ([]weather.DustInfo, error) {
		return f.client.transform(env, region)
	}
	return feed.RunCascade(ctx, f.cascade, date, f.logger,
		func(ctx context.Context, b string) feed.Result[[]weather.DustInfo] {
			params := DustParams{SearchDate: b, InformCode: f.client.informCode}
			return feed.Execute(ctx, f.exec, f.client, params, transform)
		})
}
