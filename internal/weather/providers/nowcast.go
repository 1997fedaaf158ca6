package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

// DefaultNowcastURL is the KMA ultra-short-term observation endpoint.
const DefaultNowcastURL = "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtNcst"

// missingObservation is the threshold below which KMA marks a value missing
// (-998.9, -999).
const missingObservation = -900

// NowcastParams selects the observations for one grid point and hour.
type NowcastParams struct {
	NX, NY   int
	BaseDate string // yyyyMMdd
	BaseTime string // HHmm
	Page     Page
}

type nowcastItem struct {
	BaseDate  feed.Text  `json:"baseDate"`
	BaseTime  feed.Text  `json:"baseTime"`
	Category  feed.Text  `json:"category"`
	NX        feed.Count `json:"nx"`
	NY        feed.Count `json:"ny"`
	ObsrValue feed.Text  `json:"obsrValue"`
}

// NowcastClient implements feed.Client for the weather nowcast.
type NowcastClient struct {
	endpoint Endpoint
}

func (c *NowcastClient) Name() string {
	return "weather"
}

func (c *NowcastClient) BuildURL(p NowcastParams) (string, error) {
	if p.NX <= 0 || p.NY <= 0 {
		return "", fmt.Errorf("invalid grid point %d,%d", p.NX, p.NY)
	}
	if _, err := time.Parse("20060102", p.BaseDate); err != nil {
		return "", fmt.Errorf("invalid base date %q: %w", p.BaseDate, err)
	}
	if _, err := time.Parse("1504", p.BaseTime); err != nil {
		return "", fmt.Errorf("invalid base time %q: %w", p.BaseTime, err)
	}

	values := c.endpoint.query(p.Page)
	values.Set("base_date", p.BaseDate)
	values.Set("base_time", p.BaseTime)
	values.Set("nx", strconv.Itoa(p.NX))
	values.Set("ny", strconv.Itoa(p.NY))
	return c.endpoint.url(values), nil
}

func (c *NowcastClient) Decode(text string) (feed.Envelope[nowcastItem], error) {
	return feed.DecodeEnvelope[nowcastItem](c.Name(), text)
}

func (c *NowcastClient) transform(env feed.Envelope[nowcastItem]) ([]weather.WeatherInfo, error) {
	h := env.Header()
	switch {
	case h.NoData():
		return nil, nil
	case !h.Normal():
		return nil, fmt.Errorf("result code %s", h)
	}

	obs := make([]weather.Observation, 0, len(env.Items()))
	for _, item := range env.Items() {
		if o, ok := toObservation(item); ok {
			obs = append(obs, o)
		}
	}
	return weather.MergeObservations(obs), nil
}

func toObservation(item nowcastItem) (weather.Observation, bool) {
	date := strings.TrimSpace(item.BaseDate.String())
	tm := strings.TrimSpace(item.BaseTime.String())
	category := strings.TrimSpace(item.Category.String())
	if date == "" || len(tm) < 2 || category == "" {
		return weather.Observation{}, false
	}

	v, ok := field(item.ObsrValue.String(), func(s string) (float64, bool) {
		f, ok := parseFloat(s)
		return f, ok && f > missingObservation
	})
	if !ok {
		return weather.Observation{}, false
	}

	return weather.Observation{
		Bucket:   date + tm[:2],
		NX:       int(item.NX),
		NY:       int(item.NY),
		Category: category,
		Value:    v,
	}, true
}

// parseGrid reads an "nx,ny" location identifier.
func parseGrid(id string) (int, int, error) {
	parts := strings.Split(id, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("grid location %q must be nx,ny", id)
	}
	nx, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	ny, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err := errors.Join(errX, errY); err != nil {
		return 0, 0, fmt.Errorf("grid location %q: %w", id, err)
	}
	return nx, ny, nil
}

// NowcastFeed is the weather observation source.
type NowcastFeed struct {
	client  *NowcastClient
	exec    *feed.Executor
	cascade feed.Cascade
	logger  *slog.Logger
}

// NewNowcastFeed builds the weather nowcast feed. Observations for the
// current hour appear late, so the first attempt already starts two hours
// back and each retry moves one more hour.
func NewNowcastFeed(endpoint Endpoint, fetcher feed.Fetcher, opts ...Option) (*NowcastFeed, error) {
	const name = "weather"
	if err := endpoint.validate(name); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s has no fetcher", ErrNotConfigured, name)
	}

	def := feed.Hourly()
	def.InitialShift = 2 * time.Hour
	exec, cascade, logger, err := newSettings(opts).build(name, fetcher, def)
	if err != nil {
		return nil, err
	}
	return &NowcastFeed{
		client:  &NowcastClient{endpoint: endpoint},
		exec:    exec,
		cascade: cascade,
		logger:  logger,
	}, nil
}

func (f *NowcastFeed) Name() string {
	return f.client.Name()
}

func (f *NowcastFeed) Bucket(t time.Time) string {
	return f.cascade.Bucket(t)
}

// Get returns the merged observations for the "nx,ny" grid point.
func (f *NowcastFeed) Get(ctx context.Context, grid, bucket string) []weather.WeatherInfo {
	nx, ny, err := parseGrid(grid)
	if err != nil {
		f.logger.Warn("invalid location", "error", err)
		return []weather.WeatherInfo{}
	}

	return feed.RunCascade(ctx, f.cascade, bucket, f.logger,
		func(ctx context.Context, b string) feed.Result[[]weather.WeatherInfo] {
			t, err := time.Parse(feed.LayoutHourly, b)
			if err != nil {
				return feed.Failure[[]weather.WeatherInfo](f.Name()+": invalid bucket", err)
			}
			params := NowcastParams{NX: nx, NY: ny, BaseDate: t.Format("20060102"), BaseTime: t.Format("1504")}
			return feed.Execute(ctx, f.exec, f.client, params, f.client.transform)
		})
}
