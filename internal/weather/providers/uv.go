package providers

import (
	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

// DefaultUVURL is the KMA living-weather UV index endpoint.
const DefaultUVURL = "http://apis.data.go.kr/1360000/LivingWthrIdxServiceV4/getUVIdxV4"

// NewUVFeed builds the UV index feed: h0..h75 every 3 hours, integer index
// values, one hour back per fallback step.
func NewUVFeed(endpoint Endpoint, fetcher feed.Fetcher, opts ...Option) (*IndexFeed, error) {
	return newIndexFeed(indexSpec{
		name:    "uv",
		offsets: offsets(0, 75, 3),
		parse:   parseInt,
		cascade: feed.Hourly(),
	}, endpoint, fetcher, opts)
}
