package providers

import (
	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

// DefaultSensibleTempURL is the KMA sensible temperature index endpoint.
const DefaultSensibleTempURL = "http://apis.data.go.kr/1360000/LivingWthrIdxServiceV4/getSenTaIdxV4"

// DefaultSensibleTempCode selects the index for the elderly.
const DefaultSensibleTempCode = "A41"

// NewSensibleTempFeed builds the sensible temperature feed: hourly h1..h78,
// decimal degrees. requestCode may be empty to use DefaultSensibleTempCode.
func NewSensibleTempFeed(endpoint Endpoint, requestCode string, fetcher feed.Fetcher, opts ...Option) (*IndexFeed, error) {
	if requestCode == "" {
		requestCode = DefaultSensibleTempCode
	}
	return newIndexFeed(indexSpec{
		name:        "sensible-temp",
		requestCode: requestCode,
		offsets:     offsets(1, 78, 1),
		parse:       parseFloat,
		cascade:     feed.Hourly(),
	}, endpoint, fetcher, opts)
}
