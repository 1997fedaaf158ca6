package providers

import (
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

// DefaultAirStagnationURL is the KMA air stagnation (diffusion) index endpoint.
const DefaultAirStagnationURL = "http://apis.data.go.kr/1360000/LivingWthrIdxServiceV4/getAirDiffusionIdxV4"

const airStagnationRequestCode = "A41"

// NewAirStagnationFeed builds the air stagnation feed: h3..h78 every 3 hours,
// grades 25/50/75/100. The upstream answers NO_DATA until the hour is
// published, so each retry moves back exactly one hour, 3 attempts in all.
func NewAirStagnationFeed(endpoint Endpoint, fetcher feed.Fetcher, opts ...Option) (*IndexFeed, error) {
	return newIndexFeed(indexSpec{
		name:        "air-stagnation",
		requestCode: airStagnationRequestCode,
		offsets:     offsets(3, 78, 3),
		parse:       parseInt,
		cascade: feed.Cascade{
			Layout:      feed.LayoutHourly,
			Step:        time.Hour,
			MaxAttempts: 3,
		},
		noDataIsError: true,
	}, endpoint, fetcher, opts)
}
