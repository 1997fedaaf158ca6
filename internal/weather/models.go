package weather

import (
	"fmt"
	"strings"
	"time"
)

// KST is the zone every upstream bucket is expressed in.
var KST = time.FixedZone("KST", 9*60*60)

// Feed identifies one upstream data source.
type Feed string

const (
	FeedWeather       Feed = "weather"
	FeedDust          Feed = "dust"
	FeedUV            Feed = "uv"
	FeedSensibleTemp  Feed = "sensible-temp"
	FeedAirStagnation Feed = "air-stagnation"
)

// AllFeeds lists the feeds in collection order.
func AllFeeds() []Feed {
	return []Feed{FeedWeather, FeedDust, FeedUV, FeedSensibleTemp, FeedAirStagnation}
}

// ParseFeed maps a feed name to a Feed.
func ParseFeed(s string) (Feed, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, f := range AllFeeds() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feed %q", s)
}

// Location represents a logical place for which we collect feeds. Each feed
// addresses it differently: the nowcast by KMA grid, the living-weather
// indices by administrative area code, the dust forecast by region label.
type Location struct {
	Name       string `json:"name"`
	AreaNo     string `json:"areaNo"`
	NX         int    `json:"nx"`
	NY         int    `json:"ny"`
	DustRegion string `json:"dustRegion,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.Name
}

// ID returns the location identifier the given feed expects.
func (l Location) ID(f Feed) string {
	switch f {
	case FeedWeather:
		return fmt.Sprintf("%d,%d", l.NX, l.NY)
	case FeedDust:
		return l.DustRegion
	default:
		return l.AreaNo
	}
}

// Observation is one nowcast category value for a bucket.
type Observation struct {
	Bucket   string
	NX       int
	NY       int
	Category string
	Value    float64
}

// WeatherInfo holds nowcast observations for one hourly bucket, keyed by
// category code (T1H, RN1, REH, WSD, ...).
type WeatherInfo struct {
	Bucket string             `json:"bucket"`
	NX     int                `json:"nx"`
	NY     int                `json:"ny"`
	Values map[string]float64 `json:"values"`
}

// DustInfo is one particulate forecast announcement.
type DustInfo struct {
	Date       string            `json:"date"`
	InformCode string            `json:"informCode"`
	IssuedAt   string            `json:"issuedAt,omitempty"`
	Overall    string            `json:"overall,omitempty"`
	Grades     map[string]string `json:"grades"`
}

// IndexInfo is an hourly living-weather index (UV, sensible temperature, air
// stagnation) announced at Date, keyed by hour offset from the announcement.
type IndexInfo struct {
	Date   string          `json:"date"`
	AreaNo string          `json:"areaNo"`
	Code   string          `json:"code,omitempty"`
	Values map[int]float64 `json:"values"`
}

// Snapshot is everything collected for a location in one run.
type Snapshot struct {
	ID            string        `json:"id"`
	Location      Location      `json:"location"`
	CollectedAt   time.Time     `json:"collectedAt"` // always UTC
	Weather       []WeatherInfo `json:"weather"`
	Dust          []DustInfo    `json:"dust"`
	UV            []IndexInfo   `json:"uv"`
	SensibleTemp  []IndexInfo   `json:"sensibleTemp"`
	AirStagnation []IndexInfo   `json:"airStagnation"`
}

// Empty reports whether no feed contributed anything.
func (s Snapshot) Empty() bool {
	return len(s.Weather) == 0 && len(s.Dust) == 0 && len(s.UV) == 0 &&
		len(s.SensibleTemp) == 0 && len(s.AirStagnation) == 0
}
