package weather

import (
	"context"
	"time"
)

// Source is one feed as callers see it. Get never fails: it returns an empty
// slice when nothing usable could be obtained, even after falling back to
// earlier buckets.
type Source[T any] interface {
	Name() string
	// Bucket formats t as this feed's time bucket.
	Bucket(t time.Time) string
	Get(ctx context.Context, locationID, bucket string) []T
}

// Sources bundles the configured feeds. Nil entries are disabled feeds.
type Sources struct {
	Weather       Source[WeatherInfo]
	Dust          Source[DustInfo]
	UV            Source[IndexInfo]
	SensibleTemp  Source[IndexInfo]
	AirStagnation Source[IndexInfo]
}

// Enabled lists the feeds that have a source.
func (s Sources) Enabled() []Feed {
	var out []Feed
	if s.Weather != nil {
		out = append(out, FeedWeather)
	}
	if s.Dust != nil {
		out = append(out, FeedDust)
	}
	if s.UV != nil {
		out = append(out, FeedUV)
	}
	if s.SensibleTemp != nil {
		out = append(out, FeedSensibleTemp)
	}
	if s.AirStagnation != nil {
		out = append(out, FeedAirStagnation)
	}
	return out
}

// Store is the contract the in-memory and SQL stores satisfy.
type Store interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, loc Location) (Snapshot, error)
	GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Snapshot, error)
}
