package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoSources is returned when no feed is configured at all.
	ErrNoSources = errors.New("no feeds configured")
	// ErrFeedDisabled is returned when a disabled feed is asked for directly.
	ErrFeedDisabled = errors.New("feed is not enabled")
	// ErrUnknownLocation is returned for a location name that is not configured.
	ErrUnknownLocation = errors.New("unknown location")
)

// Service collects feeds for locations and persists snapshots.
type Service struct {
	store     Store
	sources   Sources
	locations []Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(store Store, sources Sources, locations []Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		sources:   sources,
		locations: locations,
		now:       time.Now,
		logger:    logger,
	}
}

// Locations returns the configured locations.
func (s *Service) Locations() []Location {
	return s.locations
}

// Lookup finds a configured location by name, case-insensitively.
func (s *Service) Lookup(name string) (Location, error) {
	for _, loc := range s.locations {
		if strings.EqualFold(loc.Name, strings.TrimSpace(name)) {
			return loc, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
}

// Collect queries every enabled feed for loc at the current bucket. Feeds
// are called one after another; each one falls back on its own.
func (s *Service) Collect(ctx context.Context, loc Location) (Snapshot, error) {
	enabled := s.sources.Enabled()
	if len(enabled) == 0 {
		s.logger.Error("no feeds available to collect", "location", loc.Key())
		return Snapshot{}, ErrNoSources
	}

	now := s.now()
	local := now.In(KST)
	snap := Snapshot{
		ID:          uuid.NewString(),
		Location:    loc,
		CollectedAt: now.UTC(),
	}

	s.logger.Debug("collecting feeds", "location", loc.Key(), "feeds", len(enabled))

	if src := s.sources.Weather; src != nil {
		snap.Weather = src.Get(ctx, loc.ID(FeedWeather), src.Bucket(local))
	}
	if src := s.sources.Dust; src != nil {
		snap.Dust = src.Get(ctx, loc.ID(FeedDust), src.Bucket(local))
	}
	if src := s.sources.UV; src != nil {
		snap.UV = src.Get(ctx, loc.ID(FeedUV), src.Bucket(local))
	}
	if src := s.sources.SensibleTemp; src != nil {
		snap.SensibleTemp = src.Get(ctx, loc.ID(FeedSensibleTemp), src.Bucket(local))
	}
	if src := s.sources.AirStagnation; src != nil {
		snap.AirStagnation = src.Get(ctx, loc.ID(FeedAirStagnation), src.Bucket(local))
	}

	return snap, nil
}

// FetchAndStore collects loc and stores the snapshot. A run where every feed
// came back empty is not stored, so the last good snapshot stays current.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) error {
	snap, err := s.Collect(ctx, loc)
	if err != nil {
		return err
	}
	if snap.Empty() {
		s.logger.Warn("no feed returned data; keeping last good snapshot", "location", loc.Key())
		return nil
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot for %s: %w", loc.Key(), err)
	}
	return nil
}

// Live calls one feed directly, bypassing the store. An empty bucket means
// the current one.
func (s *Service) Live(ctx context.Context, f Feed, loc Location, bucket string) (any, error) {
	now := s.now().In(KST)
	id := loc.ID(f)
	switch f {
	case FeedWeather:
		return live(ctx, s.sources.Weather, id, bucket, now)
	case FeedDust:
		return live(ctx, s.sources.Dust, id, bucket, now)
	case FeedUV:
		return live(ctx, s.sources.UV, id, bucket, now)
	case FeedSensibleTemp:
		return live(ctx, s.sources.SensibleTemp, id, bucket, now)
	case FeedAirStagnation:
		return live(ctx, s.sources.AirStagnation, id, bucket, now)
	default:
		return nil, fmt.Errorf("unknown feed %q", f)
	}
}

func live[T any](ctx context.Context, src Source[T], id, bucket string, now time.Time) (any, error) {
	if src == nil {
		return nil, ErrFeedDisabled
	}
	if bucket == "" {
		bucket = src.Bucket(now)
	}
	return src.Get(ctx, id, bucket), nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(ctx context.Context, loc Location) (Snapshot, error) {
	return s.store.GetLatest(ctx, loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(ctx context.Context, loc Location, from, to time.Time) ([]Snapshot, error) {
	return s.store.GetRange(ctx, loc, from, to)
}
