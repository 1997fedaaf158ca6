package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

const (
	defaultInterval = time.Hour
	// jobTimeout bounds one location's collection, fallback included.
	jobTimeout = 5 * time.Minute
	// maxParallel caps how many locations are collected at once.
	maxParallel = 4
)

// Collector is the part of weather.Service the scheduler drives.
type Collector interface {
	FetchAndStore(ctx context.Context, loc weather.Location) error
}

// Scheduler periodically collects every feed for the configured locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector Collector
	locations []weather.Location
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(locations []weather.Location, interval time.Duration, collector Collector, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		collector: collector,
		locations: locations,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately; a run still in progress delays the next.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Warn("no locations configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce collects every location, a few at a time. Feeds within a
// location are still called one after another.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("running feed collection job", "locations", len(s.locations))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for _, loc := range s.locations {
		loc := loc
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			if err := s.collector.FetchAndStore(ctx, loc); err != nil {
				s.logger.Error("collection failed", "location", loc.Key(), "error", err)
			}
			return nil // don't fail the group
		})
	}
	_ = g.Wait()
	s.logger.Info("completed feed collection job", "duration", time.Since(start))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
