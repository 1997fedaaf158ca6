package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot is available for a given location.
	ErrNotFound = errors.New("no feed data for location")
)

// SnapshotHistory holds a time-ordered list of snapshots for a location.
type SnapshotHistory struct {
	Snapshots []weather.Snapshot
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per location
	maxAge     time.Duration // optional max age for snapshots

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveSnapshot appends a snapshot for its location and enforces retention.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, snapshot weather.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := snapshot.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SnapshotHistory{}
		s.data[key] = history
	}

	// Keep the history ordered even if runs finish out of order.
	i := len(history.Snapshots)
	for i > 0 && history.Snapshots[i-1].CollectedAt.After(snapshot.CollectedAt) {
		i--
	}
	history.Snapshots = append(history.Snapshots, weather.Snapshot{})
	copy(history.Snapshots[i+1:], history.Snapshots[i:])
	history.Snapshots[i] = snapshot

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots); i++ {
			if !history.Snapshots[i].CollectedAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
	return nil
}

// GetLatest returns the most recent snapshot for a location.
func (s *MemoryStore) GetLatest(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return weather.Snapshot{}, err
	}
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return weather.Snapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a location between from and to (inclusive).
func (s *MemoryStore) GetRange(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Snapshot
	for _, snap := range history.Snapshots {
		if !snap.CollectedAt.Before(from) && !snap.CollectedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
