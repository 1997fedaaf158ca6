package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-feed-aggregation/internal/store"
	"github.com/i474232898/weather-feed-aggregation/internal/weather"
)

var validate = validator.New()

// liveTimeout bounds a direct feed call: one fully retried fetch plus the
// fallback to earlier buckets.
const liveTimeout = 150 * time.Second

// FeedService is what the handlers need from weather.Service.
type FeedService interface {
	Locations() []weather.Location
	Lookup(name string) (weather.Location, error)
	GetLatest(ctx context.Context, loc weather.Location) (weather.Snapshot, error)
	GetRange(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.Snapshot, error)
	Live(ctx context.Context, f weather.Feed, loc weather.Location, bucket string) (any, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service FeedService) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": service.Locations()})
	})

	v1.Get("/feeds/latest", func(c *fiber.Ctx) error {
		loc, err := resolveLocation(c, service)
		if err != nil {
			return err
		}

		snapshot, err := service.GetLatest(c.UserContext(), loc)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no feed data for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch feed data")
		}

		return c.JSON(snapshot)
	})

	v1.Get("/feeds/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := lookup(service, req.Location.Name)
		if err != nil {
			return err
		}
		snapshots, err := service.GetRange(c.UserContext(), loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no feed history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch feed history")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/feeds/:feed", func(c *fiber.Ctx) error {
		q := liveQuery{
			Feed:     c.Params("feed"),
			Location: locationQuery{Name: c.Query("location")},
			Bucket:   c.Query("bucket"),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		f, err := weather.ParseFeed(q.Feed)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		loc, err := lookup(service, q.Location.Name)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), liveTimeout)
		defer cancel()

		items, err := service.Live(ctx, f, loc, q.Bucket)
		if err != nil {
			if errors.Is(err, weather.ErrFeedDisabled) {
				return fiber.NewError(fiber.StatusNotFound, "feed is not enabled")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch feed")
		}

		return c.JSON(fiber.Map{
			"feed":     f,
			"location": loc,
			"bucket":   q.Bucket,
			"items":    items,
		})
	})
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Name string `validate:"required"`
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Name = c.Query("location")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// resolveLocation maps the location query parameter to a configured location.
func resolveLocation(c *fiber.Ctx, service FeedService) (weather.Location, error) {
	q, err := parseLocationQuery(c)
	if err != nil {
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return lookup(service, q.Name)
}

func lookup(service FeedService, name string) (weather.Location, error) {
	loc, err := service.Lookup(name)
	if err != nil {
		if errors.Is(err, weather.ErrUnknownLocation) {
			return weather.Location{}, fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return weather.Location{}, fiber.NewError(fiber.StatusInternalServerError, "failed to resolve location")
	}
	return loc, nil
}

// liveQuery holds parameters for a direct feed call. Buckets are
// yyyyMMddHH, or yyyy-MM-dd for the dust feed.
type liveQuery struct {
	Feed     string `validate:"required"`
	Location locationQuery
	Bucket   string `validate:"omitempty,len=10,numeric|datetime=2006-01-02"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
