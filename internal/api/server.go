package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/internal/route-search/scraper"
	"github.com/ytransit-data/pkg/route-search/models"
)

type RouteService interface {
	SearchRoutes(ctx context.Context, q models.SearchQuery) ([]models.RouteRecord, error)
	SuggestStations(ctx context.Context, value string) (models.StationSuggestions, error)
}

type HistoryReader interface {
	RecentSearches(ctx context.Context, limit int) ([]models.SearchRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the API. History and Database may be nil.
type Deps struct {
	Routes   RouteService
	History  HistoryReader
	Database Pinger
	Logger   logger.Logger
}

type handlers struct {
	Deps
}

func NewApp(deps Deps) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	webApp.Use(NewLogger(deps.Logger))

	h := &handlers{Deps: deps}

	webApp.Get("/healthz", h.healthz)
	webApp.Get("/routes", h.searchRoutes)
	webApp.Get("/stations/suggest", h.suggestStations)
	webApp.Get("/history", h.history)

	return webApp
}

// Serve listens on listen until ctx is done.
func Serve(ctx context.Context, webApp *fiber.App, listen string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- webApp.Listen(listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return webApp.ShutdownWithTimeout(10 * time.Second)
	}
}

func (h *handlers) healthz(c *fiber.Ctx) error {
	if h.Database != nil {
		if err := h.Database.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) searchRoutes(c *fiber.Ctx) error {
	q := models.SearchQuery{
		From: c.Query("from"),
		To:   c.Query("to"),
		Date: c.Query("date"),
		Time: c.Query("time"),
		Via:  c.Query("via"),
		Sort: c.Query("sort"),
	}

	routes, err := h.Routes.SearchRoutes(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(routes)
}

func (h *handlers) suggestStations(c *fiber.Ctx) error {
	suggestions, err := h.Routes.SuggestStations(c.UserContext(), c.Query("value"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(suggestions)
}

func (h *handlers) history(c *fiber.Ctx) error {
	if h.History == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "search history is disabled",
		})
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be between 1 and 500",
			})
		}
		limit = n
	}

	records, err := h.History.RecentSearches(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(records)
}

func writeError(c *fiber.Ctx, err error) error {
	var rateLimited *scraper.RateLimitError
	var reqErr *scraper.RequestError

	switch {
	case errors.Is(err, scraper.ErrInvalidQuery), errors.Is(err, scraper.ErrEmptyStation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &rateLimited):
		if rateLimited.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &reqErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":           err.Error(),
			"upstream_status": reqErr.StatusCode,
		})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
