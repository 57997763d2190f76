// Package dashboard serves a read-only HTTP view over stored digests.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
)

// statsSampleLimit bounds how many records feed /api/stats.
const statsSampleLimit = 500

// Keyer normalizes a raw URL into a store key.
type Keyer interface {
	Key(raw string) (string, error)
}

// Server exposes digests, stats, health and metrics over HTTP.
type Server struct {
	echo   *echo.Echo
	reader ports.DigestReader
	keyer  Keyer
	logger *slog.Logger
}

// New builds the router. metrics may be nil to disable /metrics.
func New(reader ports.DigestReader, keyer Keyer, metrics http.Handler, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, reader: reader, keyer: keyer, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	api := e.Group("/api")
	api.GET("/digests", s.listDigests)
	api.GET("/digests/lookup", s.lookupDigest)
	api.GET("/stats", s.stats)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	return s
}

// Handler returns the router for tests and custom servers.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("dashboard listening", "addr", addr)
		}
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDigests(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	records, err := s.reader.ListRecent(c.Request().Context(), filter)
	if err != nil {
		return s.internal("list digests", err)
	}

	out := make([]domain.DigestRecord, 0, len(records))
	for _, rec := range records {
		rec.ExtractedText = ""
		out = append(out, rec)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) lookupDigest(c echo.Context) error {
	raw := c.QueryParam("url")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	key, err := s.keyer.Key(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "url is not a valid http(s) link")
	}

	record, err := s.reader.FindByURL(c.Request().Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no digest for "+key)
	}
	if err != nil {
		return s.internal("lookup digest", err)
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) stats(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	filter.Limit = statsSampleLimit
	filter.Offset = 0

	records, err := s.reader.ListRecent(c.Request().Context(), filter)
	if err != nil {
		return s.internal("list digests for stats", err)
	}
	return c.JSON(http.StatusOK, domain.ComputeStats(records))
}

func (s *Server) internal(op string, err error) error {
	if s.logger != nil {
		s.logger.Error(op, "error", err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "storage unavailable")
}

func (s *Server) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func parseFilter(c echo.Context) (domain.Filter, error) {
	var filter domain.Filter

	if v := c.QueryParam("content_type"); v != "" {
		ct, ok := domain.ParseContentType(v)
		if !ok {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "unknown content_type "+strconv.Quote(v))
		}
		filter.ContentType = ct
	}
	if v := c.QueryParam("status"); v != "" {
		st, ok := domain.ParseStatus(v)
		if !ok {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "unknown status "+strconv.Quote(v))
		}
		filter.Status = st
	}

	var err error
	if filter.Since, err = parseTime(c, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTime(c, "until"); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseInt(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTime(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC3339 timestamp")
	}
	return t, nil
}

func parseInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
