package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"emotrack/internal/logging"
)

const rateLimiterExpiry = 5 * time.Minute

func (s *Server) registerRoutes() {
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(strconv.Itoa(s.opts.MaxBodyBytes)))

	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if s.opts.Proxy != nil {
		s.echo.Any("/api/analyze-emotion", s.opts.Proxy.Handle, proxyCORS, s.rateLimiter())
	}
	if s.opts.Controller != nil {
		api := s.echo.Group("/api/session")
		api.GET("", s.handleSnapshot)
		api.GET("/observations", s.handleObservations)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.POST("/reset", s.handleReset)
	}
	if s.opts.Archive != nil {
		s.echo.GET("/api/sessions", s.handleListSessions)
		s.echo.GET("/api/sessions/:id", s.handleGetSession)
	}
	if s.opts.Live != nil {
		s.echo.GET("/ws/live", echo.WrapHandler(s.opts.Live))
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	logger := s.logger
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			logger.Debug("http request", logging.Args(attrs...)...)
			return nil
		},
	})
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.opts.RatePerSecond),
			Burst:     s.opts.Burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method == http.MethodOptions
		},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
		},
	})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx := c.Request().Context()
	for _, hc := range s.opts.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": hc.Name,
				"error":        err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
