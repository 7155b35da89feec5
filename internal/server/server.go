package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"emotrack/internal/logging"
	"emotrack/internal/series"
	"emotrack/internal/session"
	"emotrack/internal/sessionstore"
)

const (
	defaultRatePerSecond = 5
	defaultBurst         = 10
	defaultMaxBodyBytes  = 8 << 20
	shutdownTimeout      = 10 * time.Second
)

// Controller is the session surface the API drives.
type Controller interface {
	Start(ctx context.Context, opts session.StartOptions) (session.Snapshot, error)
	Stop(ctx context.Context) (*session.Completed, error)
	Reset() error
	Snapshot() session.Snapshot
	Observations() []series.Observation
}

// Archive is the read side of the session store.
type Archive interface {
	List(ctx context.Context, limit int) ([]sessionstore.Session, error)
	Get(ctx context.Context, id string) (*sessionstore.Session, error)
	Resolve(ctx context.Context, prefix string) (string, error)
	Observations(ctx context.Context, id string) ([]series.Observation, error)
}

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires a Server. Nil components disable their routes.
type Options struct {
	Bind          string
	Controller    Controller
	Archive       Archive
	Proxy         *Proxy
	Live          http.Handler
	HealthChecks  []HealthCheck
	RatePerSecond float64
	Burst         int
	MaxBodyBytes  int
	Clock         clockwork.Clock
	Logger        *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	echo      *echo.Echo
	opts      Options
	logger    *slog.Logger
	clock     clockwork.Clock
	startTime time.Time
}

// New builds a server and registers its routes.
func New(opts Options) *Server {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "server"),
		clock:     opts.Clock,
		startTime: opts.Clock.Now(),
	}
	srv.registerRoutes()
	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Bind, err)
	}
	s.echo.Listener = listener
	s.logger.Info("http server listening",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("addr", listener.Addr().String()),
		logging.Bool("proxy_enabled", s.opts.Proxy != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
