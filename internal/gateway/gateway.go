// ABOUTME: Gateway orchestrator that owns the store, domain services, and HTTP server
// ABOUTME: Manages listeners (TCP or Tailscale), health endpoints, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsnet"

	"github.com/2389/ubwiyunge/internal/auth"
	"github.com/2389/ubwiyunge/internal/config"
	"github.com/2389/ubwiyunge/internal/conversation"
	"github.com/2389/ubwiyunge/internal/dedupe"
	"github.com/2389/ubwiyunge/internal/reports"
	"github.com/2389/ubwiyunge/internal/store"
)

// Gateway serves the ubwiyunge JSON API.
type Gateway struct {
	config       *config.Config
	store        store.Store
	directory    *auth.Directory
	conversation *conversation.Service
	reports      *reports.Registry
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger

	// dedupe replays retried message sends carrying an Idempotency-Key
	dedupe *dedupe.Cache

	// limiter bounds /api/ requests per client IP; nil disables limiting
	limiter *limiterPool

	metrics *httpMetrics
	started time.Time
}

// OpenStore opens the store described by cfg.Database. UBWIYUNGE_DB_PATH
// overrides the configured path.
func OpenStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("UBWIYUNGE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.Open(store.Options{
		Driver: cfg.Database.Driver,
		Path:   dbPath,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway, opening the configured store.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, s, logger), nil
}

// NewWithStore creates a Gateway over an already opened store. The gateway
// takes ownership and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s store.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:       cfg,
		store:        s,
		directory:    auth.NewDirectory(s, logger),
		conversation: conversation.New(s, logger),
		reports:      reports.NewRegistry(logger, reports.Samples()...),
		logger:       logger.With("component", "gateway"),
		dedupe:       dedupe.New(cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries),
		metrics:      newHTTPMetrics(),
		started:      time.Now(),
	}
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window > 0 {
		gw.limiter = newLimiterPool(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	mux := http.NewServeMux()

	// Health endpoints - no user required
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	gw.registerAPIRoutes(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(gw.metrics.registry, promhttp.HandlerOpts{}))
		gw.logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.instrument(gw.rateLimit(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw
}

// Handler returns the fully wrapped HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// setupTCPListener creates a standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates a listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The Run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	g.dedupe.Close()
	if g.limiter != nil {
		g.limiter.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
