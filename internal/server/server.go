// ABOUTME: Server wires folio's stores, cms service and HTTP transport together
// ABOUTME: Owns the listeners, the session sweeper and graceful shutdown

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/folio/internal/auth"
	"github.com/2389/folio/internal/cms"
	"github.com/2389/folio/internal/config"
	"github.com/2389/folio/internal/credentials"
	"github.com/2389/folio/internal/docstore"
	"github.com/2389/folio/internal/markdown"
	"github.com/2389/folio/internal/metrics"
	"github.com/2389/folio/internal/session"
	"github.com/2389/folio/internal/store"
	"github.com/2389/folio/internal/web"
)

// MemoryDatabase keeps sessions in process memory instead of SQLite.
const MemoryDatabase = ":memory:"

// Server is a running folio instance.
type Server struct {
	config *config.Config
	logger *slog.Logger

	docs     *docstore.Store
	creds    *credentials.Store
	sessions session.Store
	limiter  *web.RateLimiter
	renders  *markdown.CachingRenderer
	registry *prometheus.Registry

	httpServer  *http.Server
	tsnetServer *tsnet.Server

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	closeOnce   sync.Once
}

// initSessionStore opens the session store named by database.path.
func initSessionStore(cfg *config.Config) (session.Store, error) {
	if cfg.Database.Path == MemoryDatabase {
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	return s, nil
}

// New builds a Server from configuration. Nothing listens until Run.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	policy, err := docstore.ParsePolicy(cfg.Documents.ExtensionPolicy)
	if err != nil {
		return nil, err
	}

	docs, err := docstore.New(cfg.Storage.DocumentsDir, policy)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w", err)
	}

	creds := credentials.New(cfg.Storage.CredentialsPath,
		credentials.WithCost(cfg.Auth.BcryptCost),
		credentials.WithLogger(logger.With("component", "credentials")),
	)

	sessions, err := initSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics.RegisterRuntime(registry)
	collector := metrics.NewCollector(registry)

	renders := markdown.NewCache(
		markdown.New(markdown.WithSanitize(cfg.Documents.Sanitize())),
		cfg.Documents.RenderCacheTTL,
		cfg.Documents.RenderCacheEntries,
	)
	svc := cms.New(docs, creds, auth.GateForMode(cfg.Auth.Mode), renders,
		cms.WithRecorder(collector),
		cms.WithLogger(logger.With("component", "cms")),
	)

	// The tailnet listener only speaks TLS
	manager := session.NewManager(sessions, auth.NewJWTSigner([]byte(cfg.Auth.SessionSecret)), cfg.Auth.SessionTTL,
		session.WithSecureCookies(cfg.Tailscale.Enabled),
	)

	s := &Server{
		config:   cfg,
		logger:   logger.With("component", "server"),
		docs:     docs,
		creds:    creds,
		sessions: sessions,
		renders:  renders,
		registry: registry,
	}

	webOpts := []web.Option{
		web.WithRecorder(collector),
		web.WithHealth(http.HandlerFunc(s.handleHealth), http.HandlerFunc(s.handleReady)),
		web.WithLogger(logger.With("component", "web")),
	}
	if cfg.RateLimit.LoginPerMinute > 0 {
		s.limiter = web.NewRateLimiter(web.RateLimiterConfig{
			PerMinute: cfg.RateLimit.LoginPerMinute,
			Burst:     cfg.RateLimit.Burst,
		})
		webOpts = append(webOpts, web.WithRateLimiter(s.limiter))
	}
	if cfg.Metrics.Enabled {
		webOpts = append(webOpts, web.WithMetrics(cfg.Metrics.Path, metrics.Handler(registry)))
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           web.New(svc, manager, webOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("folio configured",
		"documents_dir", cfg.Storage.DocumentsDir,
		"credentials_path", cfg.Storage.CredentialsPath,
		"auth_mode", cfg.Auth.Mode,
		"extension_policy", string(policy),
	)

	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts serving and blocks until ctx is canceled or the listener fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.startSweeper()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startSweeper runs the expired-session sweep until shutdown.
func (s *Server) startSweeper() {
	if s.config.Auth.SessionSweepInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	go func() {
		defer close(s.sweepDone)
		store.Sweep(ctx, s.sessions, s.config.Auth.SessionSweepInterval)
	}()
}

// setupListener creates the TCP or Tailscale listener.
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", s.config.Server.HTTPAddr,
			)
		}
		return s.setupTailscaleListener(ctx)
	}

	s.logger.Info("starting folio", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "folio", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :443 with
// Tailscale-provisioned certificates.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops serving and releases every resource. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	s.closeOnce.Do(func() {
		s.logger.Info("shutting down folio")

		errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

		if s.sweepCancel != nil {
			s.sweepCancel()
			<-s.sweepDone
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		s.renders.Close()
		if s.tsnetServer != nil {
			errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
		}
		if c, ok := s.sessions.(io.Closer); ok {
			errs = appendCloseError(errs, "store close", c.Close())
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleReady returns 200 OK when the documents directory and session store
// are reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.docs.Dir()); err != nil {
		s.logger.Warn("documents directory unavailable", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("documents directory unavailable"))
		return
	}
	if p, ok := s.sessions.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("session store unavailable", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("session store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
