// ABOUTME: Server orchestrator that wires stores, validation and routes into HTTP and gRPC servers
// ABOUTME: Manages listeners (TCP or Tailscale), startup and graceful shutdown

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/airway-api/internal/auth"
	"github.com/2389/airway-api/internal/config"
	"github.com/2389/airway-api/internal/dedupe"
	"github.com/2389/airway-api/internal/store"
	"github.com/2389/airway-api/internal/validation"
	"github.com/2389/airway-api/internal/words"
)

// Service identity reported by /health, /openapi.json and the gRPC health service.
const (
	Name        = "airway"
	Title       = "Airway API"
	Description = "Project management and deployment tool"
	Version     = "0.1.0"
)

// Server serves the airway HTTP API and, optionally, a gRPC health endpoint.
type Server struct {
	config    *config.Config
	stores    *Stores
	validator *validation.Validator
	words     *words.Generator
	location  *time.Location
	verifier  *auth.JWTVerifier // nil when auth is disabled
	logger    *slog.Logger

	// now is the clock behind /datetime and the overview's "today"
	now func() time.Time

	todos      *resource[store.TodoFields]
	milestones *resource[store.MilestoneFields]

	openapiDoc []byte
	docsPage   []byte

	handler     http.Handler
	httpServer  *http.Server
	grpcServer  *grpc.Server // nil when server.grpc_addr is empty
	health      *health.Server
	tsnetServer *tsnet.Server
}

// New creates a Server over the given stores. The server takes ownership of
// stores and closes them on Shutdown.
func New(cfg *config.Config, stores *Stores, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	validator, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}

	s := &Server{
		config:    cfg,
		stores:    stores,
		validator: validator,
		words:     words.NewGenerator(),
		location:  loc,
		logger:    logger.With("component", "server"),
		now:       time.Now,
	}

	if cfg.Auth.JWTSecret != "" {
		s.verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		s.logger.Info("bearer auth enabled for write routes")
	} else {
		s.logger.Warn("auth disabled - no jwt_secret configured")
	}

	apiDoc, err := loadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	if s.openapiDoc, err = encodeOpenAPI(apiDoc); err != nil {
		return nil, err
	}
	if s.docsPage, err = renderDocs(apiDoc); err != nil {
		return nil, err
	}

	// The caches start cleanup goroutines, so they come after every fallible step
	s.todos = &resource[store.TodoFields]{
		srv:     s,
		kind:    "Todo",
		schema:  validation.SchemaTodo,
		store:   stores.Todos,
		decode:  decodeJSON[TodoRequest, store.TodoFields],
		present: func(rec *store.Todo) any { return todoResponse(rec) },
		idem:    dedupe.New[idempotentResponse](cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries),
		logger:  logger.With("component", "todos"),
	}
	s.milestones = &resource[store.MilestoneFields]{
		srv:     s,
		kind:    "Milestone",
		schema:  validation.SchemaMilestone,
		store:   stores.Milestones,
		decode:  decodeJSON[MilestoneRequest, store.MilestoneFields],
		present: func(rec *store.Milestone) any { return milestoneResponse(rec) },
		idem:    dedupe.New[idempotentResponse](cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries),
		logger:  logger.With("component", "milestones"),
	}

	s.handler = s.routes(logger)
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	if cfg.Server.GRPCAddr != "" {
		s.grpcServer, s.health = newGRPCServer(logger.With("component", "grpc"))
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupTCPListeners creates standard TCP listeners. grpcLn is nil when gRPC is disabled.
func (s *Server) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	s.logger.Info("starting server",
		"grpc_addr", s.config.Server.GRPCAddr,
		"http_addr", s.config.Server.HTTPAddr,
	)

	httpLn, err = net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if s.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", s.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return grpcLn, httpLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (s *Server) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListeners(ctx)
	}
	return s.setupTCPListeners()
}

// startServers starts the HTTP and gRPC servers in goroutines, returning the error channel.
func (s *Server) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			s.logger.Info("gRPC server listening", "addr", grpcLn.Addr().String())
			if err := s.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		s.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		s.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (s *Server) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		s.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the servers and blocks until ctx is canceled or a server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	grpcLn, httpLn, err := s.setupListeners(ctx)
	if err != nil {
		return errors.Join(err, s.release())
	}

	errCh := s.startServers(grpcLn, httpLn)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown with a fresh context bounded by server.shutdown_timeout.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
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
	return filepath.Join(homeDir, ".local", "share", "airway", "tailscale"), nil
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

// tailscaleGRPCPort keeps the port of server.grpc_addr on the tailnet.
func tailscaleGRPCPort(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil && port != "" {
		return port
	}
	return "50051"
}

// setupTailscaleListeners starts a tsnet node and listens on it.
func (s *Server) setupTailscaleListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
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
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	httpLn, err = s.createTailscaleHTTPListener(tsCfg)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, nil, err
	}

	if s.grpcServer != nil {
		grpcLn, err = s.tsnetServer.Listen("tcp", ":"+tailscaleGRPCPort(s.config.Server.GRPCAddr))
		if err != nil {
			_ = httpLn.Close()
			_ = s.tsnetServer.Close()
			return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
		}
	}
	return grpcLn, httpLn, nil
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

// createTailscaleHTTPListener picks :80, :443 with tailnet certs, or Funnel.
func (s *Server) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.createTailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (s *Server) createTailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (s *Server) shutdownGRPCServer(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the servers and releases the stores and caches.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	s.shutdownGRPCServer(ctx)

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.release())

	return errors.Join(errs...)
}

// release stops the idempotency caches and closes the stores. Safe to call
// more than once.
func (s *Server) release() error {
	s.logger.Debug("closing idempotency caches",
		"todo_keys", s.todos.idem.Len(),
		"milestone_keys", s.milestones.idem.Len(),
	)
	s.todos.idem.Close()
	s.milestones.idem.Close()
	return s.stores.Close()
}
