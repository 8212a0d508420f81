// ABOUTME: Gateway orchestrator that wires storage, tools, the model and the HTTP server
// ABOUTME: Manages the chat service, audit recorder, and health endpoints lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/missionlink-gateway/internal/agent"
	"github.com/2389/missionlink-gateway/internal/audit"
	"github.com/2389/missionlink-gateway/internal/auth"
	"github.com/2389/missionlink-gateway/internal/builtins"
	"github.com/2389/missionlink-gateway/internal/config"
	"github.com/2389/missionlink-gateway/internal/conversation"
	"github.com/2389/missionlink-gateway/internal/directory"
	"github.com/2389/missionlink-gateway/internal/llm"
	"github.com/2389/missionlink-gateway/internal/packs"
	"github.com/2389/missionlink-gateway/internal/prompt"
	"github.com/2389/missionlink-gateway/internal/store"
)

// maxChatBody bounds the request body of POST /api/ai/chat.
const maxChatBody = 1 << 20

// Gateway orchestrates the missionlink-gateway server components.
type Gateway struct {
	config       *config.Config
	store        store.Store
	directory    directory.Directory
	conversation *conversation.Service
	recorder     *audit.Recorder
	httpServer   *http.Server
	logger       *slog.Logger

	// packRegistry holds the frozen retrieval tool set
	packRegistry *packs.Registry

	// authenticator issues session tokens for POST /api/auth/login
	authenticator *auth.Authenticator

	// closers release backends in order during Shutdown
	closers []namedCloser
}

type namedCloser struct {
	label string
	close func() error
}

// deps are the backends New builds from configuration. Tests supply their own.
type deps struct {
	store     store.Store
	directory directory.Directory
	model     llm.Client
	closers   []namedCloser
	now       func() time.Time
}

// initStore opens the account and chat log database.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return s, nil
}

// OpenDirectory opens the configured directory backend. The caller owns
// the returned close function.
func OpenDirectory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (directory.Directory, func() error, error) {
	switch cfg.Directory.Driver {
	case config.DirectoryPostgres:
		pg, err := directory.OpenPostgres(ctx, cfg.Directory.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		lite, err := directory.OpenSQLite(cfg.Directory.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return lite, lite.Close, nil
	}
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	dir, closeDir, err := OpenDirectory(context.Background(), cfg, logger.With("component", "directory"))
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	cached := directory.NewCached(dir, cfg.Directory.CacheTTL)

	var model llm.Client = llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
	}, logger)
	model = llm.NewRetryClient(model, cfg.Model.RetryBackoff, logger)

	gw, err := build(cfg, deps{
		store:     s,
		directory: cached,
		model:     model,
		closers: []namedCloser{
			{"directory cache", func() error { cached.Close(); return nil }},
			{"directory close", closeDir},
			{"store close", s.Close},
		},
	}, logger)
	if err != nil {
		cached.Close()
		_ = closeDir()
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// build assembles the gateway from ready backends.
func build(cfg *config.Config, d deps, logger *slog.Logger) (*Gateway, error) {
	tpl := prompt.DefaultTemplate
	if cfg.Prompt.TemplateFile != "" {
		loaded, err := prompt.LoadTemplate(cfg.Prompt.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("loading prompt template: %w", err)
		}
		tpl = loaded
	}
	loc := cfg.Prompt.Location
	if loc == nil {
		loc = time.UTC
	}

	packRegistry := packs.NewRegistry(logger.With("component", "pack-registry"))
	if err := packRegistry.RegisterBuiltinPack(builtins.SchoolPack(d.directory, d.now, loc, logger)); err != nil {
		return nil, fmt.Errorf("registering school pack: %w", err)
	}
	packRegistry.Freeze()

	packRouter := packs.NewRouter(packs.RouterConfig{
		Registry: packRegistry,
		Logger:   logger.With("component", "pack-router"),
		Timeout:  cfg.Tools.Timeout,
	})

	loop := agent.NewLoop(agent.Config{
		Client:      d.model,
		Tools:       packRouter,
		Model:       cfg.Model.Model,
		MaxTokens:   cfg.Model.MaxTokens,
		StepCap:     cfg.Model.StepCap,
		MaxParallel: cfg.Tools.MaxParallel,
		Logger:      logger,
	})

	recorder := audit.NewRecorder(audit.Config{
		Writer:       d.store,
		QueueSize:    cfg.Audit.QueueSize,
		WriteTimeout: cfg.Audit.WriteTimeout,
		Logger:       logger,
	})

	convService := conversation.New(conversation.Config{
		Runner:       loop,
		Auditor:      recorder,
		Template:     tpl,
		Location:     loc,
		DailyContent: cfg.Prompt.DailyContent,
		Now:          d.now,
		Logger:       logger,
	})

	jwtVerifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	gw := &Gateway{
		config:        cfg,
		store:         d.store,
		directory:     d.directory,
		conversation:  convService,
		recorder:      recorder,
		logger:        logger.With("component", "gateway"),
		packRegistry:  packRegistry,
		authenticator: auth.NewAuthenticator(d.store, jwtVerifier, cfg.Auth.TokenTTL),
		closers:       d.closers,
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	mux.HandleFunc("/api/auth/login", gw.handleLogin)

	gate := auth.NewGate(jwtVerifier, d.store, logger)
	authenticated := auth.HTTPAuthMiddleware(auth.MiddlewareConfig{
		Gate:       gate,
		CookieName: cfg.Auth.SessionCookie,
		Logger:     logger,
	})
	admitted := auth.HTTPAuthMiddleware(auth.MiddlewareConfig{
		Gate:       gate,
		Policy:     &auth.Policy{WarnInactive: cfg.Auth.InactivePolicy == config.InactivePolicyWarn},
		CookieName: cfg.Auth.SessionCookie,
		Logger:     logger,
	})

	mux.Handle("/api/ai/chat", admitted(http.HandlerFunc(gw.handleChat)))
	mux.Handle("/api/logs", authenticated(http.HandlerFunc(gw.handleListLogs)))
	mux.Handle("/api/tools", authenticated(http.HandlerFunc(gw.handleListTools)))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway configured",
		"tools", packRegistry.ToolNames(),
		"model", cfg.Model.Model,
		"step_cap", cfg.Model.StepCap,
		"inactive_policy", cfg.Auth.InactivePolicy,
	)

	return gw, nil
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
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
// Uses context.Background() since the original context is already canceled.
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

// Shutdown stops accepting requests, drains the audit queue, then closes
// the backends. In-flight chats finish before the recorder is closed.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "audit drain", g.recorder.Close(ctx))

	for _, c := range g.closers {
		errs = appendCloseError(errs, c.label, c.close())
	}

	written, failed, dropped := g.recorder.Stats()
	g.logger.Info("audit recorder closed", "written", written, "failed", failed, "dropped", dropped)

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

// handleReady returns 200 OK once the tool set is registered and the directory answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	tools := g.packRegistry.ToolNames()
	if len(tools) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no tools registered"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := g.directory.CountStudents(ctx, directory.StudentFilter{}); err != nil {
		g.logger.Warn("readiness probe failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("directory unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d tools)", len(tools))
}
