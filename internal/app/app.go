package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/interpolis/tourpoule/internal/auth"
	"github.com/interpolis/tourpoule/internal/avatars"
	"github.com/interpolis/tourpoule/internal/cache"
	"github.com/interpolis/tourpoule/internal/config"
	"github.com/interpolis/tourpoule/internal/handlers"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// Options holds dependencies that callers may substitute
type Options struct {
	// HTTPClient is used for OIDC discovery and token exchange
	HTTPClient *http.Client
}

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      config.Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	hub      *websocket.Hub
	teams    *services.TeamService
	cache    cache.Cache
	closers  []io.Closer
	cancel   context.CancelFunc
}

// New creates and initializes a new application instance. Redis and the
// avatar bucket are optional: when they cannot be reached the app runs
// without them. A configured identity provider must be reachable.
func New(ctx context.Context, log logger.Logger, cfg config.Config, adminAuth *auth.Auth, opts Options) (*App, error) {
	dialect, err := repository.ParseDialect(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	repo, err := repository.Open(dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", dialect, err)
	}

	a := &App{log: log, cfg: cfg, repo: repo}

	var c cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Warn("Redis unavailable, running without cache", "error", err)
		} else {
			c = rc
			a.closers = append(a.closers, rc)
			log.Info("Standings cache enabled", "ttl", cfg.CacheTTL)
		}
	}
	a.cache = c

	var store avatars.Store
	if cfg.Avatars.Enabled() {
		s3, err := avatars.New(ctx, avatars.Config{
			Bucket:          cfg.Avatars.Bucket,
			Endpoint:        cfg.Avatars.Endpoint,
			Region:          cfg.Avatars.Region,
			AccessKeyID:     cfg.Avatars.AccessKeyID,
			SecretAccessKey: cfg.Avatars.SecretAccessKey,
			PublicBaseURL:   cfg.Avatars.PublicBaseURL,
		})
		if err != nil {
			log.Warn("Avatar storage unavailable, uploads will be skipped", "error", err)
		} else {
			store = s3
		}
	}

	// A nil interface, not a typed nil, disables participant sign-in.
	var identity handlers.Identifier
	if cfg.OIDC.Enabled() {
		provider, err := auth.Discover(ctx, log, auth.OIDCConfig{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		}, opts.HTTPClient)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("discovering identity provider: %w", err)
		}
		identity = provider
	} else {
		log.Warn("OIDC not configured, participant sign-in disabled")
	}

	locks := services.NewParticipantLocks(cfg.LockTimeout)
	standings := services.NewStandingsService(log, repo, c)
	settings := services.NewSettingsService(log, repo)
	a.teams = services.NewTeamService(log, repo, settings, locks, store, standings)
	a.teams.SetBaseURL(cfg.PublicBaseURL)

	// Initialize WebSocket hub; standings changes are pushed through it
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.hub = websocket.New(log, standings)
	a.hub.Start(runCtx)
	standings.SetBroadcaster(a.hub)

	svc := handlers.Services{
		Riders:    services.NewRiderService(log, repo),
		Stages:    services.NewStageService(log, repo, standings),
		Import:    services.NewImportService(log, repo, locks, standings),
		Reserves:  services.NewReserveService(log, repo, locks, standings),
		Scoring:   services.NewScoringService(log, repo, standings),
		Rules:     services.NewRuleService(log, repo, standings),
		Teams:     a.teams,
		Standings: standings,
		Settings:  settings,
	}
	a.handlers = handlers.New(svc, adminAuth, identity, http.HandlerFunc(a.hub.ServeWs), log)

	return a, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
		a.repo = nil
	}
}

// Run serves HTTP on addr until ctx is cancelled
func (a *App) Run(ctx context.Context, addr string) error {
	baseURL := a.cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(realNetworkProvider{}, addr)
		a.teams.SetBaseURL(baseURL)
		a.log.Info("PUBLIC_BASE_URL not set, share links use the LAN address", "url", baseURL)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", "addr", addr, "url", baseURL)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.log.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
