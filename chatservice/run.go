package chatservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/api"
	"github.com/harshite737-crypto/haste/internal/billing"
	"github.com/harshite737-crypto/haste/internal/config"
	"github.com/harshite737-crypto/haste/internal/health"
	"github.com/harshite737-crypto/haste/internal/identity"
	"github.com/harshite737-crypto/haste/internal/logger"
	"github.com/harshite737-crypto/haste/internal/memory"
	"github.com/harshite737-crypto/haste/internal/plans"
	"github.com/harshite737-crypto/haste/internal/providers"
	"github.com/harshite737-crypto/haste/internal/providers/openai"
	"github.com/harshite737-crypto/haste/internal/providers/replicate"
	"github.com/harshite737-crypto/haste/internal/quota"
	"github.com/harshite737-crypto/haste/internal/routing"
	"github.com/harshite737-crypto/haste/internal/services"
	"github.com/harshite737-crypto/haste/internal/session"
	"github.com/harshite737-crypto/haste/internal/store"
	"github.com/harshite737-crypto/haste/internal/store/factory"
)

// Run starts the chat service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("haste-server")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("store_driver", cfg.StoreDriver).
		Int("http_port", cfg.HTTPPort).
		Str("primary", cfg.PrimaryName).
		Str("secondary", cfg.SecondaryName).
		Msg("Chat service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, closeStore, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	catalog, err := plans.Load(cfg.PlansFile, cfg.DefaultPlan)
	if err != nil {
		log.Error().Err(err).Str("plans_file", cfg.PlansFile).Msg("Failed to load plans")
		return err
	}

	deps := newProviders(cfg, log)

	// Start health checkers; only the store gates readiness.
	svcHealth, components := startHealthCheckers(ctx, cfg, log, st, deps)

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	router := buildRouter(cfg, log, st, catalog, deps, api.NewHealthHandler(svcHealth.IsHealthy, components...))

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// upstream is a provider that can also be probed for health.
type upstream struct {
	name   string
	pinger health.HealthPinger
}

// providerSet holds the outbound clients built from configuration.
type providerSet struct {
	attempts  []routing.Attempt
	video     providers.VideoProvider
	image     providers.ImageProvider
	upstreams []upstream
}

// newProviders builds the completion chain (primary then secondary) and the
// media generators. Media generators without an API key stay nil so requests
// for them fail fast as "not configured".
func newProviders(cfg *config.Config, log zerolog.Logger) providerSet {
	var ps providerSet
	timeout := cfg.ProviderTimeout()

	chain := []struct{ name, baseURL, key, model string }{
		{cfg.PrimaryName, cfg.PrimaryBaseURL, cfg.PrimaryAPIKey, cfg.PrimaryModel},
		{cfg.SecondaryName, cfg.SecondaryBaseURL, cfg.SecondaryAPIKey, cfg.SecondaryModel},
	}
	for _, c := range chain {
		if c.baseURL == "" {
			continue
		}
		if c.key == "" {
			log.Warn().Str("provider", c.name).Msg("completion provider has no API key")
		}
		client := openai.New(c.baseURL, c.key, c.model, timeout)
		ps.attempts = append(ps.attempts, routing.Attempt{Name: c.name, Provider: client})
		ps.upstreams = append(ps.upstreams, upstream{name: c.name, pinger: client})
	}

	if cfg.VideoAPIKey != "" {
		v := replicate.New(cfg.VideoBaseURL, cfg.VideoAPIKey, cfg.VideoModel, cfg.MediaTimeout())
		ps.video = v
		ps.upstreams = append(ps.upstreams, upstream{name: "video", pinger: v})
	} else {
		log.Warn().Msg("video generation disabled: no API key")
	}
	if cfg.ImageAPIKey != "" {
		img := openai.New(cfg.ImageBaseURL, cfg.ImageAPIKey, cfg.ImageModel, cfg.MediaTimeout())
		ps.image = img.Images()
		ps.upstreams = append(ps.upstreams, upstream{name: "image", pinger: img})
	} else {
		log.Warn().Msg("image generation disabled: no API key")
	}
	return ps
}

// buildRouter wires services and HTTP routes.
func buildRouter(cfg *config.Config, log zerolog.Logger, st store.Store, catalog *plans.Catalog, ps providerSet, healthHandler *api.HealthHandler) http.Handler {
	grants := session.NewGrants()
	q := quota.NewManager(st.Usage(), grants, log)
	accounts := services.NewAccountService(st.Accounts(), catalog)

	router := routing.NewRouter(ps.attempts, ps.video, ps.image, routing.Config{
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		AttemptTimeout: cfg.ProviderTimeout(),
		MediaTimeout:   cfg.MediaTimeout(),
	}, log)

	chat := services.NewChatService(services.ChatDeps{
		Accounts:    accounts,
		Quota:       q,
		Grants:      grants,
		Memory:      memory.New(st.Memories()),
		Router:      router,
		OwnerPhrase: cfg.OwnerPhrase,
		StudentMode: cfg.StudentModeEnabled,
		Log:         log,
	})

	deps := api.Deps{
		Chat:     chat,
		Usage:    services.NewUsageService(accounts, q, grants),
		Accounts: accounts,
		Resolver: identity.NewResolver(cfg.JWTSecret, cfg.CookieName, cfg.CookieMaxAge(), cfg.CookieSecure),
		Health:   healthHandler,
	}
	if cfg.StripeWebhookSecret != "" {
		deps.Billing = billing.NewWebhookHandler(cfg.StripeWebhookSecret, accounts, log)
	}
	return api.NewRouter(deps)
}

// startHealthCheckers starts the store checker, which gates service health,
// and one informational checker per upstream provider. Provider outages are
// already handled per request by fallback, so they never block startup.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, ps providerSet) (*health.ServiceHealthChecker, []health.HealthChecker) {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	components := []health.HealthChecker{storeChecker}

	for _, u := range ps.upstreams {
		c := health.NewPingChecker(u.name, u.pinger, log, probeTimeout)
		go c.Start(ctx, interval)
		components = append(components, c)
	}

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth, components
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	// WriteTimeout covers the plan delay plus a full fallback chain or a media job.
	write := 2*cfg.ProviderTimeout() + cfg.MediaTimeout() + 15*time.Second
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 30 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 30 {
		return 30
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: %v not healthy within %d seconds", svcHealth.Down(), timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
