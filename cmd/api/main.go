// Package main is the entrypoint for the Cat Clicker API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/catclicker/catclicker/internal/admission"
	"github.com/catclicker/catclicker/internal/cache"
	"github.com/catclicker/catclicker/internal/config"
	"github.com/catclicker/catclicker/internal/geo"
	"github.com/catclicker/catclicker/internal/handler"
	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/live"
	"github.com/catclicker/catclicker/internal/metrics"
	"github.com/catclicker/catclicker/internal/middleware"
	"github.com/catclicker/catclicker/internal/persist"
	"github.com/catclicker/catclicker/internal/policy"
	"github.com/catclicker/catclicker/internal/repository"
	"github.com/catclicker/catclicker/internal/server"
	"github.com/catclicker/catclicker/internal/service"
)

// Per-IP buckets kept without Redis. An idle bucket has long refilled, so
// dropping it loses nothing.
const (
	localLimiterSize = 10000
	localLimiterIdle = 10 * time.Minute
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Admission policy
	pol := policy.Default()
	if cfg.PolicyFile != "" {
		pol, err = policy.Load(cfg.PolicyFile)
		if err != nil {
			logger.Error("failed to load policy", "error", err, "path", cfg.PolicyFile)
			os.Exit(1)
		}
	}
	store, err := policy.NewStore(pol)
	if err != nil {
		logger.Error("invalid policy", "error", err)
		os.Exit(1)
	}
	evaluator := admission.New(store)
	logger.Info("policy loaded",
		"mode", string(store.Mode()),
		"source", policySource(cfg.PolicyFile),
		"vpn_blocking", store.ShouldBlockVPN(),
	)

	recorder, metricsHandler := initMetrics(cfg)
	mem := ledger.NewMemory()

	srvCleanup := make([]namedShutdown, 0, 4)

	// Optional Postgres snapshot store
	var repo *repository.Repository
	var worker *persist.Worker
	if cfg.DatabaseURL != "" {
		repo, err = repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		srvCleanup = append(srvCleanup, namedShutdown{"postgres", func(context.Context) error {
			repo.Close()
			return nil
		}})
		logger.Info("connected to database")

		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}

		worker = persist.NewWorker(repo, mem, logger, recorder)
		worker.SetInterval(cfg.SnapshotInterval)
		if err := worker.Restore(ctx); err != nil {
			logger.Error("failed to restore ledger", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("ledger restored", "countries", mem.CountryCount(), "global_clicks", mem.GlobalClickCount())
		srvCleanup = append(srvCleanup, namedShutdown{"snapshot-worker", worker.Shutdown})
	} else {
		logger.Warn("DATABASE_URL not set; click totals are kept in memory only")
	}

	// Optional Redis for rate limiting and the geo cache
	var cacheClient *cache.Cache
	var limiter middleware.IPLimiter
	var geoCache geo.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		srvCleanup = append(srvCleanup, namedShutdown{"redis", func(context.Context) error {
			return cacheClient.Close()
		}})
		logger.Info("connected to Redis")
		limiter = cacheClient
		geoCache = cache.NewGeoCache(cacheClient, cfg.GeoCacheTTL)
	} else {
		limiter = cache.NewLocalLimiter(localLimiterSize, localLimiterIdle)
		geoCache = geo.NewMemoryCache(cfg.GeoCacheSize, cfg.GeoCacheTTL)
	}

	// Geolocation chain
	providers, mmdb, err := initGeoProviders(cfg, logger)
	if err != nil {
		logger.Error("failed to open geolocation database", "error", err, "path", cfg.GeoMMDBPath)
		os.Exit(1)
	}
	if mmdb != nil {
		srvCleanup = append(srvCleanup, namedShutdown{"mmdb", func(context.Context) error {
			return mmdb.Close()
		}})
	}
	resolver := geo.NewResolver(providers,
		geo.WithCache(geoCache),
		geo.WithTimeout(cfg.GeoTimeout),
		geo.WithMetrics(recorder),
		geo.WithLogger(logger),
	)

	// Live leaderboard
	hub := live.NewHub(mem, cfg.LeaderboardBroadcastSize,
		live.WithOriginPatterns(originHosts(cfg.GetCORSAllowedOrigins())),
		live.WithLogger(logger),
		live.WithMetrics(recorder),
	)

	// Services and handlers
	clickService := service.NewClickService(mem, evaluator,
		service.WithLocator(resolver),
		service.WithNotifier(hub),
		service.WithMetrics(recorder),
		service.WithLogger(logger.With("component", "service")),
	)

	deps := routerDeps{
		handler:  handler.New(),
		health:   handler.NewHealthHandler(healthChecks(repo, cacheClient)...),
		metrics:  metricsHandler,
		clicks:   handler.NewClickHandler(clickService, logger),
		live:     hub,
		limiter:  limiter,
		recorder: recorder,
	}
	r := setupRouter(deps, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	for _, c := range srvCleanup {
		srv.OnShutdown(c.name, c.fn)
	}

	if worker != nil {
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("snapshot worker error", "error", err)
			}
		}()
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"metrics_backend", cfg.MetricsBackend,
		"geo_providers", len(providers),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

type namedShutdown struct {
	name string
	fn   server.ShutdownFunc
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initMetrics picks the recorder and the /metrics handler for the backend.
func initMetrics(cfg *config.Config) (metrics.Recorder, *handler.MetricsHandler) {
	switch cfg.MetricsBackend {
	case config.MetricsInMemory:
		rec := metrics.NewInMemory()
		return rec, handler.NewMetricsHandler(rec, nil)
	case config.MetricsNoop:
		return metrics.NewNoop(), handler.NewMetricsHandler(nil, nil)
	default:
		rec := metrics.NewPrometheus()
		return rec, handler.NewMetricsHandler(nil, rec.Handler())
	}
}

// initGeoProviders builds the lookup chain: ip-api, then ipinfo, then the
// local MaxMind database. Each is skipped when disabled or unconfigured.
func initGeoProviders(cfg *config.Config, logger *slog.Logger) ([]geo.Provider, *geo.MMDB, error) {
	breaker := geo.DefaultBreakerSettings()
	providers := make([]geo.Provider, 0, 3)
	if cfg.GeoPrimaryEnabled {
		providers = append(providers,
			geo.WithBreaker(geo.NewIPAPI(cfg.GeoPrimaryURL, cfg.GeoTimeout, cfg.GeoRateLimit), breaker, logger))
	}
	if cfg.GeoSecondaryEnabled {
		providers = append(providers,
			geo.WithBreaker(geo.NewIPInfo(cfg.GeoSecondaryURL, cfg.GeoSecondaryToken, cfg.GeoTimeout), breaker, logger))
	}

	if cfg.GeoMMDBPath == "" {
		return providers, nil, nil
	}

	db, err := geo.OpenMMDB(cfg.GeoMMDBPath, cfg.GeoAnonMMDBPath)
	if err != nil {
		return nil, nil, err
	}
	return append(providers, db), db, nil
}

// healthChecks lists readiness dependencies; unconfigured stores stay nil.
func healthChecks(repo *repository.Repository, cacheClient *cache.Cache) []handler.HealthCheck {
	pg := handler.HealthCheck{Name: "postgres"}
	if repo != nil {
		pg.Checker = repo
	}
	rd := handler.HealthCheck{Name: "redis"}
	if cacheClient != nil {
		rd.Checker = cacheClient
	}
	return []handler.HealthCheck{pg, rd}
}

func policySource(path string) string {
	if path == "" {
		return "default"
	}
	return path
}

// originHosts converts CORS origins to the host patterns the WebSocket
// handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			hosts = append(hosts, "*")
			continue
		}
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		if origin != "" {
			hosts = append(hosts, origin)
		}
	}
	return hosts
}

// routerDeps carries everything setupRouter mounts.
type routerDeps struct {
	handler  *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	clicks   *handler.ClickHandler
	live     http.Handler
	limiter  middleware.IPLimiter
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: deps.limiter,
		Metrics: deps.recorder,
		Enabled: cfg.RateLimitClicksEnabled,
		RPS:     cfg.RateLimitClicksRPS,
		Burst:   cfg.RateLimitClicksBurst,
	}

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/clicks", deps.clicks.Submit)
		r.Get("/users/{sessionId}/stats", deps.clicks.Stats)
		r.Get("/countries/top", deps.clicks.TopCountries)
		r.Get("/countries/{code}", deps.clicks.Country)
		r.Get("/session", deps.clicks.Session)
		r.Get("/country-info", deps.clicks.CountryInfo)
		if deps.live != nil {
			r.Handle("/ws/leaderboard", deps.live)
		}
	})

	r.NotFound(deps.handler.NotFound)
	r.MethodNotAllowed(deps.handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
