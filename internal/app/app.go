package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/config"
	"github.com/MrSnakeDoc/smartmarks/internal/dashboard"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/metrics"
	"github.com/MrSnakeDoc/smartmarks/internal/postgres"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
	"github.com/MrSnakeDoc/smartmarks/internal/redis"
	"github.com/MrSnakeDoc/smartmarks/internal/scheduler"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
	pgstore "github.com/MrSnakeDoc/smartmarks/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/smartmarks/internal/store/redis"
	"github.com/MrSnakeDoc/smartmarks/internal/utils"
	"github.com/MrSnakeDoc/smartmarks/internal/version"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	server       *httpserver.Server
	redisClient  *goredis.Client
	pool         *pgxpool.Pool
	hub          *realtime.Hub
	tabs         *dashboard.Registry
	importSync   *scheduler.ImportSync
	shuttingDown *atomic.Bool
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	if cfg.AutoMigrate {
		loggerClient.Info("applying database migrations")
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			loggerClient.Errorf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
	}

	// Initialize Postgres and Redis early - fail fast if unavailable
	pool, err := postgres.New(postgres.DefaultConnectOptions(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBConnectTimeout), loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Postgres: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Postgres initialized successfully")

	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		pool.Close()
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	m := metrics.New()

	renderer, err := views.New()
	if err != nil {
		loggerClient.Errorf("Failed to parse templates: %v", err)
		os.Exit(1)
	}

	sessions := redisstore.NewStore(redisClient)
	google := auth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL())
	bridge := auth.NewBridge(sessions, []auth.Provider{google}, auth.Options{
		Secret:       []byte(cfg.SessionSecret),
		AccessTTL:    cfg.AccessTTL,
		RefreshTTL:   cfg.RefreshTTL,
		RefreshReuse: cfg.RefreshReuse,
		StateTTL:     cfg.StateTTL,
		CookieSecure: cfg.CookieSecure,
	}, m, loggerClient)

	bookmarkStore := pgstore.NewBookmarkStore(pool)
	hub := realtime.NewHub(pool, cfg.FeedBuffer, m, loggerClient)
	repo := bookmarks.NewRepository(bookmarkStore, hub, m, loggerClient)
	tabs := dashboard.NewRegistry(loggerClient, cfg.TabAttachTimeout, cfg.TabSweepInterval)

	// Initialize Homepage import (if an import file is configured)
	var importSync *scheduler.ImportSync
	if cfg.ImportFile != "" {
		loader, err := homepage.NewLoader(cfg.ImportFile, homepage.Format(cfg.ImportFormat))
		if err != nil {
			loggerClient.Errorf("Invalid import settings: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("import file configured, initializing import sync",
			logger.String("file", cfg.ImportFile),
			logger.String("format", cfg.ImportFormat))
		importSync = scheduler.NewImportSync(loader, homepage.NewImporter(repo, loggerClient), cfg.ImportUser, loggerClient, cfg.ImportInterval)
	}

	shuttingDown := &atomic.Bool{}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		AuthRateBurst:     cfg.AuthRateBurst,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		Auth:              bridge,
		Providers:         []views.Provider{{Name: "Google", Href: "/auth/signin/" + google.ID()}},
		Bookmarks:         repo,
		Tabs:              tabs,
		Views:             renderer,
		Metrics:           m,
		Checks: []deps.Check{
			{Name: "postgres", Impact: "bookmarks-unavailable", Ping: bookmarkStore.Ping},
			{Name: "redis", Impact: "sign-in-unavailable", Ping: sessions.Ping},
		},
		ShuttingDown: shuttingDown,
	}

	server := httpserver.New(cfg, loggerClient, d)
	// close mounted tabs first so open event streams do not hold Shutdown
	server.OnShutdown(tabs.Stop)

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		server:       server,
		redisClient:  redisClient,
		pool:         pool,
		hub:          hub,
		tabs:         tabs,
		importSync:   importSync,
		shuttingDown: shuttingDown,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting smartmarks %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String("smartmarks"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start change feed listener
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start change feed: %w", err)
	}
	a.logger.Info("change feed started", logger.String("channel", realtime.Channel))

	// Start tab janitor
	if err := a.tabs.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tab registry: %w", err)
	}
	a.logger.Info("tab janitor started",
		logger.Duration("attach_timeout", a.cfg.TabAttachTimeout),
		logger.Duration("interval", a.cfg.TabSweepInterval))

	// Start Homepage import (if enabled). A bad file is logged, not fatal.
	if a.importSync != nil {
		if err := a.importSync.Start(ctx); err != nil {
			a.logger.Error("homepage import failed", logger.Error(err))
		} else {
			a.logger.Info("homepage import started",
				logger.Duration("interval", a.cfg.ImportInterval))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	// readiness fails from now on
	a.shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Stop import, tabs and change feed
	if a.importSync != nil {
		a.importSync.Stop()
	}
	a.tabs.Stop()
	a.hub.Stop()

	utils.MustClose(a.redisClient, "redis", a.logger)
	a.pool.Close()
	a.logger.Info("✅ Postgres and Redis closed")

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ smartmarks stopped cleanly")
	return nil
}
