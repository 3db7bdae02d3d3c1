package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkstash/internal/config"
	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkstash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
	"github.com/MrSnakeDoc/linkstash/internal/reconcile"
	"github.com/MrSnakeDoc/linkstash/internal/redis"
	"github.com/MrSnakeDoc/linkstash/internal/sources/homepage"
	"github.com/MrSnakeDoc/linkstash/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/linkstash/internal/store/redis"
	"github.com/MrSnakeDoc/linkstash/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	client      *reconcile.Client
	deps        deps.Deps
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	var (
		remote      domain.RemoteStore
		redisClient *goredis.Client
	)
	switch cfg.Store {
	case config.StoreMemory:
		loggerClient.Warn("using in-memory store, bookmarks are lost on restart")
		remote = memory.NewStore()
	default:
		// Fail fast if Redis is unavailable
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		c, err := redis.New(redis.ConnectOptions{
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
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")
		redisClient = c
		remote = redisstore.NewStore(c, cfg.RedisChannelHealthChk)
	}

	client := reconcile.NewClient(remote, reconcile.Options{
		Strategy:             reconcile.Strategy(cfg.SyncStrategy),
		ResubscribeInitial:   cfg.ResubscribeInitial,
		ResubscribeMax:       cfg.ResubscribeMax,
		ResubscribeThreshold: cfg.ResubscribeThreshold,
		RefetchInterval:      cfg.RefetchInterval,
		Logger:               loggerClient,
		OnError: func(err error) {
			if errors.Is(err, domain.ErrSubscriptionLost) {
				loggerClient.Error("live updates unavailable, falling back to periodic refetch", logger.Error(err))
				return
			}
			loggerClient.Warn("sync error", logger.Error(err))
		},
	})

	var importer *homepage.Importer
	if cfg.ImportFile != "" {
		loggerClient.Info("import file configured, bookmarks are imported on sign-in",
			logger.String("file", cfg.ImportFile))
		importer = homepage.NewImporter(cfg.ImportFile, loggerClient)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:               loggerClient,
		StartTime:            time.Now(),
		Version:              version.Version,
		Commit:               version.Commit,
		BuildDate:            version.BuildDate,
		GoVersion:            version.GoVersion,
		TimeNow:              time.Now,
		AllowedHosts:         cfg.AllowedHosts,
		AllowedCIDRS:         cfg.AllowedCIDRS,
		TrustProxy:           cfg.TrustProxy,
		RateLimitBurst:       cfg.RateLimitBurst,
		RateLimitPerMin:      cfg.RateLimitPerMin,
		RequestTimeout:       cfg.RequestTimeout,
		MutationTimeout:      cfg.MutationTimeout,
		StreamWriteTimeout:   cfg.StreamWriteTimeout,
		StreamAllowedOrigins: cfg.StreamAllowedOrigins,
		MetricsEnabled:       cfg.MetricsEnabled,
		Client:               client,
		Importer:             importer,
		RedisClient:          redisClient,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		client:      client,
		deps:        d,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting linkstash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("linkstash %s (commit=%s, built=%s, go=%s, store=%s, sync=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion,
		a.cfg.Store, a.cfg.SyncStrategy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Owner != "" {
		if _, err := a.client.SignIn(ctx, a.cfg.Owner); err != nil {
			return fmt.Errorf("failed to sign in %s: %w", a.cfg.Owner, err)
		}
		a.logger.Info("signed in", logger.String("owner", a.cfg.Owner))
		handlers.StartImport(a.deps)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.client.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Ends the open streams too
	a.client.Close()
	a.logger.Info("✅ Sync session closed")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ linkstash stopped cleanly")
	return nil
}
