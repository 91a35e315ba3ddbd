package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/api"
	"forgeai/fitness-agent/internal/cache"
	"forgeai/fitness-agent/internal/config"
	"forgeai/fitness-agent/internal/logging"
	"forgeai/fitness-agent/internal/metrics"
	"forgeai/fitness-agent/internal/repository/mongo"
	"forgeai/fitness-agent/internal/service"
	"forgeai/fitness-agent/internal/storage"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.Stdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})
	log.Info("starting forgeai coach server ...")

	if err := run(cfg); err != nil {
		log.Fatalf("server: %s", err)
	}
	log.Info("server exiting")
}

func run(cfg config.Config) error {
	ctx := context.Background()

	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("forgeai", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		log.Info("disconnecting MongoDB ...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Errorf("disconnect MongoDB: %s", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	indexCtx, cancelIndexes := context.WithTimeout(ctx, time.Minute)
	err = mongo.EnsureIndexes(indexCtx, appDB)
	cancelIndexes()
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Errorf("close redis: %s", err)
		}
	}()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	}
	stateCache := cache.NewStateCache(rdb, cfg.Redis.StateTTL)

	// --- Agent ---
	var archiver agent.Archiver
	if cfg.S3.Enabled {
		fileStorage, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("init s3 storage: %w", err)
		}
		archiver = storage.NewReplyArchive(fileStorage)
	} else {
		log.Warn("s3 disabled, unparseable agent replies will not be archived")
	}

	modelClient := agent.NewModelClient(agent.ModelConfig{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  cfg.Agent.APIKey,
		Model:   cfg.Agent.Model,
		Timeout: cfg.Agent.Timeout,
	})
	var planCompleter agent.Completer = modelClient
	if cfg.Agent.ProxyURL != "" {
		log.Infof("generating plans through agent proxy %s", cfg.Agent.ProxyURL)
		planCompleter = agent.NewProxyClient(cfg.Agent.ProxyURL, cfg.Agent.Timeout)
	}
	generator := agent.NewGenerator(planCompleter, archiver, metricsManager)
	proxyGenerator := agent.NewGenerator(modelClient, nil, metricsManager)

	// --- Repositories and Services ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)
	historyRepo := mongo.NewMongoHistoryRepository(appDB)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	profileService := service.NewProfileService(profileRepo)
	coachService := service.NewCoachService(stateCache, profileService, historyRepo, generator, metricsManager)

	// --- Router ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.SetupRoutes(
		router,
		api.RouterConfig{
			AllowedOrigin: cfg.Server.AllowedOrigin,
			RateLimiter:   redis_rate.NewLimiter(rdb),
			RateLimit: redis_rate.Limit{
				Rate:   cfg.RateLimit.Requests,
				Burst:  cfg.RateLimit.Requests,
				Period: cfg.RateLimit.Window,
			},
			MetricsManager: metricsManager,
			MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		},
		authService,
		coachService,
		profileService,
		agent.CompleterFunc(proxyGenerator.Ask),
		stateCache,
		api.PingerFunc(func(ctx context.Context) error {
			return mongo.Ping(ctx, dbClient)
		}),
	)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// plan generation can take two agent round trips
		WriteTimeout: 2*cfg.Agent.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	metricsManager.GaugeLifeSignal.Set(1)

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen and serve: %w", err)
	case sig := <-quit:
		log.Infof("received %s, shutting down ...", sig)
	}
	metricsManager.GaugeLifeSignal.Set(0)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}
