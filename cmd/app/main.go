package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spectra-bot-backend/internal/common/config"
	"spectra-bot-backend/internal/common/logger"
	"spectra-bot-backend/internal/common/metrics"
	"spectra-bot-backend/internal/common/middleware"
	giveawaysvc "spectra-bot-backend/internal/features/giveaway/service"
	"spectra-bot-backend/internal/features/leveling"
	licensesvc "spectra-bot-backend/internal/features/license/service"
	"spectra-bot-backend/internal/features/registry"
	httpapi "spectra-bot-backend/internal/http"
	"spectra-bot-backend/internal/platform/discord"
	platformredis "spectra-bot-backend/internal/platform/redis"
	"spectra-bot-backend/internal/platform/storage"
	filestore "spectra-bot-backend/internal/platform/storage/file"
	"spectra-bot-backend/internal/platform/storage/redisstore"
	"spectra-bot-backend/internal/service/notifications"
)

func main() {
	cfg := config.Load()
	logger.Init("spectra-bot-backend", cfg.Debug)

	adapter, cleanup, err := buildStorage(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage backend")
	}
	defer cleanup()

	logger.Info().Str("backend", cfg.Storage.Backend).Msg("Storage backend initialized")

	chatClient := discord.NewClient(cfg.Discord.BotToken)
	notifier := notifications.NewService(chatClient)

	store := registry.NewStore(adapter)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store.Load(loadCtx, registry.KindGiveaway)
	store.Load(loadCtx, registry.KindLicense)
	loadCancel()

	giveawaySvc := giveawaysvc.NewService(store, adapter, chatClient, notifier, cfg.Discord.Marker)
	licenseSvc := licensesvc.NewService(store, adapter, notifier)
	levelingSvc := leveling.NewService(adapter, notifier)

	promRegistry := prometheus.NewRegistry()
	sweepMetrics := metrics.NewSweepMetrics(promRegistry)

	giveawaySweeper := registry.NewSweeper(
		registry.KindGiveaway, cfg.Sweep.GiveawayInterval, cfg.Sweep.EntityBudget,
		store, giveawaySvc.Complete, sweepMetrics)
	licenseSweeper := registry.NewSweeper(
		registry.KindLicense, cfg.Sweep.LicenseInterval, cfg.Sweep.EntityBudget,
		store, licenseSvc.Complete, sweepMetrics)

	giveawaySweeper.Start()
	licenseSweeper.Start()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID", "X-Operator-ID"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, giveawaySvc, licenseSvc, levelingSvc, store, promRegistry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	giveawaySweeper.Stop()
	licenseSweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func buildStorage(cfg *config.Config) (storage.Adapter, func(), error) {
	if err := storage.ValidateBackend(cfg.Storage.Backend); err != nil {
		return nil, nil, err
	}

	switch cfg.Storage.Backend {
	case storage.BackendRedis:
		client, err := platformredis.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client), func() { client.Close() }, nil
	default:
		store, err := filestore.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	giveawaySvc *giveawaysvc.Service,
	licenseSvc *licensesvc.Service,
	levelingSvc *leveling.Service,
	store *registry.Store,
	promRegistry *prometheus.Registry,
) {
	v1 := router.Group("/api/v1")
	httpapi.NewGiveawayHandler(giveawaySvc).Register(v1)
	httpapi.NewLicenseHandler(licenseSvc).Register(v1, cfg.Discord.AdminIDs)
	httpapi.NewLevelingHandler(levelingSvc).Register(v1)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// Health endpoints double as the keep-alive surface for the hosting
	// platform's uptime pinger.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "spectra-bot-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":           "ready",
			"active_giveaways": store.Count(registry.KindGiveaway),
			"active_bindings":  store.Count(registry.KindLicense),
			"timestamp":        time.Now().UTC(),
		})
	})
}
