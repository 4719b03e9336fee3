package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"storylens/internal/cache"
	"storylens/internal/client"
	"storylens/internal/config"
	"storylens/internal/handler"
	"storylens/internal/logger"
	"storylens/internal/messaging"
	"storylens/internal/middleware"
	"storylens/internal/shell"
	"storylens/internal/web"
)

func main() {
	// До zap пишем через стандартный log
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Service: "storylens"})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)
	cfg.LogSummary(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Бэкенд ---
	api, err := client.NewStoryAPIClient(cfg.APIBaseURL, cfg.APITimeout, cfg.APIRetryCount, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create story API client", zap.Error(err))
	}

	// --- Кэш: Redis, если задан, иначе память ---
	var (
		redisClient *redis.Client
		store       cache.Store
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		store = cache.NewRedisStore(redisClient, cache.DefaultRedisPrefix, zapLogger)
		zapLogger.Info("Using Redis cache store")
	} else {
		store = cache.NewMemoryStore()
		zapLogger.Info("Using in-memory cache store")
	}
	queryCache := cache.New(store, cfg.CacheTTL, zapLogger)

	// --- События историй ---
	events := messaging.NewNopPublisher()
	if cfg.RabbitMQURL != "" {
		conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, 5, 2*time.Second, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()
		events, err = messaging.NewRabbitMQStoryEventPublisher(conn, cfg.StoryEventsQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create story event publisher", zap.Error(err))
		}
	}
	defer func() {
		if err := events.Close(); err != nil {
			zapLogger.Error("Failed to close story event publisher", zap.Error(err))
		}
	}()

	// --- Сервисы ---
	sh := shell.New(api, queryCache, events, zapLogger)

	sessions := shell.NewSessionStore(cfg.SessionTTL, zapLogger)
	go sessions.Run(ctx, 10*time.Minute)

	hub := handler.NewConnectionManager(zapLogger)
	go hub.Run(ctx)
	queryCache.OnInvalidate(hub.NotifyInvalidated)

	if redisClient != nil {
		relay := cache.NewRelay(redisClient, cache.DefaultInvalidationChannel, zapLogger)
		queryCache.OnInvalidate(relay.Publish)
		go func() {
			// Чужая инвалидация: сбрасываем свою загрузку и обновляем открытые страницы
			foreign := func(key string) {
				_ = queryCache.Discard(ctx, key)
				hub.NotifyInvalidated(key)
			}
			if err := relay.Run(ctx, foreign); err != nil {
				zapLogger.Error("Cache relay stopped", zap.Error(err))
			}
		}()
	}

	storyHandler := handler.NewStoryHandler(sh, sessions, hub, handler.Options{
		ReadOnly:      cfg.ReadOnly,
		Location:      cfg.Location,
		SecureCookies: cfg.IsProduction(),
		FlashSecret:   []byte(cfg.FlashSecret),
		SessionTTL:    cfg.SessionTTL,
	}, zapLogger)
	submitLimiter := storyHandler.SubmitRateLimiter(handler.NewRateLimitStore(redisClient, cfg.UploadRateLimit))

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.TemplatesDebug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapLogger(zapLogger))
	router.Use(handler.CustomErrorMiddleware(zapLogger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
		corsConfig.AllowCredentials = true
		corsConfig.MaxAge = 12 * time.Hour
		router.Use(cors.New(corsConfig))
	}

	// Middleware метрик действует только на маршруты, зарегистрированные после него
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	templatesDir := ""
	if cfg.TemplatesDebug {
		templatesDir = cfg.TemplatesDir
	}
	if err := web.Install(router, templatesDir); err != nil {
		zapLogger.Fatal("Failed to install templates", zap.Error(err))
	}

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	storyHandler.RegisterRoutes(router, submitLimiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// Генерация истории может занимать десятки секунд
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.APITimeout + 15*time.Second,
	}

	go func() {
		zapLogger.Info("Starting StoryLens web client", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited")
}
