package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsehq/comms-gateway/internal/config"
	"github.com/pulsehq/comms-gateway/internal/directory"
	"github.com/pulsehq/comms-gateway/internal/handler"
	"github.com/pulsehq/comms-gateway/internal/middleware"
	"github.com/pulsehq/comms-gateway/internal/routes"
	"github.com/pulsehq/comms-gateway/internal/service"
	"github.com/pulsehq/comms-gateway/internal/session"
	"github.com/pulsehq/comms-gateway/internal/upstream"
	pkgcache "github.com/pulsehq/comms-gateway/pkg/cache"
	"github.com/pulsehq/comms-gateway/pkg/jwt"
	pkglogger "github.com/pulsehq/comms-gateway/pkg/logger"
	pkgredis "github.com/pulsehq/comms-gateway/pkg/redis"
)

// @title           Pulse Comms Gateway API
// @version         1.0
// @description     Conversation aggregation gateway for the Pulse messaging backend
//
// @host            localhost:8084
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	pkglogger.Init()
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	// Redis is optional: without it the gateway loses warm starts and
	// cross-replica caches but keeps serving from in-process sessions.
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Info("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	}
	cacheService := pkgcache.NewService(redisClient)

	// Upstream message store client
	upstreamClient := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout.Std())

	// Directory and per-user polling sessions
	nameResolver := directory.NewResolver(upstreamClient, cacheService, pkgcache.TTLDirectory, cfg.Poll.PageLimit)
	sessionManager := session.NewManager(
		upstreamClient,
		upstreamClient,
		cacheService,
		cfg.Poll.Interval.Std(),
		cfg.Poll.SessionTTL.Std(),
		cfg.Poll.PageLimit,
	)
	go sessionManager.Run()

	commsService := service.NewCommsService(sessionManager, nameResolver, upstreamClient)
	commsHandler := handler.NewCommsHandler(commsService)

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn.Std())

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     splitAndTrim(cfg.CORS.AllowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:           86400,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	// Middleware
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.InputSanitizer())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	if redisClient != nil && !cfg.IsDevelopment() {
		router.Use(middleware.RateLimit(redisClient, middleware.DefaultRateLimitConfig()))
	}

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "comms-gateway",
			"sessions": sessionManager.ActiveSessions(),
			"time":     time.Now().Unix(),
		})
	})

	routes.Setup(router, commsHandler, jwtManager)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down...")

	sessionManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		pkglogger.Error("Forced shutdown: %v", err)
	}
	pkglogger.Info("Server stopped")
}

// splitAndTrim splits a string by delimiter and trims spaces
func splitAndTrim(s string, delimiter string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, delimiter) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
