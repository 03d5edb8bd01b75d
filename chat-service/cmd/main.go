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

	"github.com/gorilla/mux"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/auth"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/relay"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/idgen"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting chat service")

	// Session validator
	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	validator := auth.NewJWTValidator(jwtManager)

	// Membership gate
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	var gate auth.MembershipGate = auth.NewGormMembershipGate(db)
	if cfg.Membership.CacheEnabled {
		memberCache, err := cache.NewRedisMembershipCache(cfg.Redis, cfg.Membership.CachePrefix)
		if err != nil {
			logger.Warn().Err(err).Msg("membership cache unavailable, reading database directly")
		} else {
			defer memberCache.Close()
			gate = auth.NewCachedGate(gate, memberCache, cfg.Membership.CacheTTL)
			logger.Info().Str("address", cfg.Redis.Address).Msg("membership cache enabled")
		}
	}

	// Durable relay
	queuePublisher, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create queue publisher")
	}
	relayPublisher := relay.NewPublisher(queuePublisher, relay.Config{
		Workers:             cfg.Relay.Workers,
		BufferSize:          cfg.Relay.BufferSize,
		PublishTimeout:      cfg.Relay.PublishTimeout,
		PublishSystemEvents: cfg.Relay.PublishSystemEvents,
	})
	logger.Info().Str(pkglog.FieldDriver, cfg.Queue.Driver).Str(pkglog.FieldQueue, cfg.Queue.Name).Msg("relay publisher ready")

	ids, err := idgen.New(cfg.IDGen)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	registry := hub.NewRegistry(cfg.WebSocket.SendTimeout)
	chatSvc := service.NewChatService(registry, validator, gate, relayPublisher, ids)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHandler := handler.NewWSHandler(ctx, chatSvc, cfg.WebSocket)

	// Setup HTTP server
	router := mux.NewRouter()
	router.Use(pkglog.HTTPMiddleware(logger))
	wsHandler.RegisterRoutes(router)
	router.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/healthz", handler.HealthCheck).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("chat service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked sockets are not tracked by Shutdown; cancelling the base
	// context closes every live session with 1001. Their last relay
	// submissions must be queued before the relay drains.
	cancel()
	if err := wsHandler.Wait(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("sessions did not close before shutdown deadline")
	}

	if err := relayPublisher.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("relay did not drain")
	}

	logger.Info().Msg("chat service stopped")
}
