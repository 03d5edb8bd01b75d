package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/api-service/internal/config"
	"github.com/weiawesome/wes-io-chat/api-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/api-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/api-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/cassandra"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := schema.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize repositories
	userRepo := repository.NewGormUserRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)

	var messageRepo repository.MessageRepository
	switch cfg.History.Driver {
	case config.HistoryCassandra:
		session, err := cassandra.NewSession(cfg.Cassandra)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		defer session.Close()
		messageRepo = repository.NewCassandraMessageRepository(session)
		logger.Info().Str("keyspace", cfg.Cassandra.Keyspace).Msg("history served from cassandra")
	case config.HistoryGorm, "":
		messageRepo = repository.NewGormMessageRepository(db)
	default:
		logger.Fatal().Str(pkglog.FieldDriver, cfg.History.Driver).Msg("unknown history driver")
	}

	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}

	// Initialize services
	userService := service.NewUserService(userRepo, jwtManager)
	roomService := service.NewRoomService(roomRepo)
	historyService := service.NewHistoryService(roomRepo, messageRepo, service.HistoryConfig{
		DefaultLimit: cfg.History.DefaultLimit,
		MaxLimit:     cfg.History.MaxLimit,
		MaxOffset:    cfg.History.MaxOffset,
	})

	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	httpHandler := handler.NewHandler(userService, roomService, historyService, authMiddleware)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str(pkglog.FieldDriver, cfg.Database.Driver).Msg("api-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down api-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("api-service stopped")
}
