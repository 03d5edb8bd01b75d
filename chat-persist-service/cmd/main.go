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

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/consumer"
	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/cassandra"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
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
	logger.Info().Str("store", cfg.Store.Driver).Str(pkglog.FieldDriver, cfg.Queue.Driver).Msg("starting chat persist service")

	// Initialize message store
	var store repository.MessageStore
	switch cfg.Store.Driver {
	case config.StoreCassandra:
		session, err := cassandra.NewSession(cfg.Cassandra)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		defer session.Close()

		cs := repository.NewCassandraMessageStore(session)
		if cfg.Store.AutoMigrate {
			if err := cs.EnsureSchema(context.Background()); err != nil {
				logger.Fatal().Err(err).Msg("failed to create cassandra schema")
			}
		}
		store = cs
		logger.Info().Str("keyspace", cfg.Cassandra.Keyspace).Strs("hosts", cfg.Cassandra.Hosts).Msg("connected to cassandra")

	case config.StoreGorm, "":
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close(db)

		if cfg.Store.AutoMigrate {
			if err := schema.Migrate(db); err != nil {
				logger.Fatal().Err(err).Msg("failed to auto-migrate")
			}
		}
		store = repository.NewGormMessageStore(db)
		logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	default:
		logger.Fatal().Str("store", cfg.Store.Driver).Msg("unknown store driver")
	}

	queueCfg := cfg.Queue
	cons := consumer.NewConsumer(
		func() (queue.Consumer, error) { return queue.NewConsumer(queueCfg) },
		store,
		consumer.Config{
			ReconnectDelay: cfg.Consumer.ReconnectDelay,
			RetryDelay:     cfg.Consumer.RetryDelay,
			InsertTimeout:  cfg.Consumer.InsertTimeout,
		},
	)

	// Start health HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheck)
	mux.HandleFunc("/healthz", healthCheck)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      pkglog.HTTPMiddleware(logger)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Start consumer in background
	ctx, cancel := context.WithCancel(pkglog.WithLogger(context.Background(), logger))

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down chat persist service")
	cancel()

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer shutdown timed out")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info().Msg("chat persist service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
