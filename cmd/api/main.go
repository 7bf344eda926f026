package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"jobmail/internal/app"
	"jobmail/internal/config"
	"jobmail/internal/handler"
	"jobmail/internal/httpserver"
	"jobmail/pkg/logger"
	"jobmail/pkg/mq"
	"jobmail/pkg/outbox"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("App initialization failed", zap.Error(err))
	}
	defer a.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Outbox dispatcher: application.recorded -> RabbitMQ
	dispatcher := outbox.NewDispatcher(a.Outbox, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Start(ctx)
	}()

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:          handler.NewAuthHandler(a.Auth, log),
		Ingest:        handler.NewIngestHandler(a.Ingest, log),
		Data:          handler.NewDataHandler(a.StatsSvc, a.Export, log),
		VerifySession: a.Auth.VerifySession,
		DB:            a.DB,
		Publisher:     publisher,
	})
	srv := router.Server(cfg.Server.Port)

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	<-dispatchDone
}
