package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	mqcontracts "jobmail/contracts/mq"
	"jobmail/internal/config"
	"jobmail/internal/mqhandler"
	"jobmail/internal/repository"
	"jobmail/internal/service"
	"jobmail/pkg/db"
	"jobmail/pkg/logger"
	"jobmail/pkg/mq"
	"jobmail/pkg/outbox"
	"jobmail/pkg/redis"
	"jobmail/pkg/util"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	log.Info("Starting worker service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	retryCounter := util.NewRetryCounter(rdb, cfg.Worker.RetryTTL)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	apps := repository.NewApplicationRepository(dbConn, outbox.NewRepository(dbConn))
	stats := service.NewStatsService(apps, repository.NewStatisticsRepository(dbConn))

	statsHandler := mqhandler.NewApplicationRecordedHandler(stats, retryCounter, cfg.Worker.MaxRetries, log)

	log.Info("Init consumer", zap.String("queue", cfg.Worker.Queue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.Worker.Queue, mqcontracts.RoutingKeyApplicationRecorded, log)
	if err != nil {
		log.Fatal("Stats consumer init failed", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(statsHandler.Handle)

	log.Info("Worker running")
	if err := consumer.StartConsuming(ctx); err != nil {
		log.Error("Stats consumer stopped", zap.Error(err))
	}
}
