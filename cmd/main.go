package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"monitoring-service/internal/api"
	"monitoring-service/internal/config"
	"monitoring-service/internal/controlplane"
	"monitoring-service/internal/db"
	"monitoring-service/internal/kafka"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/metrics"
	"monitoring-service/internal/models"
	"monitoring-service/internal/notify"
	"monitoring-service/internal/recovery"
	"monitoring-service/internal/registry"
	"monitoring-service/internal/scheduler"
	"monitoring-service/internal/status"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Validate targets
	reg, err := registry.New(cfg.Targets)
	if err != nil {
		logger.Errorf("Invalid target configuration: %v", err)
		log.Fatalf("Invalid target configuration: %v", err)
	}
	logger.Infof("Loaded %d targets (%d critical)", reg.Len(), len(reg.Critical()))

	// Connect to the metrics sink
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduler and read-side aggregator
	sched, err := scheduler.New(reg, logger)
	if err != nil {
		log.Fatalf("Scheduler init failed: %v", err)
	}
	agg := status.New(sched, reg.Critical())

	// Control plane: recovery bindings, notifier, escalation machine
	actions, err := recovery.Actions(reg.Targets(), logger)
	if err != nil {
		log.Fatalf("Invalid recovery bindings: %v", err)
	}
	notifier := buildNotifier(cfg, logger)

	hub := api.NewHub(logger)
	cpEvents := make(chan models.TransitionEvent, 128)
	go func() {
		defer close(cpEvents)
		for ev := range sched.Events() {
			hub.Broadcast(ev)
			select {
			case cpEvents <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	controller := controlplane.New(controlplane.Config{
		GracePeriod: cfg.ControlPlane.GracePeriod,
		MaxRetries:  cfg.ControlPlane.MaxRetries,
	}, reg.Targets(), sched, actions, notifier, cpEvents, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.Run(ctx)
	}()

	// Metrics relay: collector -> producer -> broker -> consumer -> sink
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Producer.BufferSize, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		producer.Run(ctx)
	}()

	collector := metrics.NewCollector(agg, producer, cfg.Producer.Interval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Run(ctx)
	}()

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		Topic:           cfg.Kafka.Topic,
		GroupID:         cfg.Kafka.GroupID,
		DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		MaxRetries:      cfg.Consumer.MaxRetries,
		RetryDelay:      cfg.Consumer.RetryDelay,
		DedupWindow:     cfg.Consumer.DedupWindow,
	}, dbConn, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	sched.Start(ctx)

	// Start API server
	handler := api.NewHandler(agg, controller, dbConn, hub, logger)
	router := api.NewRouter(logger, handler)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}

	sched.Wait()
	wg.Wait()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Consumer close failed: %v", err)
	}
	if err := producer.Close(); err != nil {
		logger.Errorf("Producer close failed: %v", err)
	}
	hub.Close()
	logger.Infof("Service stopped")
}

// buildNotifier assembles the operator channels from config, falling
// back to log-only when none is configured.
func buildNotifier(cfg config.Config, logger *logging.Logger) controlplane.Notifier {
	var notifiers []notify.Notifier
	if cfg.Email.SMTPServer != "" && cfg.Email.To != "" {
		notifiers = append(notifiers, &notify.Email{
			SMTPServer: cfg.Email.SMTPServer,
			SMTPPort:   cfg.Email.SMTPPort,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			To:         cfg.Email.To,
		})
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		notifiers = append(notifiers, notify.NewTelegram(
			cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.RatePerSecond, logger))
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, &notify.Log{Logger: logger})
	}
	return &notify.Multi{Notifiers: notifiers}
}
