package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-timeout-service/internal/api"
	"task-timeout-service/internal/config"
	"task-timeout-service/internal/db"
	"task-timeout-service/internal/dispatch"
	"task-timeout-service/internal/kafka"
	"task-timeout-service/internal/ledger"
	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/providers"
	"task-timeout-service/internal/scanner"
	"task-timeout-service/internal/ws"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit (cron mode)")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Build delivery channels; an unconfigured channel is skipped with a
	// warning and dispatching degrades to a no-op when none remain.
	var senders []dispatch.Sender
	if push, err := providers.NewPushSender(cfg, logger); err != nil {
		logger.Warnf("Push channel disabled: %v", err)
	} else {
		senders = append(senders, push)
	}
	if tg, err := providers.NewTelegramSender(cfg, logger); err != nil {
		logger.Infof("Telegram channel disabled: %v", err)
	} else {
		senders = append(senders, tg)
	}

	wsManager := ws.NewManager(logger)
	led := ledger.New(dbConn, logger)
	dispatcher := dispatch.New(dbConn, dbConn, led, senders, wsManager, logger)
	sc := scanner.New(dbConn, led, dispatcher, dbConn, logger)

	if *once {
		summary, err := sc.Run(context.Background(), time.Now())
		if err != nil {
			logger.Errorf("Sweep failed: %v", err)
			fmt.Println(err.Error())
			os.Exit(1)
		}
		fmt.Println(summary.String())
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic sweep
	go func() {
		ticker := time.NewTicker(cfg.Scan.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := sc.Run(ctx, now); err != nil {
					logger.Errorf("Sweep failed: %v", err)
				}
			}
		}
	}()

	// Task event consumer (optional)
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, dbConn, logger)
		go consumer.Start(ctx)
	}

	// Start API server
	handler := api.NewHandler(dbConn, logger, sc, wsManager)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if consumer != nil {
		consumer.Close()
	}
	logger.Infof("Service stopped")
}
