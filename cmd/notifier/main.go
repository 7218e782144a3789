package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/orders-api/internal/messaging"
	"github.com/joao-fontenele/orders-api/internal/notifier"
	"github.com/joao-fontenele/orders-api/internal/orders"
	"github.com/joao-fontenele/orders-api/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	brokers := strings.Split(kafkaBrokers, ",")

	// Optional: notifications are only logged when unset.
	webhookURL := os.Getenv("WEBHOOK_URL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "notifier", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	handler := notifier.NewHandler(webhookURL, httpClient, logger)

	createdConsumer := messaging.NewConsumer(brokers, orders.TopicOrderCreated, "notifier")
	defer func() { _ = createdConsumer.Close() }()

	shippedConsumer := messaging.NewConsumer(brokers, orders.TopicOrderShipped, "notifier")
	defer func() { _ = shippedConsumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notifier", "brokers", brokers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return createdConsumer.Consume(groupCtx, handler.HandleOrderCreated)
	})
	group.Go(func() error {
		return shippedConsumer.Consume(groupCtx, handler.HandleOrderShipped)
	})

	if err := group.Wait(); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumers stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
