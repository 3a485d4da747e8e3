package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lfmorais/unimarket/internal/checkout"
	"github.com/lfmorais/unimarket/internal/config"
	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/messaging"
	"github.com/lfmorais/unimarket/internal/payments"
	"github.com/lfmorais/unimarket/internal/quotes"
	"github.com/lfmorais/unimarket/internal/redisx"
	"github.com/lfmorais/unimarket/internal/telemetry"
	"github.com/lfmorais/unimarket/internal/worker"
)

const serviceVersion = "0.1.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "unimarket-worker", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	dedup := redisx.NewDedupStore(rdb, 24*time.Hour)
	notifications := worker.NewNotificationHandler(cfg.NotifierURL, httpClient, dedup, logger)

	orderConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderCreated, "order-notifications")
	defer func() { _ = orderConsumer.Close() }()
	quoteConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicQuoteChanged, "quote-notifications")
	defer func() { _ = quoteConsumer.Close() }()

	// The sweeper shares the lifecycle services with the API so expiry runs
	// through the same guarded transitions.
	orderEvents := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderCreated, "unimarket-worker")
	defer func() { _ = orderEvents.Close() }()
	quoteEvents := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicQuoteChanged, "unimarket-worker")
	defer func() { _ = quoteEvents.Close() }()

	fees := checkout.FeePolicy{
		PlatformFeeBps:         cfg.PlatformFeeBps,
		CampusDeliveryFeeCents: cfg.CampusDeliveryFeeCents,
	}
	checkoutService := checkout.NewService(checkout.NewRepository(db), orderEvents, fees, cfg.SessionTTL, logger)
	quoteService := quotes.NewService(quotes.NewRepository(db), payments.NewClient(cfg.PaymentServiceURL, httpClient),
		quoteEvents, cfg.QuoteResponseWindow, cfg.QuoteValidity, logger)

	sweeper := worker.NewSweeper(cfg.SweepInterval, 100, logger)
	sweeper.Register("checkout-sessions", checkoutService.ExpireDue)
	sweeper.Register("quote-requests", quoteService.ExpireDue)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting worker", "brokers", cfg.KafkaBrokers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	consume := func(c *messaging.Consumer, handler messaging.Handler, name string) {
		defer wg.Done()
		if err := c.Consume(ctx, handler); err != nil {
			if ctx.Err() == context.Canceled {
				logger.Info("consumer stopped", "consumer", name)
				return
			}
			logger.Error("consumer error", "consumer", name, "error", err)
			cancel()
		}
	}

	wg.Add(2)
	go consume(orderConsumer, notifications.HandleOrderCreated, "order-notifications")
	go consume(quoteConsumer, notifications.HandleQuoteChanged, "quote-notifications")

	wg.Wait()
}
