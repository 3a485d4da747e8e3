package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/lfmorais/unimarket/internal/auth"
	"github.com/lfmorais/unimarket/internal/cart"
	"github.com/lfmorais/unimarket/internal/catalog"
	"github.com/lfmorais/unimarket/internal/checkout"
	"github.com/lfmorais/unimarket/internal/config"
	"github.com/lfmorais/unimarket/internal/domain"
	"github.com/lfmorais/unimarket/internal/httpx"
	"github.com/lfmorais/unimarket/internal/messaging"
	"github.com/lfmorais/unimarket/internal/orders"
	"github.com/lfmorais/unimarket/internal/payments"
	"github.com/lfmorais/unimarket/internal/quotes"
	"github.com/lfmorais/unimarket/internal/ratelimit"
	"github.com/lfmorais/unimarket/internal/redisx"
	"github.com/lfmorais/unimarket/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.ServiceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

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

	orderEvents := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicOrderCreated, cfg.ServiceName)
	defer func() { _ = orderEvents.Close() }()
	quoteEvents := messaging.NewProducer(cfg.KafkaBrokers, domain.TopicQuoteChanged, cfg.ServiceName)
	defer func() { _ = quoteEvents.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	paymentClient := payments.NewClient(cfg.PaymentServiceURL, httpClient)

	fees := checkout.FeePolicy{
		PlatformFeeBps:         cfg.PlatformFeeBps,
		CampusDeliveryFeeCents: cfg.CampusDeliveryFeeCents,
	}

	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	checkoutService := checkout.NewService(checkout.NewRepository(db), orderEvents, fees, cfg.SessionTTL, logger)
	orderService := orders.NewService(orders.NewRepository(db), logger)
	quoteService := quotes.NewService(quotes.NewRepository(db), paymentClient, quoteEvents,
		cfg.QuoteResponseWindow, cfg.QuoteValidity, logger)

	catalogHandler := catalog.NewHandler(catalogRepo, logger)
	cartHandler := cart.NewHandler(cartRepo, catalogRepo, logger)
	checkoutHandler := checkout.NewHandler(checkoutService, logger)
	orderHandler := orders.NewHandler(orderService, logger)
	quoteHandler := quotes.NewHandler(quoteService, logger)

	api := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		api.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /listings", catalogHandler.HandleList)
	route("GET /listings/{id}", catalogHandler.HandleGet)

	route("GET /cart", cartHandler.HandleGet)
	route("POST /cart/items", cartHandler.HandleAddItem)
	route("DELETE /cart/items/{listingId}", cartHandler.HandleRemoveItem)
	route("DELETE /cart", cartHandler.HandleClear)

	route("POST /checkout/session/cart", checkoutHandler.HandleCreateFromCart)
	route("POST /checkout/session/direct", checkoutHandler.HandleCreateDirect)
	route("GET /checkout/session", checkoutHandler.HandleActive)
	route("GET /checkout/session/{sessionId}", checkoutHandler.HandleGet)
	route("PUT /checkout/session/{sessionId}", checkoutHandler.HandleUpdate)
	route("DELETE /checkout/session/{sessionId}", checkoutHandler.HandleCancel)
	route("POST /checkout/confirm/{sessionId}", checkoutHandler.HandleConfirm)

	route("GET /orders", orderHandler.HandleList)
	route("GET /orders/{orderId}", orderHandler.HandleGet)
	route("PATCH /orders/{orderId}/status", orderHandler.HandleUpdateStatus)

	route("POST /quotes", quoteHandler.HandleCreate)
	route("GET /quotes", quoteHandler.HandleList)
	route("GET /quotes/{quoteId}", quoteHandler.HandleGet)
	route("PATCH /quotes/{quoteId}/respond", quoteHandler.HandleRespond)
	route("PATCH /quotes/{quoteId}/accept", quoteHandler.HandleAccept)
	route("PATCH /quotes/{quoteId}/reject", quoteHandler.HandleReject)
	route("PATCH /quotes/{quoteId}/cancel", quoteHandler.HandleCancel)
	route("PATCH /quotes/{quoteId}/start", quoteHandler.HandleStart)
	route("PATCH /quotes/{quoteId}/complete", quoteHandler.HandleComplete)

	var protected http.Handler = api
	protected = ratelimit.Middleware(rdb, cfg.RateLimit, cfg.RateLimitWindow, logger)(protected)
	protected = auth.Middleware(cfg.JWTSecret, logger)(protected)

	root := http.NewServeMux()
	root.Handle("GET /healthz", healthz(db, logger))
	root.Handle("GET /metrics", metricsHandler)
	root.Handle("/", protected)

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(root, cfg.ServiceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func healthz(db interface{ PingContext(context.Context) error }, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			httpx.Fail(w, logger, http.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
			return
		}
		httpx.OK(w, logger, http.StatusOK, "ok", nil)
	}
}
