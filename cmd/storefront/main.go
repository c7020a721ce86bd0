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

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := otelruntime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", telemetry.WithSearchPath(postgresURL, "storefront"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	orderMetrics, err := telemetry.NewOrderMetrics()
	if err != nil {
		logger.Error("failed to create order metrics", "error", err)
		os.Exit(1)
	}

	serviceOpts := []orders.Option{orders.WithMetrics(orderMetrics)}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")

		placedProducer := messaging.NewProducer(brokers, messaging.TopicOrderPlaced)
		defer func() { _ = placedProducer.Close() }()
		serviceOpts = append(serviceOpts, orders.WithPlacedPublisher(placedProducer))

		cancelledProducer := messaging.NewProducer(brokers, messaging.TopicOrderCancelled)
		defer func() { _ = cancelledProducer.Close() }()
		serviceOpts = append(serviceOpts, orders.WithCancelledPublisher(cancelledProducer))
	}

	if paymentURL := os.Getenv("PAYMENT_SERVICE_URL"); paymentURL != "" {
		paymentClient := payment.NewClient(paymentURL, &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
		serviceOpts = append(serviceOpts, orders.WithPaymentGateway(paymentClient))
	}

	pricer := pricing.NewCalculator(pricing.DefaultConfig())

	orderRepo := orders.NewRepository(db)
	orderService := orders.NewService(orderRepo, pricer, logger, serviceOpts...)
	orderHandler := orders.NewHandler(orderService, logger)

	cartHandler := cart.NewHandler(cart.NewRepository(db), pricer, logger)
	stockHandler := inventory.NewHandler(inventory.NewRepository(db), logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cart", route(identity.Required(cartHandler.HandleGet)))
	mux.HandleFunc("POST /api/cart/items", route(identity.Required(cartHandler.HandleAddItem)))
	mux.HandleFunc("PUT /api/cart/items/{productId}", route(identity.Required(cartHandler.HandleUpdateItem)))
	mux.HandleFunc("DELETE /api/cart/items/{productId}", route(identity.Required(cartHandler.HandleRemoveItem)))
	mux.HandleFunc("DELETE /api/cart", route(identity.Required(cartHandler.HandleClear)))
	mux.HandleFunc("POST /api/cart/merge", route(identity.Required(cartHandler.HandleMerge)))

	mux.HandleFunc("POST /api/orders", route(identity.Required(orderHandler.HandleCheckout)))
	mux.HandleFunc("GET /api/orders", route(identity.Required(orderHandler.HandleList)))
	mux.HandleFunc("GET /api/orders/{orderNumber}", route(identity.Required(orderHandler.HandleGet)))
	mux.HandleFunc("POST /api/orders/{orderNumber}/cancel", route(identity.Required(orderHandler.HandleCancel)))
	mux.HandleFunc("POST /api/orders/{orderNumber}/return", route(identity.Required(orderHandler.HandleReturn)))
	mux.HandleFunc("PATCH /api/orders/{orderNumber}/status", route(identity.RequireAdmin(orderHandler.HandleUpdateStatus)))
	mux.HandleFunc("POST /api/orders/{orderNumber}/refund", route(identity.RequireAdmin(orderHandler.HandleRefund)))

	mux.HandleFunc("GET /api/stock", route(identity.RequireAdmin(stockHandler.HandleListStock)))
	mux.HandleFunc("GET /api/stock/{productId}", route(identity.RequireAdmin(stockHandler.HandleGetStock)))
	mux.HandleFunc("POST /api/stock/{productId}/restock", route(identity.RequireAdmin(stockHandler.HandleRestock)))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "storefront",
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
		logger.Info("starting storefront service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func route(h http.HandlerFunc) http.HandlerFunc {
	return telemetry.WithHTTPRoute(h)
}
