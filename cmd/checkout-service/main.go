package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quickbite/orderflow/internal/adapters/guard"
	"github.com/quickbite/orderflow/internal/adapters/memory"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/checkout"
	"github.com/quickbite/orderflow/internal/checkout/session"
	"github.com/quickbite/orderflow/internal/httpx"
	"github.com/quickbite/orderflow/internal/order"
	ordersqlite "github.com/quickbite/orderflow/internal/order/sqlite"
	promosqlite "github.com/quickbite/orderflow/internal/promo/sqlite"
	"github.com/quickbite/orderflow/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "checkout-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	orderRepo, err := ordersqlite.Open(getEnv("SQLITE_PATH", "orderflow.db"))
	if err != nil {
		slog.Error("failed to open order storage", "error", err)
		os.Exit(1)
	}
	defer orderRepo.Close()

	promoRepo, err := promosqlite.New(orderRepo.DB())
	if err != nil {
		slog.Error("failed to init promo storage", "error", err)
		os.Exit(1)
	}

	// Sessions are ephemeral; losing them on restart only forces the user to
	// re-create a checkout from the still-durable cart. Redis makes them
	// shared across processes.
	var sessions checkout.Store
	switch backend := getEnv("SESSION_STORE", "memory"); backend {
	case "redis":
		sessions = session.NewRedisStore(getEnv("REDIS_ADDR", "redis-cache:6379"))
	default:
		sessions = session.NewMemoryStore()
	}

	// The catalog, address book, fee calculator and cart store are external
	// services. The in-memory adapters stand in for their clients here;
	// collaborator calls still go through the circuit breaker the real
	// clients would.
	catalogMem := memory.NewCatalog()
	addresses := memory.NewAddressBook()
	feesMem := memory.NewFeeCalculator(getEnvFloat("DEFAULT_DELIVERY_FEE", 5.00))
	carts := memory.NewCartStore(catalogMem)

	catalog := guard.NewCatalog(catalogMem)
	fees := guard.NewFeeCalculator(feesMem)

	cfg := checkout.Config{
		SessionTTL:     getEnvDuration("CHECKOUT_SESSION_TTL", 15*time.Minute),
		TaxRate:        getEnvFloat("TAX_RATE", 0.09),
		PaymentMethods: strings.Split(getEnv("PAYMENT_METHODS", "card,cash,wallet"), ","),
	}

	checkoutSvc := checkout.NewService(
		sessions,
		cart.NewValidator(carts, catalog),
		carts, catalog, addresses, fees,
		promoRepo, orderRepo,
		cfg,
	)
	orderSvc := order.NewService(orderRepo, carts)

	router := httpx.NewRouter(httpx.NewHandler(checkoutSvc, orderSvc))

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "checkout-service"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("checkout service running", "addr", addr, "session_store", getEnv("SESSION_STORE", "memory"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	slog.Info("checkout service stopped")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("invalid float in env, using fallback", "key", key, "value", value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in env, using fallback", "key", key, "value", value)
	}
	return fallback
}
