package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/coffeeshop-backend/api/routes"
	"github.com/angelmondragon/coffeeshop-backend/internal/addresses"
	"github.com/angelmondragon/coffeeshop-backend/internal/broadcast"
	"github.com/angelmondragon/coffeeshop-backend/internal/catalog"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments/vnpay"
	"github.com/angelmondragon/coffeeshop-backend/internal/pricing"
	"github.com/angelmondragon/coffeeshop-backend/internal/shipping"
	"github.com/angelmondragon/coffeeshop-backend/internal/stock"
	"github.com/angelmondragon/coffeeshop-backend/internal/stores"
	"github.com/angelmondragon/coffeeshop-backend/internal/users"
	"github.com/angelmondragon/coffeeshop-backend/internal/vouchers"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/idempotency"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/migrate"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(bootCtx, "redis not configured; replay guard, idempotency and broadcasts disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	loc := cfg.VNPay.Location()

	notifier, err := buildNotifier(cfg, redisClient, logg)
	if err != nil {
		return err
	}

	ledger, err := stock.NewLedger(stock.NewRepository(conn), metrics.NewStockMetrics(registry))
	if err != nil {
		return err
	}

	voucherRepo := vouchers.NewRepository(conn)
	voucherSvc, err := vouchers.NewService(voucherRepo, loc, time.Now)
	if err != nil {
		return err
	}

	storeRepo := stores.NewRepository(conn)
	rates := shipping.Rates{
		FirstKm:      cfg.Shipping.FirstKmRate,
		PerKm:        cfg.Shipping.PerKmRate,
		MaxRadiusKm:  cfg.Shipping.MaxRadiusKm,
		RoundingStep: cfg.Shipping.RoundingStep,
	}
	shippingSvc, err := shipping.NewService(storeRepo, rates)
	if err != nil {
		return err
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)
	lifecycle, err := orders.NewLifecycle(ordersRepo, emitter, ledger)
	if err != nil {
		return err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Tx:              dbClient,
		Repo:            ordersRepo,
		Users:           users.NewRepository(conn),
		Addresses:       addresses.NewRepository(conn),
		Stores:          storeRepo,
		Catalog:         catalog.NewRepository(conn),
		VoucherRepo:     voucherRepo,
		Vouchers:        voucherSvc,
		Ledger:          ledger,
		Pricing:         pricing.NewEngine(cfg.Pricing.TaxRate),
		Rates:           rates,
		Lifecycle:       lifecycle,
		Outbox:          emitter,
		Notifier:        notifier,
		Logger:          logg,
		RestockOnCancel: cfg.FeatureFlags.RestockOnCancel,
	})
	if err != nil {
		return err
	}

	gateway, err := vnpay.NewClient(cfg.VNPay)
	if err != nil {
		return err
	}

	var guard payments.ReplayGuard
	if redisClient != nil {
		manager, err := idempotency.NewManager(redisClient, cfg.VNPay.ReplayGuardTTL)
		if err != nil {
			return err
		}
		guard = manager
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Tx:               dbClient,
		Orders:           ordersRepo,
		Lifecycle:        lifecycle,
		Outbox:           emitter,
		Gateway:          gateway,
		Guard:            guard,
		Notifier:         notifier,
		Metrics:          metrics.NewPaymentMetrics(registry),
		Logger:           logg,
		RestockOnFailure: cfg.FeatureFlags.RestockOnCancel,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, ordersSvc, paymentsSvc, shippingSvc, ledger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(bootCtx, shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildNotifier selects the realtime status broadcaster. Without redis the
// notifier still runs but discards changes.
func buildNotifier(cfg *config.Config, redisClient *redis.Client, logg *logger.Logger) (*broadcast.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Broadcast.Driver)) {
	case "redis":
		if redisClient == nil {
			return broadcast.NewNotifier(broadcast.Discard{}, logg), nil
		}
		b, err := broadcast.NewRedisBroadcaster(redisClient, cfg.Broadcast.Channel)
		if err != nil {
			return nil, err
		}
		return broadcast.NewNotifier(b, logg), nil
	case "", "none":
		return broadcast.NewNotifier(broadcast.Discard{}, logg), nil
	default:
		return nil, errors.New("unknown broadcast driver " + cfg.Broadcast.Driver)
	}
}
