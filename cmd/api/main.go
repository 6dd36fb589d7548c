package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/coursevault/coursevault-backend/api/controllers"
	"github.com/coursevault/coursevault-backend/api/routes"
	"github.com/coursevault/coursevault-backend/internal/access"
	"github.com/coursevault/coursevault-backend/internal/activation"
	"github.com/coursevault/coursevault-backend/internal/bindings"
	"github.com/coursevault/coursevault-backend/internal/fingerprint"
	"github.com/coursevault/coursevault-backend/internal/orders"
	"github.com/coursevault/coursevault-backend/internal/payments"
	"github.com/coursevault/coursevault-backend/pkg/config"
	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/metrics"

	pkgredis "github.com/coursevault/coursevault-backend/pkg/redis"
)

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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

	var (
		store       kv.Store
		redisClient *pkgredis.Client
		dbStore     *kv.Database
		closers     []func() error
	)

	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		redisClient, err = pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)

		store, err = kv.NewRedis(redisClient)
		if err != nil {
			logg.Error(ctx, "failed to build redis store", err)
			os.Exit(1)
		}
	case config.StoreBackendDatabase:
		dbStore, err = kv.NewDatabase(ctx, cfg.DB)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbStore.Close)
		store = dbStore
	default:
		store = kv.NewMemory()
	}

	// The idempotency guard rides on redis even when persistence does
	// not. Without redis the guard is disabled.
	if redisClient == nil && (cfg.Redis.URL != "" || cfg.Redis.Address != "") {
		redisClient, err = pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, redisClient.Close)
	}

	defer func() {
		var errs error
		for _, close := range closers {
			errs = multierr.Append(errs, close())
		}
		if errs != nil {
			logg.Error(context.Background(), "error closing backends", errs)
		}
	}()

	registry := prometheus.NewRegistry()
	licensingMetrics := metrics.NewLicensingMetrics(registry)

	namespace := cfg.Store.Namespace

	bindingStore, err := bindings.NewStore(ctx, store, namespace+":bindings")
	if err != nil {
		logg.Error(ctx, "failed to load binding store", err)
		os.Exit(1)
	}

	ordersRepo, err := orders.NewRepository(ctx, store, namespace+":orders")
	if err != nil {
		logg.Error(ctx, "failed to load order repository", err)
		os.Exit(1)
	}

	ledger, err := payments.NewLedger(ctx, store, namespace+":payments", ordersRepo)
	if err != nil {
		logg.Error(ctx, "failed to load payment ledger", err)
		os.Exit(1)
	}

	redeemer, err := activation.NewRedeemer(ctx, store, namespace+":activation_codes", cfg.Activation.SeedCodes)
	if err != nil {
		logg.Error(ctx, "failed to load activation codes", err)
		os.Exit(1)
	}

	verifier, err := access.NewVerifier(bindingStore, licensingMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create access verifier", err)
		os.Exit(1)
	}

	defaultAmount, err := decimal.NewFromString(cfg.Payment.DefaultAmount)
	if err != nil {
		logg.Error(ctx, "invalid default amount", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, ledger, bindingStore, redeemer, licensingMetrics, logg, defaultAmount)
	if err != nil {
		logg.Error(ctx, "failed to create order service", err)
		os.Exit(1)
	}

	backends := map[string]controllers.Pinger{}
	if redisClient != nil {
		backends["redis"] = redisClient
	}
	if dbStore != nil {
		backends["database"] = dbStore
	}

	var idemStore pkgredis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"backend": cfg.Store.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			backends,
			idemStore,
			fingerprint.NewProvider(),
			verifier,
			bindingStore,
			ordersSvc,
			ledger,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
