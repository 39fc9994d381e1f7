package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/addressbook"
	"scrapPickup/internal/admin"
	"scrapPickup/internal/auth"
	"scrapPickup/internal/config"
	"scrapPickup/internal/db"
	grpcserver "scrapPickup/internal/grpc"
	"scrapPickup/internal/httpapi"
	"scrapPickup/internal/identity"
	"scrapPickup/internal/lifecycle"
	"scrapPickup/internal/logging"
	"scrapPickup/internal/loyalty"
	"scrapPickup/internal/rates"
	"scrapPickup/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	log.Infof("Configuration loaded: %v", cfg)

	// Open DB
	d, err := db.Open(cfg.Database.Path, db.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.WithError(err).Error("close db")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	admins := repository.NewAdminRepository(d)
	orders := repository.NewOrderRepository(d)
	progress := repository.NewLoyaltyRepository(d)
	rateRepo := repository.NewRateRepository(d)
	addresses := repository.NewAddressRepository(d)

	for _, a := range cfg.Admins() {
		if err := admins.Ensure(ctx, a.UID, a.Username); err != nil {
			log.WithError(err).WithField("uid", a.UID).Fatal("seed admin")
		}
	}

	rateSvc := rates.NewService(rateRepo, log)
	if cfg.SeedRates {
		res, err := rateSvc.Initialize(ctx, "system")
		if err != nil {
			log.WithError(err).Fatal("seed rates")
		}
		log.WithField("created", res.Created).Info("default rates seeded")
	}

	directory, closeDirectory := newDirectory(cfg, log)
	defer closeDirectory()

	loyaltySvc := loyalty.NewService(d, progress, addresses, orders, log)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	limiter := httpapi.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(ctx, time.Minute)

	handler := httpapi.NewRouter(httpapi.Deps{
		DB:        d,
		Orders:    lifecycle.NewService(orders, loyaltySvc, log),
		Loyalty:   loyaltySvc,
		Rates:     rateSvc,
		Addresses: addressbook.NewService(addresses, log),
		Admin: admin.NewService(orders, progress, directory, admin.Options{
			LookupTimeout: cfg.Identity.Timeout,
			Parallelism:   cfg.Identity.Parallelism,
		}, log),
		Verifier: verifier,
		Admins:   admins,
		Limiter:  limiter,
		Origins:  cfg.AllowedOrigins(),
		Log:      log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTP.Address)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
			stop()
		}
	}()

	// Start gRPC
	shutdownGRPC, err := grpcserver.StartGRPC(cfg.GRPC.Address, verifier, d, log)
	if err != nil {
		log.WithError(err).Fatal("start grpc")
	}
	log.Infof("gRPC server listening on %s", cfg.GRPC.Address)

	// Wait for signal
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := shutdownGRPC(shutdownCtx); err != nil {
		log.WithError(err).Error("grpc shutdown")
	}
}

// newDirectory picks the identity directory from configuration: HTTP when a
// provider is configured, cached through redis when REDIS_URL is set.
func newDirectory(cfg *config.Config, log logrus.FieldLogger) (identity.Directory, func()) {
	if cfg.Identity.BaseURL == "" {
		log.Warn("IDENTITY_BASE_URL not set; admin views will show placeholder names")
		return identity.NopDirectory{}, func() {}
	}
	var dir identity.Directory = identity.NewHTTPDirectory(cfg.Identity.BaseURL, cfg.Identity.Token, cfg.Identity.Timeout)
	if cfg.Redis.URL == "" {
		return dir, func() {}
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.WithError(err).Warn("invalid REDIS_URL; identity cache disabled")
		return dir, func() {}
	}
	rdb := redis.NewClient(opts)
	return identity.NewCachedDirectory(dir, identity.NewRedisCache(rdb), cfg.Identity.CacheTTL, log), func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("close redis")
		}
	}
}
