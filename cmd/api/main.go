package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"icredit2.org/internal/audit"
	"icredit2.org/internal/config"
	"icredit2.org/internal/directory"
	"icredit2.org/internal/httpapi"
	"icredit2.org/internal/identity"
	"icredit2.org/internal/obs"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	audit.SetLogger(logger)

	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := config.TokenSecret()
	if secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}
	dsn := config.DatabaseURL()
	if dsn == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	tokens, err := identity.NewTokenService(secret,
		identity.WithAccessTTL(config.TokenTTL()),
		identity.WithRefreshTTL(config.RefreshTokenTTL()),
	)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	store := identity.NewPGStore(db)
	resolver, err := identity.NewResolver(config.IdentityMode(), store)
	if err != nil {
		logger.Fatal("resolver", zap.Error(err))
	}
	authSvc, err := identity.NewService(store, tokens, resolver, logger)
	if err != nil {
		logger.Fatal("identity service", zap.Error(err))
	}
	dirSvc, err := directory.NewService(directory.NewPGCityStore(db), store, logger)
	if err != nil {
		logger.Fatal("directory service", zap.Error(err))
	}

	api := httpapi.New(authSvc, dirSvc,
		httpapi.WithDB(db),
		httpapi.WithLogger(logger),
		httpapi.WithRateLimit(config.RateLimitRPS(), config.RateLimitBurst()),
		httpapi.WithSecureCookies(config.CookieSecure()),
	)

	srv := &http.Server{
		Addr:              config.ServerAddr(),
		Handler:           api.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting identity api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("identity_mode", config.IdentityMode()),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = db.Close()
	logger.Info("stopped")
}
