package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"salonledger/backend/internal/cache"
	"salonledger/backend/internal/config"
	"salonledger/backend/internal/httpapi"
	"salonledger/backend/internal/lock"
	"salonledger/backend/internal/logger"
	"salonledger/backend/internal/service"
	"salonledger/backend/internal/store"
	"salonledger/backend/internal/store/memory"
	pgstore "salonledger/backend/internal/store/postgres"
	"salonledger/backend/internal/whatsapp"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.ForEnvironment(cfg.Env, cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal("invalid security configuration", zap.Error(err))
	}
	location, err := cfg.Location()
	if err != nil {
		log.Fatal("invalid TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := migrateUp(cfg.DatabaseURL, log); err != nil {
				log.Fatal("apply migrations", zap.Error(err))
			}
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info("repository: postgres")
	} else {
		if cfg.SeedOwnerPassword == "" {
			log.Warn("SEED_OWNER_PASSWORD not set, seeded owner uses the development default",
				zap.String("email", cfg.SeedOwnerEmail))
		}
		seeded, err := memory.NewSeeded(cfg.SeedOwnerEmail, cfg.SeedOwnerPassword)
		if err != nil {
			log.Fatal("seed in-memory store", zap.Error(err))
		}
		repo = seeded
		log.Info("repository: in-memory", zap.String("owner", cfg.SeedOwnerEmail))
	}

	var revoked cache.RevocationList = cache.NewMemoryRevocationList()
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, using in-process revocation and locks", zap.Error(err))
			_ = client.Close()
		} else {
			revoked = cache.NewRedisRevocationList(client)
			locker = lock.NewRedisLocker(client)
			closers = append(closers, client.Close)
			log.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		log.Info("cache: in-process")
	}

	svc := service.New(repo, locker, whatsapp.New(cfg.PhoneRegion, cfg.SalonName), log, service.Options{
		EditPolicy:          cfg.EditPolicy,
		EditRecentLimit:     cfg.EditRecentLimit,
		EditWindow:          cfg.EditWindow(),
		DayWindow:           cfg.DayWindow,
		RecentBillsInWindow: cfg.RecentBillsInWindow,
		Location:            location,
		WeekStart:           cfg.Weekday(),
	})
	auth := httpapi.NewAuthManager(cfg.JWTSecret, cfg.TokenTTL(), repo, revoked, log)
	api := httpapi.New(svc, auth, log, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		SecureCookies: cfg.Env == "production",
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("salon backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

func migrateUp(databaseURL string, log *zap.Logger) error {
	m, err := pgstore.NewMigrator(databaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters")
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return nil
}
