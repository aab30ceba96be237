package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizbank/internal/app"
	"quizbank/internal/db"
	"quizbank/internal/media"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	envErr := godotenv.Load()

	cfg := app.LoadConfig()
	log := app.NewLogger(cfg.LogLevel, os.Stdout)
	if envErr != nil {
		log.Debug("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.OpenPostgres(ctx, cfg.DBDSN, db.PostgresConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		log.WithError(err).Error("database error")
		os.Exit(1)
	}
	defer dbConn.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbConn); err != nil {
			log.WithError(err).Error("migration failed")
			os.Exit(1)
		}
	}

	deps := app.Deps{Config: cfg, DB: dbConn, Log: log}
	if cfg.MediaConfigured() {
		deps.Media = media.NewSupabaseStore(media.SupabaseConfig{
			URL:    cfg.SupabaseURL,
			Key:    cfg.SupabaseKey,
			Bucket: cfg.SupabaseBucket,
		})
	} else {
		log.Warn("SUPABASE_URL/SUPABASE_KEY not set, image uploads are disabled")
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		deps.Limiter = app.NewRedisRateLimiter(rdb, cfg.AuthRateLimitPerMin, time.Minute)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).WithField("env", cfg.AppEnv).Info("quizbank listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
		log.Info("server stopped")
	}
}
