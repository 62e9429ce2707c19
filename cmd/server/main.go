package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/UkralStul/blogsphere/internal/api"
	"github.com/UkralStul/blogsphere/internal/auth"
	"github.com/UkralStul/blogsphere/internal/blog"
	"github.com/UkralStul/blogsphere/internal/config"
	"github.com/UkralStul/blogsphere/internal/logger"
	"github.com/UkralStul/blogsphere/internal/realtime"
	"github.com/UkralStul/blogsphere/internal/social"
	"github.com/UkralStul/blogsphere/internal/storage"
	"github.com/UkralStul/blogsphere/internal/storage/inmemory"
	"github.com/UkralStul/blogsphere/internal/storage/mongo"
	"github.com/UkralStul/blogsphere/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	storageType := flag.String("storage", cfg.Storage, "Storage type (in-memory, postgres, sqlite or mongo)")
	seed := flag.Bool("seed", cfg.Seed, "Insert sample data on startup")
	flag.Parse()
	cfg.Storage = *storageType
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting server", "storage", cfg.Storage, "port", cfg.Port)
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open storage", "storage", cfg.Storage, "error", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("storage close failed", "error", err)
		}
	}()

	hub := realtime.NewHub()
	relay := realtime.NewRelay(hub, openBus(log, cfg), log)
	if err := relay.Start(ctx); err != nil {
		log.Fatal("failed to start comment relay", "error", err)
	}

	blogs := blog.NewService(store, log, blog.WithPublisher(relay))
	authSvc := auth.NewService(store, cfg.JWTSecret, cfg.TokenTTL, log)
	srv := api.NewServer(api.Deps{
		Blogs:       blogs,
		Social:      social.NewService(store, blogs, log),
		Auth:        authSvc,
		Hub:         hub,
		Store:       store,
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
	})

	if *seed {
		if err := seedData(ctx, authSvc, blogs, log); err != nil {
			log.Fatal("failed to seed data", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", "error", err)
		}
	}()

	log.Info("listening", "addr", "http://localhost:"+cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		return
	}
	log.Info("server stopped")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	level := gormlogger.Warn
	if cfg.LogMode == "test" {
		level = gormlogger.Silent
	}
	switch cfg.Storage {
	case config.StoragePostgres:
		return postgres.New(cfg.DatabaseURL, level)
	case config.StorageSQLite:
		return postgres.NewSQLite(cfg.SQLitePath, level)
	case config.StorageMongo:
		return mongo.New(ctx, mongo.Options{
			URI:          cfg.MongoURI,
			Database:     cfg.MongoDB,
			Transactions: cfg.MongoTransactions,
		})
	default:
		return inmemory.New(), nil
	}
}

// openBus returns nil when Redis is not configured or unreachable, which
// keeps comment events local to this instance.
func openBus(log *logger.Logger, cfg *config.Config) realtime.Bus {
	if cfg.RedisAddr == "" {
		return nil
	}
	bus, err := realtime.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		log.Warn("redis unavailable, comment events stay local", "addr", cfg.RedisAddr, "error", err)
		return nil
	}
	return bus
}
