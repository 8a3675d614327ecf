package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shop-backoffice/internal/cache"
	"shop-backoffice/internal/config"
	"shop-backoffice/internal/database"
	"shop-backoffice/internal/handlers"
	"shop-backoffice/internal/logger"
	"shop-backoffice/internal/middleware"
	"shop-backoffice/internal/reconcile"
	"shop-backoffice/internal/repository"
	"shop-backoffice/internal/routes"
	"shop-backoffice/internal/service"
	"shop-backoffice/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.LoadConfig()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("mongo unavailable", zap.Error(err))
	}
	db := client.Database(cfg.MongoDB)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("blob store unavailable", zap.Error(err))
	}

	var rdb *redis.Client
	var limiter middleware.Counter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis unavailable", zap.Error(err))
		}
		limiter = rdb
	} else {
		log.Info("REDIS_URL not set, rate limiting disabled")
	}

	productCache := cache.New(cfg.CacheTTL)
	repo := repository.NewProductRepository(db.Collection(database.ProductsCollection))
	svc := service.NewProductService(repo, store, reconcile.New(store, log), log)
	h := handlers.NewProductHandler(svc, productCache, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	routes.RegisterRoutes(router, h, routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.JWTSecret,
		Limiter:     limiter,
		RateLimit:   cfg.RateLimit,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server running",
			zap.String("port", cfg.Port),
			zap.String("env_source", cfg.EnvSource),
			zap.String("blob_driver", cfg.BlobDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"mongo": func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
		"redis": func(context.Context) error {
			if rdb == nil {
				return nil
			}
			return rdb.Close()
		},
		"cache": func(context.Context) error {
			productCache.Close()
			return nil
		},
	})

	exitCode := <-wait
	log.Info("shutdown complete", zap.Int("exit_code", exitCode))
	_ = log.Sync()
	os.Exit(exitCode)
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.BlobDriver {
	case "memory":
		log.Warn("using in-memory blob store, images are lost on restart")
		return storage.NewMemoryStore(cfg.BlobBaseURL), nil
	case "s3", "":
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			BaseURL:   cfg.BlobBaseURL,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
	default:
		return nil, fmt.Errorf("unknown BLOB_DRIVER %q", cfg.BlobDriver)
	}
}
