package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/sritampatnaik/Magic-Canvas/internal/api/http"
	"github.com/sritampatnaik/Magic-Canvas/internal/config"
	"github.com/sritampatnaik/Magic-Canvas/internal/hub"
	"github.com/sritampatnaik/Magic-Canvas/internal/imagegen"
	"github.com/sritampatnaik/Magic-Canvas/internal/repository"
	"github.com/sritampatnaik/Magic-Canvas/internal/repository/model"
	"github.com/sritampatnaik/Magic-Canvas/internal/service"
	"github.com/sritampatnaik/Magic-Canvas/internal/storage"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var roomRepo repository.RoomRepository = repository.NewInMemoryRoomRepository()
	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", sl.Err(err))
			os.Exit(1)
		}
		roomRepo = repository.NewPostgresRoomRepository(db)
	} else {
		log.Warn("database dsn is empty, rooms are kept in memory")
	}

	var bus hub.Bus
	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(cfg.Redis.URL)
		if err != nil {
			log.Error("failed to connect redis", sl.Err(err))
			os.Exit(1)
		}
		defer rdb.Close()
		bus = hub.NewRedisBus(rdb, log)
	}

	channels := hub.New(log, bus)
	go func() {
		if err := channels.Run(ctx); err != nil {
			log.Error("channel hub stopped", sl.Err(err))
		}
	}()

	var uploader service.Uploader
	s3, err := storage.NewS3Uploader(storage.Options{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		PublicURL:       cfg.Storage.PublicURL,
		PathStyle:       cfg.Storage.PathStyle,
	})
	switch {
	case err == nil:
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s3.EnsureBucket(bucketCtx); err != nil {
			log.Warn("failed to ensure bucket", slog.String("bucket", cfg.Storage.Bucket), sl.Err(err))
		}
		cancel()
		uploader = s3
	default:
		log.Warn("object storage disabled", sl.Err(err))
	}

	var generator service.Generator
	if uploader != nil {
		gen, err := imagegen.New(imagegen.Options{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, uploader, log)
		if err != nil {
			log.Warn("image generation disabled", sl.Err(err))
		} else {
			generator = gen
		}
	}

	roomService := service.NewRoomService(roomRepo, channels, log)
	mediaService := service.NewMediaService(uploader, generator, log)

	roomController := httpapi.NewRoomController(roomService, channels, cfg.HTTP.PublicURL, log)
	mediaController := httpapi.NewMediaController(mediaService)

	router := httpapi.SetupRouter(httpapi.RouterOptions{AllowedOrigins: cfg.HTTP.AllowedOrigins}, roomController, mediaController)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Room{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func connectRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
