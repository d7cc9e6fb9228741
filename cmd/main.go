package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bloodlink/backend/internal/api/handler"
	"bloodlink/backend/internal/auth"
	"bloodlink/backend/internal/chat"
	"bloodlink/backend/internal/chathub"
	"bloodlink/backend/internal/config"
	"bloodlink/backend/internal/donor"
	"bloodlink/backend/internal/storage"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage, nothing survives a restart")
		return storage.NewMemoryStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	s := storage.NewStorageService(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	logger.Info("database connected, migrations complete")
	return s, nil
}

func setupBus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (chathub.Bus, error) {
	switch cfg.Broker {
	case config.BrokerNATS:
		return chathub.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, logger)

	case config.BrokerRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return chathub.NewRedisBus(rdb, cfg.Redis.Channel, logger), nil

	default:
		logger.Warn("using in-process broker, broadcasts stay on this instance")
		return chathub.NewLocalBus(), nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := setupStorage(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return err
	}
	bus, err := setupBus(ctx, cfg, logger.Named("bus"))
	if err != nil {
		return err
	}
	defer bus.Close()

	hub := chathub.NewManagerService(bus, logger.Named("chathub"))
	chatSvc := chat.NewService(store, store, hub, logger.Named("chat"))
	chatSvc.ConversationLimit = cfg.Chat.ConversationLimit
	donorSvc := donor.NewService(store, hub, logger.Named("donor"))
	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	h := handler.NewHandler(hub, chatSvc, donorSvc, store, tokens, logger.Named("http"))
	h.RestrictJoin = cfg.Chat.RestrictJoin

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger.Named("http")))
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTP.Addr,
		Handler:        r,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr),
			zap.String("storage", cfg.StorageDriver), zap.String("broker", cfg.Broker))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownWait)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
