package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"backup_vault/internal/config"
	"backup_vault/internal/service/server"
	"backup_vault/internal/utils/log"
	"backup_vault/internal/vault"
)

func main() {
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal("init store", zap.Error(err))
	}
	log.Info("store ready", zap.String("backend", cfg.StoreBackend))

	srv := server.NewHttpServer(cfg.EndpointAddr, store, cfg.MinCodes, cfg.MaxCodes)
	go func() {
		if err := srv.Run(); err != nil {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func newStore(cfg *config.Config) (vault.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		db, err := initMongo(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return vault.NewMongoStore(ctx, db, cfg.Cooldown)

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		return vault.NewRedisStore(rdb, cfg.Cooldown), nil

	default:
		return vault.NewMemoryStore(cfg.Cooldown), nil
	}
}

func initMongo(uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client.Database(database), nil
}
