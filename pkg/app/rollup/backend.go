package rollup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/memory"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/mongo"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/pg"
	"github.com/ministryhub/checkin-rollup/pkg/config"
	"github.com/ministryhub/checkin-rollup/pkg/lock"
	"github.com/ministryhub/checkin-rollup/pkg/pgutil"
)

func openStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (checkinstore.Store, error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		db, err := pgutil.ConnectDB(&cfg.Postgres)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to postgres",
			zap.String("host", cfg.Postgres.Host),
			zap.String("database", cfg.Postgres.Database),
		)
		return pg.NewStore(db), nil

	case config.StorageMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
		defer cancel()
		store, err := mongo.Connect(connectCtx, &cfg.Mongo)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to mongodb", zap.String("database", cfg.Mongo.Database))
		return store, nil

	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func newLocker(rollupCfg *config.RollupConfig, client *redis.Client) lock.Locker {
	if rollupCfg.Lock == config.DriverRedis && client != nil {
		return lock.NewRedis(client, "")
	}
	return lock.NewLocal()
}
