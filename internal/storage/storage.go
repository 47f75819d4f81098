// Package storage opens the service.Store selected by configuration.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/memstore"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/repository"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the configured store and a function releasing its resources.
// rdb may be nil unless the memory driver persists to redis.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (service.Store, func(), error) {
	switch cfg.Storage.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case DriverMemory:
		return openMemory(cfg, rdb, logger)
	default:
		return nil, nil, fmt.Errorf("不支持的存储驱动 %q", cfg.Storage.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Store, func(), error) {
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(pingCtx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.Migrate(pingCtx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("无法初始化数据库表结构: %w", err)
	}

	logger.Info("已连接到数据库")
	return repo, func() { dbpool.Close() }, nil
}

func openMemory(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (service.Store, func(), error) {
	var opts []memstore.Option

	switch cfg.Storage.SnapshotBackend {
	case "", "none":
	case "file":
		if cfg.Storage.SnapshotPath == "" {
			return nil, nil, fmt.Errorf("STORAGE_SNAPSHOT_PATH is required when STORAGE_SNAPSHOT_BACKEND=file")
		}
		opts = append(opts, memstore.WithPersister(&memstore.FilePersister{Path: cfg.Storage.SnapshotPath}))
	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis client is required when STORAGE_SNAPSHOT_BACKEND=redis")
		}
		timeout := time.Duration(cfg.Redis.OperationExpiration) * time.Second
		opts = append(opts, memstore.WithPersister(memstore.NewRedisPersister(rdb, cfg.Storage.SnapshotKey, timeout)))
	default:
		return nil, nil, fmt.Errorf("不支持的快照后端 %q", cfg.Storage.SnapshotBackend)
	}

	logger.Info("使用内存存储", slog.String("snapshot", cfg.Storage.SnapshotBackend))
	return memstore.New(opts...), func() {}, nil
}
