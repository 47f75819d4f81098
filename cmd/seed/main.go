package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/seed"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/storage"
)

func main() {
	var op int
	var n int
	var file string
	var employerID string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机求职者, 2: 插入随机雇主, 3: 插入示例岗位, 4: 从 CSV 导入岗位)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&file, "file", "internal/seed/data/jobs.csv", "导入岗位使用的 CSV 文件")
	flag.StringVar(&employerID, "employer", "", "导入岗位所属的雇主 ID")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 内存存储使用 redis 快照时才需要 redis 客户端
	var rdb *redis.Client
	if cfg.Storage.Driver == storage.DriverMemory && cfg.Storage.SnapshotBackend == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer rdb.Close()
	}

	ctx := context.Background()

	store, closeStore, err := storage.Open(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Error("无法打开存储", slog.String("error", err.Error()))
		return
	}
	defer closeStore()

	seeder := seed.New(store, cfg.Seed.User.Password, cfg.Email.UserDomain)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1, 2:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}
		role := domain.RoleJobSeeker
		if op == 2 {
			role = domain.RoleEmployer
		}
		cnt, err := seeder.RandomUsers(ctx, role, n)
		if err != nil {
			slog.Error("无法插入用户", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入用户成功", slog.String("role", string(role)), slog.Int("count", cnt))
	case 3:
		cnt, err := seeder.MockJobs(ctx)
		if err != nil {
			slog.Error("无法插入示例岗位", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入示例岗位成功", slog.Int("count", cnt))
	case 4:
		if employerID == "" {
			slog.Error("请指定岗位所属的雇主 ID")
			return
		}
		f, err := os.Open(file)
		if err != nil {
			slog.Error("无法打开 CSV 文件", slog.String("error", err.Error()))
			return
		}
		defer f.Close()

		cnt, err := seeder.ImportJobs(ctx, f, employerID)
		if err != nil {
			slog.Error("无法导入岗位", slog.String("error", err.Error()))
			return
		}
		slog.Info("导入岗位成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
