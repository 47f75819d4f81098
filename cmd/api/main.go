package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/handler"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/mailqueue"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/revocation"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/service"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/storage"
	"github.com/sysu-ecnc-dev/job-board/backend/internal/token"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 打开存储
	 **********************************************/
	store, closeStore, err := storage.Open(context.Background(), cfg, rdb, logger)
	if err != nil {
		logger.Error("无法打开存储", "error", err)
		return
	}
	defer closeStore()

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法建立通道", "error", err)
		return
	}
	defer ch.Close()

	// 声明队列
	if err := mailqueue.Declare(ch, cfg.RabbitMQ.Queue); err != nil {
		logger.Error("无法声明队列", "error", err)
		return
	}

	/**********************************************
	 * 创建 service
	 **********************************************/
	svc := service.New(
		store,
		mailqueue.NewPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		revocation.New(rdb, time.Duration(cfg.Redis.OperationExpiration)*time.Second),
		token.NewIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Second, cfg.JWT.Issuer, cfg.JWT.Audience),
		service.Options{
			PublicURL:         cfg.Server.PublicURL,
			FrontendURL:       cfg.FrontendURL,
			VerificationTTL:   time.Duration(cfg.Auth.VerificationExpiration) * time.Second,
			ResetTTL:          time.Duration(cfg.Auth.ResetExpiration) * time.Second,
			HashTimeout:       time.Duration(cfg.Auth.HashTimeout) * time.Second,
			TokenBytes:        cfg.Auth.TokenBytes,
			InitialAdminEmail: cfg.InitialAdmin.Email,
		},
	)

	/**********************************************
	 * 确保存储中存在初始管理员
	 **********************************************/
	if _, created, err := svc.EnsureInitialAdmin(context.Background(), cfg.InitialAdmin.Username, cfg.InitialAdmin.Email, cfg.InitialAdmin.Password); err != nil {
		logger.Error("无法创建初始管理员", "error", err)
		return
	} else if created {
		logger.Info("已创建初始管理员", slog.String("email", cfg.InitialAdmin.Email))
	}

	/**********************************************
	 * 启动定时任务
	 **********************************************/
	sched := scheduler.New(svc, cfg.Scheduler.DeadlineSweep, logger)
	if err := sched.Start(context.Background()); err != nil {
		logger.Error("无法启动定时任务", "error", err)
		return
	}
	defer sched.Stop()

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, svc)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
