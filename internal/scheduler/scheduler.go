// Package scheduler runs the periodic deadline sweep that closes jobs whose
// application deadline has passed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// JobCloser is satisfied by service.Service.
type JobCloser interface {
	CloseExpiredJobs(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	closer JobCloser
	spec   string
	logger *slog.Logger
}

// New creates a Scheduler that sweeps on the given cron spec, for example
// "@every 1h".
func New(closer JobCloser, spec string, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		closer: closer,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the sweep, starts the cron loop and runs one sweep right
// away without blocking.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("无法注册定时任务 %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("定时任务已启动", slog.String("spec", s.spec))

	go s.Sweep(ctx)

	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("定时任务已停止")
}

func (s *Scheduler) Sweep(ctx context.Context) {
	closed, err := s.closer.CloseExpiredJobs(ctx)
	if err != nil {
		s.logger.Error("无法关闭过期职位", slog.String("error", err.Error()))
		return
	}
	if closed > 0 {
		s.logger.Info("已关闭过期职位", slog.Int("count", closed))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	*slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.Logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
