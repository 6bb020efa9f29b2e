package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/tasks"
	"go.uber.org/zap"
)

const defaultReconcileSchedule = "@every 1h"

// NewServeMux routes every task type this service processes.
func NewServeMux(reconciler tasks.Reconciler, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	reconcileHandler := tasks.NewStatsReconcileHandler(reconciler, logger)
	mux.HandleFunc(tasks.TypeStatsReconcile, reconcileHandler.ProcessTask)
	return mux
}

// RunWorkers processes background tasks and schedules the periodic stats
// reconcile until ctx is cancelled.
func RunWorkers(ctx context.Context, cfg *config.Config, reconciler tasks.Reconciler, logger *zap.Logger) error {
	log := logger.Named("Worker")

	redisConnOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	concurrency := cfg.Worker.Concurrency
	if concurrency < 1 {
		concurrency = 2
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	reconcileTask, err := tasks.NewStatsReconcileTask()
	if err != nil {
		return fmt.Errorf("scheduler task creation error: %w", err)
	}

	schedule := cfg.Worker.ReconcileSchedule
	if schedule == "" {
		schedule = defaultReconcileSchedule
	}
	entryID, err := scheduler.Register(schedule, reconcileTask)
	if err != nil {
		return fmt.Errorf("scheduler registration error: %w", err)
	}
	log.Info("Registered periodic stats reconcile", zap.String("entry_id", entryID), zap.String("schedule", schedule))

	log.Info("Starting Asynq Server...")
	if err := srv.Start(NewServeMux(reconciler, logger)); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	log.Info("Starting Asynq Scheduler...")
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("asynq scheduler error: %w", err)
	}

	<-ctx.Done()

	log.Info("Shutting down Asynq Scheduler...")
	scheduler.Shutdown()
	log.Info("Shutting down Asynq Server...")
	srv.Shutdown()
	log.Info("Asynq workers stopped.")
	return nil
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
