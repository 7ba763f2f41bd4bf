package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is a unit of periodic background work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// JobScheduler runs registered tasks on cron schedules.
type JobScheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

func NewJobScheduler(logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &JobScheduler{
		scheduler: scheduler,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// Schedule registers task under a five-field cron expression. A run still in progress when the next
// one is due is skipped.
func (js *JobScheduler) Schedule(ctx context.Context, schedule string, task Task) error {
	job, err := js.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(js.run, ctx, task),
		gocron.WithName(task.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", task.Name(), err)
	}

	js.mu.Lock()
	js.jobs[task.Name()] = job
	js.mu.Unlock()
	js.logger.Info("job scheduled", zap.String("job", task.Name()), zap.String("schedule", schedule))
	return nil
}

func (js *JobScheduler) run(ctx context.Context, task Task) {
	if err := task.Run(ctx); err != nil {
		js.logger.Error("job failed", zap.String("job", task.Name()), zap.Error(err))
	}
}

// Jobs lists the names of the registered jobs.
func (js *JobScheduler) Jobs() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}
