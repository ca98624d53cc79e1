package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduledTask names a job type that should be enqueued on every tick.
type ScheduledTask struct {
	Type     string
	Interval time.Duration
}

// Scheduler enqueues maintenance jobs on fixed intervals. It owns no business
// logic: each tick only pushes a job onto the queue, whose handler calls the
// relevant service method.
type Scheduler struct {
	queue  *Queue
	tasks  []ScheduledTask
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active bool
}

// NewScheduler builds a scheduler for the provided queue and task set.
func NewScheduler(queue *Queue, tasks []ScheduledTask, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: queue, tasks: tasks, logger: logger}
}

// Start launches one ticker goroutine per task. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		if task.Interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.run(ctx, task)
	}
	s.active = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.tasks))
}

// Stop cancels all tickers and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, task ScheduledTask) {
	defer s.wg.Done()
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job := Job{ID: uuid.NewString(), Type: task.Type}
			if err := s.queue.Enqueue(job); err != nil {
				s.logger.Sugar().Warnw("failed to enqueue scheduled job", "type", task.Type, "error", err)
			}
		}
	}
}
