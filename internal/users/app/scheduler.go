package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"gousers/internal/users/ports/api"
	"gousers/pkg/logger"
	"gousers/pkg/resilience"
)

// Имена периодических задач.
const (
	JobRemoveNotActivatedUsers = "remove-not-activated-users"
	JobRemoveOldAuditEvents    = "remove-old-audit-events"
)

const (
	msgSchedulerStarted = "scheduler started"
	msgSchedulerStopped = "scheduler stopped"
	msgJobScheduled     = "job scheduled"
	msgJobStarted       = "job started"
	msgJobFinished      = "job finished"
	msgJobFailed        = "job failed"

	errSchedulerStop = "scheduler stop interrupted"
)

// Job - задача, выполняемая ежедневно в час Hour по времени часов планировщика.
type Job struct {
	Name string
	Hour int
	Run  func(ctx context.Context) error
}

// Scheduler запускает ежедневные задачи. Запуски одной задачи не пересекаются.
type Scheduler struct {
	clock    clockwork.Clock
	retryCfg resilience.RetryConfig
	jobs     []Job

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler создает планировщик. Каждый запуск оборачивается в повтор по retryCfg.
func NewScheduler(clock clockwork.Clock, retryCfg resilience.RetryConfig, jobs ...Job) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:    clock,
		retryCfg: retryCfg,
		jobs:     jobs,
	}
}

// RemoveNotActivatedUsersJob удаляет неактивированных пользователей.
func RemoveNotActivatedUsersJob(users api.UserUseCase, hour int) Job {
	return Job{
		Name: JobRemoveNotActivatedUsers,
		Hour: hour,
		Run: func(ctx context.Context) error {
			_, err := users.RemoveNotActivatedUsers(ctx)
			return err
		},
	}
}

// RemoveOldAuditEventsJob удаляет устаревшие события аудита.
func RemoveOldAuditEventsJob(audit api.AuditUseCase, hour int) Job {
	return Job{
		Name: JobRemoveOldAuditEvents,
		Hour: hour,
		Run: func(ctx context.Context) error {
			_, err := audit.RemoveOldAuditEvents(ctx)
			return err
		},
	}
}

// NextRun возвращает ближайший момент после now, когда наступает час hour.
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start запускает задачи в отдельных горутинах. Повторный вызов ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(runCtx, job)
		}(job)
	}

	logger.Log(ctx).Info(ctx, msgSchedulerStarted, zap.Int("jobs", len(s.jobs)))
}

// Stop останавливает задачи и ждет завершения текущих запусков не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log(ctx).Info(ctx, msgSchedulerStopped)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", errSchedulerStop, ctx.Err())
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	log := logger.Log(ctx).With(zap.String("job", job.Name))
	retry := resilience.NewRetry(job.Name, s.retryCfg, s.clock)

	for {
		now := s.clock.Now()
		next := NextRun(now, job.Hour)
		log.Debug(ctx, msgJobScheduled, zap.Time("next_run", next))

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		started := s.clock.Now()
		log.Info(ctx, msgJobStarted)
		if err := retry.Execute(ctx, job.Run); err != nil {
			log.Error(ctx, msgJobFailed, zap.Error(err))
			continue
		}
		log.Info(ctx, msgJobFinished, zap.Duration("took", s.clock.Since(started)))
	}
}
