package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler runs registered jobs on their schedules. A tick that fires
// while the previous run of the same job is still going is skipped.
type Scheduler struct {
	logger *slog.Logger

	mu     sync.Mutex
	jobs   []Job
	names  map[string]struct{}
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		names:  make(map[string]struct{}),
	}
}

// RegisterJob adds j to the scheduler.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("cron: cannot register %q after start", j.Name())
	}
	if _, exists := s.names[j.Name()]; exists {
		return fmt.Errorf("cron: duplicate job name %q", j.Name())
	}
	s.names[j.Name()] = struct{}{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start schedules every registered job. Nothing is started when a schedule
// is invalid.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	log := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	ctx, cancel := context.WithCancel(context.Background())

	for _, j := range s.jobs {
		if _, err := c.AddJob(j.Schedule(), s.wrap(ctx, j)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", j.Name(), err)
		}
	}

	c.Start()
	s.cron, s.ctx, s.cancel = c, ctx, cancel
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: stopping scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) wrap(ctx context.Context, j Job) cron.Job {
	return cron.FuncJob(func() {
		s.logger.Debug("cron: job started", "job", j.Name())
		if err := j.Run(ctx); err != nil {
			s.logger.Error("cron: job failed", "job", j.Name(), "error", err)
			return
		}
		s.logger.Debug("cron: job completed", "job", j.Name())
	})
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
