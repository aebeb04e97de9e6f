// Package scheduler runs the daily license refresh job. The scheduler is an
// explicit handle owned by the composition root: started once at startup,
// stopped once at shutdown, no package-level state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Job is the function the scheduler fires. Errors are logged, never
// propagated past the scheduler boundary.
type Job func(ctx context.Context) error

// Scheduler fires one job at a fixed wall-clock time every day.
type Scheduler struct {
	refreshAt time.Duration // offset from midnight UTC
	job       Job
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// now is the clock; tests override it.
	now func() time.Time
}

// New creates a scheduler firing job daily at refreshAt ("HH:MM", UTC).
func New(refreshAt string, job Job, logger *slog.Logger) (*Scheduler, error) {
	t, err := time.Parse("15:04", refreshAt)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh time %q: %w", refreshAt, err)
	}
	return &Scheduler{
		refreshAt: time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute,
		job:       job,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
	}, nil
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)

	s.logger.Info("scheduler started", "refresh_at", s.refreshAtString())
}

// Stop cancels the scheduled job and waits for the loop to exit. Calling
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// TriggerNow runs the job synchronously with the same panic/error guard as
// a scheduled firing.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runJob(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		next := s.nextRun(s.now())
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.logger.Info("scheduled refresh firing", "scheduled_for", next.Format(time.RFC3339))
			s.runJob(ctx)
		}
	}
}

// runJob executes the job, containing panics and errors so the loop always
// reaches its next firing.
func (s *Scheduler) runJob(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled job failed", "error", err)
	}
}

// nextRun returns the next wall-clock firing strictly after now, in UTC.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	next := midnight.Add(s.refreshAt)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

func (s *Scheduler) refreshAtString() string {
	h := int(s.refreshAt / time.Hour)
	m := int((s.refreshAt % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
