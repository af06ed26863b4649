package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
)

// Scheduler fires the retention trigger on a cron schedule.
type Scheduler struct {
	client   *Client
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
	entry    cron.EntryID
	done     chan struct{}
}

// NewScheduler creates a scheduler calling client on schedule, a standard
// five-field cron expression or descriptor such as "@hourly".
func NewScheduler(client *Client, schedule string) *Scheduler {
	return &Scheduler{
		client:   client,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   slog.Default().With("component", "schedule"),
	}
}

// Start registers the job and starts the timer. It returns at once; the
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if s.client.secret == "" {
		return ErrNoSecret
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	id, err := s.cron.AddFunc(s.schedule, func() { s.fire(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule trigger: %w", err)
	}

	s.cron.Start()
	s.entry = id
	s.done = make(chan struct{})
	s.running = true
	s.logger.Info("retention scheduler started",
		"schedule", s.schedule,
		"url", s.client.url,
	)

	done := s.done
	go func() {
		select {
		case <-ctx.Done():
			s.stop(done)
		case <-done:
		}
	}()
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	ctx, span := otel.Tracer("mercator-hq/custodian/schedule").Start(ctx, "retention.trigger")
	defer span.End()

	s.logger.Info("firing retention trigger")
	if _, err := s.client.Fire(ctx); err != nil {
		span.RecordError(err)
		s.logger.Error("retention trigger failed", "error", err)
		return
	}
	s.logger.Info("retention trigger completed")
}

// Stop stops the timer, removes the job and waits for a running call to
// finish. The scheduler can be started again afterwards.
func (s *Scheduler) Stop() {
	s.stop(nil)
}

// stop ends the current run. A non-nil done only matches the run it was
// created for.
func (s *Scheduler) stop(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running && (done == nil || done == s.done) {
		<-s.cron.Stop().Done()
		s.cron.Remove(s.entry)
		close(s.done)
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled call, or nil before Start.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
