package retention

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wishbank/wishbank/internal/app/metrics"
	"github.com/wishbank/wishbank/internal/app/storage"
	"github.com/wishbank/wishbank/internal/app/system"
	"github.com/wishbank/wishbank/pkg/logger"
)

const (
	DefaultSchedule  = "@daily"
	DefaultRetention = 30 * 24 * time.Hour
)

// Job is an extra housekeeping task run on its own schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// Options configures the retention scheduler.
type Options struct {
	// Schedule is a standard cron spec or descriptor such as @daily.
	Schedule string
	// Retention is how long processed payment events are remembered.
	Retention time.Duration
}

// Service periodically prunes processed payment events and runs any
// registered housekeeping jobs.
type Service struct {
	events    storage.PaymentEventStore
	schedule  string
	retention time.Duration
	log       *logger.Logger
	now       func() time.Time

	mu      sync.Mutex
	jobs    []Job
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

var _ system.Service = (*Service)(nil)

// New validates opts and constructs the scheduler. Nothing runs until Start.
func New(events storage.PaymentEventStore, opts Options, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("retention")
	}
	schedule := strings.TrimSpace(opts.Schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		events:    events,
		schedule:  schedule,
		retention: retention,
		log:       log,
		now:       time.Now,
	}, nil
}

func (s *Service) Name() string { return "retention" }

// AddJob registers an extra job. Jobs must be added before Start.
func (s *Service) AddJob(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s: run func is required", job.Name)
	}
	if strings.TrimSpace(job.Schedule) == "" {
		job.Schedule = s.schedule
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("job %s schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already running", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// PruneOnce deletes payment events older than the retention window.
func (s *Service) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.events.PruneEvents(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune payment events: %w", err)
	}
	metrics.RecordEventsPruned(removed)
	if removed > 0 {
		s.log.WithField("removed", removed).WithField("cutoff", cutoff).Info("pruned processed payment events")
	}
	return removed, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cronLog := cron.PrintfLogger(s.log)
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))

	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.PruneOnce(runCtx); err != nil {
			s.log.WithError(err).Warn("payment event pruning failed")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule pruning: %w", err)
	}
	for _, job := range s.jobs {
		job := job
		if _, err := c.AddFunc(job.Schedule, func() { job.Run(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).WithField("retention", s.retention.String()).Info("retention scheduler started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel, s.running = nil, nil, false
	s.mu.Unlock()

	done := c.Stop()
	cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
