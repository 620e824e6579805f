package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/config"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/robfig/cron/v3"
)

// Handler is one scheduled job body. It must honor ctx cancellation so
// shutdown does not strand a run.
type Handler func(ctx context.Context) error

// JobStatus is the introspection view of one registered job
type JobStatus struct {
	Name       string
	Schedule   string
	Enabled    bool
	Running    bool
	LastRunAt  *time.Time
	LastStatus string
	LastError  string
	NextRunAt  *time.Time
}

type registeredJob struct {
	name     string
	schedule string
	enabled  bool
	handler  Handler
	entryID  cron.EntryID

	mu         sync.Mutex
	running    bool
	startedAt  time.Time
	lastRunAt  *time.Time
	lastStatus string
	lastError  string
}

// Scheduler is the registry of named jobs. Each job runs on its own cron
// schedule; the SkipIfStillRunning chain guarantees two invocations of the
// same job never overlap, and Recover isolates panics to the run.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]*registeredJob
	order    []string
	budget   time.Duration
	cfg      *config.SchedulerConfig
	notifier notification.Notifier
	logger   *logger.Logger

	mu      sync.RWMutex
	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(cfg *config.Configuration, notifier notification.Notifier, log *logger.Logger) *Scheduler {
	cl := &cronLogger{logger: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		jobs:     make(map[string]*registeredJob),
		budget:   cfg.Scheduler.JobBudget,
		cfg:      &cfg.Scheduler,
		notifier: notifier,
		logger:   log,
	}
}

// Register adds a named job using the schedule and enabled flag from
// config. Disabled jobs are registered for introspection but never run.
func (s *Scheduler) Register(name string, handler Handler) error {
	jc, ok := s.cfg.Jobs[name]
	if !ok {
		return ierr.NewErrorf("no schedule configured for job %s", name).
			WithHint("Add a scheduler.jobs entry for the job").
			Mark(ierr.ErrValidation)
	}

	job := &registeredJob{
		name:     name,
		schedule: jc.Schedule,
		enabled:  jc.Enabled,
		handler:  handler,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return ierr.NewErrorf("job %s already registered", name).
			WithHint("Job names must be unique").
			Mark(ierr.ErrAlreadyExists)
	}
	s.jobs[name] = job
	s.order = append(s.order, name)

	if !job.enabled {
		s.logger.Infow("job disabled, not scheduling", "job", name)
		return nil
	}

	entryID, err := s.cron.AddFunc(job.schedule, func() { s.run(job) })
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Invalid schedule %q for job %s", job.schedule, name).
			Mark(ierr.ErrValidation)
	}
	job.entryID = entryID
	return nil
}

// Start begins dispatching jobs. It is idempotent per process lifecycle.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Infow("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Infow("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Statuses returns the introspection view of every job in registration
// order.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		job := s.jobs[name]
		job.mu.Lock()
		status := JobStatus{
			Name:       job.name,
			Schedule:   job.schedule,
			Enabled:    job.enabled,
			Running:    job.running,
			LastRunAt:  job.lastRunAt,
			LastStatus: job.lastStatus,
			LastError:  job.lastError,
		}
		job.mu.Unlock()
		if job.enabled {
			if next := s.cron.Entry(job.entryID).Next; !next.IsZero() {
				next := next
				status.NextRunAt = &next
			}
		}
		out = append(out, status)
	}
	return out
}

// HealthCheck is the watchdog job body: it alerts on runs exceeding the
// duration budget and on jobs whose last run failed.
func (s *Scheduler) HealthCheck(ctx context.Context) error {
	now := time.Now().UTC()
	for _, status := range s.Statuses() {
		job := s.jobs[status.Name]

		job.mu.Lock()
		running := job.running
		startedAt := job.startedAt
		lastStatus := job.lastStatus
		lastError := job.lastError
		job.mu.Unlock()

		if running && s.budget > 0 && now.Sub(startedAt) > s.budget {
			s.notifyOperator(ctx, "Job running past its duration budget", map[string]any{
				"job":        status.Name,
				"started_at": startedAt,
				"budget":     s.budget.String(),
			})
		}
		if lastStatus == "failed" {
			s.notifyOperator(ctx, "Job last run failed", map[string]any{
				"job":   status.Name,
				"error": lastError,
			})
		}
	}
	return nil
}

// run executes one job invocation with watchdog and status tracking
func (s *Scheduler) run(job *registeredJob) {
	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now().UTC()
	job.mu.Lock()
	job.running = true
	job.startedAt = started
	job.mu.Unlock()

	s.logger.Infow("job started", "job", job.name)

	err := job.handler(ctx)

	finished := time.Now().UTC()
	job.mu.Lock()
	job.running = false
	job.lastRunAt = &finished
	if err != nil {
		job.lastStatus = "failed"
		job.lastError = err.Error()
	} else {
		job.lastStatus = "success"
		job.lastError = ""
	}
	job.mu.Unlock()

	if err != nil {
		s.logger.Errorw("job failed",
			"job", job.name, "error", err, "duration", finished.Sub(started))
		s.notifyOperator(ctx, "Scheduled job failed", map[string]any{
			"job":      job.name,
			"error":    err.Error(),
			"duration": finished.Sub(started).String(),
		})
		return
	}
	s.logger.Infow("job completed",
		"job", job.name, "duration", finished.Sub(started))
}

func (s *Scheduler) notifyOperator(ctx context.Context, subject string, data map[string]any) {
	n := notification.New(notification.TypeOperatorAlert, "", subject, data)
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Errorw("failed to send operator alert",
			"error", err, "subject", subject)
	}
}

// cronLogger adapts our logger to the cron.Logger interface so skipped
// overlapping runs and recovered panics land in the structured log.
type cronLogger struct {
	logger *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	kv := append([]interface{}{"error", err}, keysAndValues...)
	l.logger.Errorw(msg, kv...)
}
