package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job is the work a Poller runs periodically.
type Job interface {
	Run(ctx context.Context) (*RefreshResult, error)
}

// Poller runs a Job on a fixed interval. Runs never overlap; a run that is
// still busy when the next tick fires makes that tick a no-op.
type Poller struct {
	config    PollerConfig
	job       Job
	logger    zerolog.Logger
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun *RefreshResult
	lastErr error
}

// NewPoller creates a poller for job.
func NewPoller(cfg PollerConfig, job Job, logger zerolog.Logger) *Poller {
	d := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Poller{
		config:    cfg,
		job:       job,
		logger:    logger,
		scheduler: s,
	}
}

// Start schedules the job and starts the scheduler in the background. The
// context bounds every run; cancelling it stops in-flight runs.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	sched := p.scheduler.Every(p.config.Interval)
	if p.config.WaitForFirstInterval {
		sched = sched.WaitForSchedule()
	}
	if _, err := sched.Do(p.runOnce); err != nil {
		return fmt.Errorf("scheduling refresh job: %w", err)
	}

	p.scheduler.StartAsync()
	p.logger.Info().
		Dur("interval", p.config.Interval).
		Dur("timeout", p.config.Timeout).
		Msg("poller started")
	return nil
}

// Stop cancels running work and stops the scheduler.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.scheduler.Stop()
}

// LastRun returns the result and error of the most recent run.
func (p *Poller) LastRun() (*RefreshResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastErr
}

func (p *Poller) runOnce() {
	p.mu.Lock()
	parent := p.ctx
	p.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, p.config.Timeout)
	defer cancel()

	result, err := p.job.Run(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("scheduled refresh failed")
	}

	p.mu.Lock()
	p.lastRun, p.lastErr = result, err
	p.mu.Unlock()
}
