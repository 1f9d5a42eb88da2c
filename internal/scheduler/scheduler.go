// Package scheduler drives the reminder cadences at configured times of day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/service"
)

// ErrConfiguration marks a scheduler misconfiguration; the scheduler refuses
// to start rather than run on bad settings.
var ErrConfiguration = errors.New("scheduler configuration invalid")

const (
	minCheckInterval = 10 * time.Second
	maxCheckInterval = 3600 * time.Second
	dayLayout        = "2006-01-02"
)

// CadenceRunner is the reminder engine surface the scheduler drives.
type CadenceRunner interface {
	Run(ctx context.Context, today time.Time) (service.BatchResult, error)
	Preview(ctx context.Context, today time.Time) ([]service.PreviewItem, error)
}

// RunClaims is the durable check-and-set around the daily run: Claim returns
// true exactly once per calendar day across restarts, and Release frees the
// day again when a run fails before doing any work.
type RunClaims interface {
	Claim(ctx context.Context, day string) (bool, error)
	Release(ctx context.Context, day string) error
}

type Config struct {
	Enabled       bool
	CheckInterval time.Duration
	ReminderTimes []string // "HH:MM", 24h
}

// Validate fails fast on settings the scheduler must not run with.
func (c Config) Validate() error {
	if c.CheckInterval < minCheckInterval || c.CheckInterval > maxCheckInterval {
		return fmt.Errorf("%w: check interval %s outside [%s, %s]",
			ErrConfiguration, c.CheckInterval, minCheckInterval, maxCheckInterval)
	}
	if len(c.ReminderTimes) == 0 {
		return fmt.Errorf("%w: at least one reminder time is required", ErrConfiguration)
	}
	for _, raw := range c.ReminderTimes {
		if _, err := time.Parse("15:04", raw); err != nil {
			return fmt.Errorf("%w: reminder time %q is not HH:MM", ErrConfiguration, raw)
		}
	}
	return nil
}

type Stats struct {
	TotalProcessed int        `json:"total_processed"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	LastRunTime    *time.Time `json:"last_run_time,omitempty"`
	NextRunTime    *time.Time `json:"next_run_time,omitempty"`
}

type Status struct {
	Running           bool     `json:"running"`
	Enabled           bool     `json:"enabled"`
	CheckInterval     string   `json:"check_interval"`
	ReminderTimes     []string `json:"reminder_times"`
	LastProcessedDate string   `json:"last_processed_date,omitempty"`
	Stats             Stats    `json:"stats"`
}

// Scheduler ticks on a fixed interval and fires the reminder cadences when
// the wall clock matches a configured time of day, at most once per calendar
// day. The once-per-day guard is both in-memory and a durable claim row, so
// a restart cannot double-send.
type Scheduler struct {
	mu sync.Mutex

	cfg    Config
	runner CadenceRunner
	claims RunClaims
	clock  Clock
	log    zerolog.Logger

	c                *cron.Cron
	running          bool
	lastProcessedDay string
	stats            Stats
}

func New(cfg Config, runner CadenceRunner, claims RunClaims, clock Clock, log zerolog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		claims: claims,
		clock:  clock,
		log:    log.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start launches the internal tick loop. Starting an already-running
// scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
	if _, err := c.AddFunc(spec, func() { s.Tick(context.Background()) }); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	c.Start()
	s.c = c
	s.running = true
	s.stats.NextRunTime = s.nextRunTimeLocked(s.clock.Now())
	s.log.Info().
		Dur("interval", s.cfg.CheckInterval).
		Strs("times", s.cfg.ReminderTimes).
		Bool("enabled", s.cfg.Enabled).
		Msg("scheduler started")
	return nil
}

// Stop halts future ticks and waits for an in-flight tick to finish. The
// wait happens outside the lock: the running tick needs the mutex to record
// its result, so waiting while holding it would never return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.c
	s.c = nil
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Enabled = enabled
	s.log.Info().Bool("enabled", enabled).Msg("scheduler toggled")
}

// UpdateConfig applies new settings after validation. The tick loop is
// restarted when the interval changes while running; the old loop is awaited
// outside the lock, same as Stop, so a config change during an in-flight run
// cannot wedge the scheduler.
func (s *Scheduler) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()

	restart := s.running && cfg.CheckInterval != s.cfg.CheckInterval
	s.cfg = cfg
	var old *cron.Cron
	if restart {
		old = s.c
		c := cron.New()
		spec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
		if _, err := c.AddFunc(spec, func() { s.Tick(context.Background()) }); err != nil {
			s.running = false
			s.c = nil
			s.mu.Unlock()
			<-old.Stop().Done()
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		c.Start()
		s.c = c
	}
	s.stats.NextRunTime = s.nextRunTimeLocked(s.clock.Now())
	s.mu.Unlock()

	if old != nil {
		<-old.Stop().Done()
	}
	return nil
}

// Tick is one pass of the scheduling loop: recompute the next run time, and
// fire the cadences when enabled, the wall clock matches a reminder time,
// and today has not been processed yet.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()

	now := s.clock.Now()
	s.stats.NextRunTime = s.nextRunTimeLocked(now)

	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	hhmm := now.Format("15:04")
	match := false
	for _, t := range s.cfg.ReminderTimes {
		if t == hhmm {
			match = true
			break
		}
	}
	if !match {
		s.mu.Unlock()
		return
	}

	today := now.Format(dayLayout)
	if s.lastProcessedDay == today {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.runOnce(ctx, now, false)
}

// TriggerNow runs the cadences immediately, bypassing the time-of-day match
// and the already-ran-today guard. It still records the day, so the next
// scheduled tick on the same day will not double-send.
func (s *Scheduler) TriggerNow(ctx context.Context) (service.BatchResult, error) {
	now := s.clock.Now()
	return s.runOnce(ctx, now, true)
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time, forced bool) (service.BatchResult, error) {
	today := now.Format(dayLayout)

	claimed, err := s.claims.Claim(ctx, today)
	if err != nil {
		s.recordFailure(now)
		s.log.Error().Err(err).Msg("run claim failed")
		return service.BatchResult{}, fmt.Errorf("claiming run for %s: %w", today, err)
	}
	if !claimed && !forced {
		// Another instance (or a run before restart) already covered today.
		s.mu.Lock()
		s.lastProcessedDay = today
		s.mu.Unlock()
		s.log.Info().Str("day", today).Msg("run already claimed, skipping")
		return service.BatchResult{}, nil
	}

	batch, err := s.runner.Run(ctx, now)
	if err != nil {
		// Nothing was processed; free the claim so a later tick can retry.
		if claimed {
			if relErr := s.claims.Release(ctx, today); relErr != nil {
				s.log.Error().Err(relErr).Str("day", today).Msg("releasing run claim failed")
			}
		}
		s.recordFailure(now)
		s.log.Error().Err(err).Msg("reminder run failed")
		return service.BatchResult{}, err
	}

	s.mu.Lock()
	s.lastProcessedDay = today
	s.stats.TotalProcessed += batch.Successful + batch.Failed
	s.stats.SuccessCount += batch.Successful
	s.stats.FailureCount += batch.Failed
	runAt := now
	s.stats.LastRunTime = &runAt
	s.stats.NextRunTime = s.nextRunTimeLocked(now)
	s.mu.Unlock()

	s.log.Info().
		Bool("forced", forced).
		Int("successful", batch.Successful).
		Int("failed", batch.Failed).
		Msg("reminder run completed")
	return batch, nil
}

func (s *Scheduler) recordFailure(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FailureCount++
	runAt := now
	s.stats.LastRunTime = &runAt
}

// Preview reports what the cadences would do today without sending.
func (s *Scheduler) Preview(ctx context.Context) ([]service.PreviewItem, error) {
	return s.runner.Preview(ctx, s.clock.Now())
}

func (s *Scheduler) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.stats.NextRunTime
	s.stats = Stats{NextRunTime: next}
}

// Config returns a copy of the current settings, for callers that want to
// patch a field and feed the result back through UpdateConfig.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	cfg.ReminderTimes = make([]string, len(s.cfg.ReminderTimes))
	copy(cfg.ReminderTimes, s.cfg.ReminderTimes)
	return cfg
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := make([]string, len(s.cfg.ReminderTimes))
	copy(times, s.cfg.ReminderTimes)
	return Status{
		Running:           s.running,
		Enabled:           s.cfg.Enabled,
		CheckInterval:     s.cfg.CheckInterval.String(),
		ReminderTimes:     times,
		LastProcessedDate: s.lastProcessedDay,
		Stats:             s.stats,
	}
}

// nextRunTimeLocked finds the earliest configured reminder time at or after
// now, rolling into tomorrow when today's times have all passed.
func (s *Scheduler) nextRunTimeLocked(now time.Time) *time.Time {
	var candidates []time.Time
	for _, raw := range s.cfg.ReminderTimes {
		parsed, err := time.Parse("15:04", raw)
		if err != nil {
			continue
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if at.Before(now) {
			at = at.AddDate(0, 0, 1)
		}
		candidates = append(candidates, at)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	next := candidates[0]
	return &next
}
