package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arvale/aod-service/internal/service"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) set(t time.Time) { f.t = t }

type fakeRunner struct {
	runs    int
	result  service.BatchResult
	err     error
	preview []service.PreviewItem
}

func (f *fakeRunner) Run(_ context.Context, _ time.Time) (service.BatchResult, error) {
	f.runs++
	if f.err != nil {
		return service.BatchResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeRunner) Preview(_ context.Context, _ time.Time) ([]service.PreviewItem, error) {
	return f.preview, nil
}

type fakeClaims struct {
	claimed  map[string]bool
	claimErr error
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claimed: map[string]bool{}}
}

func (f *fakeClaims) Claim(_ context.Context, day string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimed[day] {
		return false, nil
	}
	f.claimed[day] = true
	return true, nil
}

func (f *fakeClaims) Release(_ context.Context, day string) error {
	delete(f.claimed, day)
	return nil
}

func at(hhmm string) time.Time {
	parsed, _ := time.Parse("15:04", hhmm)
	return time.Date(2024, time.June, 10, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		CheckInterval: 60 * time.Second,
		ReminderTimes: []string{"09:00", "14:00"},
	}
}

func newTestScheduler(t *testing.T, cfg Config, runner *fakeRunner, claims *fakeClaims, clock *fakeClock) *Scheduler {
	t.Helper()
	s, err := New(cfg, runner, claims, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"interval too short", Config{CheckInterval: 5 * time.Second, ReminderTimes: []string{"09:00"}}},
		{"interval too long", Config{CheckInterval: 2 * time.Hour, ReminderTimes: []string{"09:00"}}},
		{"no times", Config{CheckInterval: time.Minute}},
		{"malformed time", Config{CheckInterval: time.Minute, ReminderTimes: []string{"25:99"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, &fakeRunner{}, newFakeClaims(), &fakeClock{}, zerolog.Nop()); !errors.Is(err, ErrConfiguration) {
				t.Errorf("New = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestTickOutsideReminderTime(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{t: at("10:30")}
	s := newTestScheduler(t, testConfig(), runner, newFakeClaims(), clock)

	s.Tick(context.Background())
	if runner.runs != 0 {
		t.Errorf("runs = %d, want 0 outside reminder times", runner.runs)
	}
	status := s.Status()
	if status.Stats.NextRunTime == nil {
		t.Error("next run time should still be computed")
	} else if got := status.Stats.NextRunTime.Format("15:04"); got != "14:00" {
		t.Errorf("next run = %s, want 14:00", got)
	}
}

func TestTickAtReminderTimeRunsOncePerDay(t *testing.T) {
	runner := &fakeRunner{result: service.BatchResult{Successful: 3, Failed: 1}}
	clock := &fakeClock{t: at("09:00")}
	s := newTestScheduler(t, testConfig(), runner, newFakeClaims(), clock)

	s.Tick(context.Background())
	if runner.runs != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs)
	}

	// Same day, second configured time: the daily guard holds.
	clock.set(at("14:00"))
	s.Tick(context.Background())
	if runner.runs != 1 {
		t.Errorf("runs = %d, want still 1 after same-day tick", runner.runs)
	}

	// Next day runs again.
	clock.set(at("09:00").AddDate(0, 0, 1))
	s.Tick(context.Background())
	if runner.runs != 2 {
		t.Errorf("runs = %d, want 2 on the next day", runner.runs)
	}

	status := s.Status()
	if status.Stats.TotalProcessed != 8 || status.Stats.SuccessCount != 6 || status.Stats.FailureCount != 2 {
		t.Errorf("stats = %+v, want totals 8/6/2", status.Stats)
	}
}

func TestTickDisabled(t *testing.T) {
	runner := &fakeRunner{}
	cfg := testConfig()
	cfg.Enabled = false
	clock := &fakeClock{t: at("09:00")}
	s := newTestScheduler(t, cfg, runner, newFakeClaims(), clock)

	s.Tick(context.Background())
	if runner.runs != 0 {
		t.Errorf("runs = %d, want 0 while disabled", runner.runs)
	}
	if s.Status().Stats.NextRunTime == nil {
		t.Error("disabled tick must still recompute next run time")
	}

	s.SetEnabled(true)
	s.Tick(context.Background())
	if runner.runs != 1 {
		t.Errorf("runs = %d, want 1 after enabling", runner.runs)
	}
}

func TestDurableClaimBlocksSecondInstance(t *testing.T) {
	claims := newFakeClaims()
	clock := &fakeClock{t: at("09:00")}

	first := newTestScheduler(t, testConfig(), &fakeRunner{}, claims, clock)
	first.Tick(context.Background())

	// A second scheduler (fresh in-memory state, same claims table) must
	// not run the same day again.
	secondRunner := &fakeRunner{}
	second := newTestScheduler(t, testConfig(), secondRunner, claims, clock)
	second.Tick(context.Background())
	if secondRunner.runs != 0 {
		t.Errorf("second instance runs = %d, want 0 (day already claimed)", secondRunner.runs)
	}
	if second.Status().LastProcessedDate != clock.t.Format("2006-01-02") {
		t.Error("second instance should record the claimed day as processed")
	}
}

func TestTriggerNowBypassesGuards(t *testing.T) {
	runner := &fakeRunner{result: service.BatchResult{Successful: 2}}
	clock := &fakeClock{t: at("11:47")} // not a reminder time
	s := newTestScheduler(t, testConfig(), runner, newFakeClaims(), clock)

	batch, err := s.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if batch.Successful != 2 {
		t.Errorf("batch successful = %d, want 2", batch.Successful)
	}
	if runner.runs != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs)
	}

	// The scheduled tick later the same day must not double-send.
	clock.set(at("14:00"))
	s.Tick(context.Background())
	if runner.runs != 1 {
		t.Errorf("runs = %d, want still 1 after manual trigger covered the day", runner.runs)
	}
}

func TestRunErrorReleasesClaimForRetry(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store unreachable")}
	claims := newFakeClaims()
	clock := &fakeClock{t: at("09:00")}
	s := newTestScheduler(t, testConfig(), runner, claims, clock)

	s.Tick(context.Background())
	if runner.runs != 1 {
		t.Fatalf("runs = %d, want 1", runner.runs)
	}
	if s.Status().Stats.FailureCount == 0 {
		t.Error("failure not recorded in stats")
	}
	if claims.claimed[clock.t.Format("2006-01-02")] {
		t.Error("claim not released after failed run")
	}

	// Store recovers; the later configured time retries the same day.
	runner.err = nil
	clock.set(at("14:00"))
	s.Tick(context.Background())
	if runner.runs != 2 {
		t.Errorf("runs = %d, want 2 after retry", runner.runs)
	}
}

func TestResetStats(t *testing.T) {
	runner := &fakeRunner{result: service.BatchResult{Successful: 5}}
	clock := &fakeClock{t: at("09:00")}
	s := newTestScheduler(t, testConfig(), runner, newFakeClaims(), clock)

	s.Tick(context.Background())
	if s.Status().Stats.SuccessCount != 5 {
		t.Fatalf("stats = %+v", s.Status().Stats)
	}
	s.ResetStats()
	stats := s.Status().Stats
	if stats.SuccessCount != 0 || stats.TotalProcessed != 0 || stats.LastRunTime != nil {
		t.Errorf("stats after reset = %+v, want zeroed", stats)
	}
}

// blockingRunner parks inside Run until released, standing in for a slow
// reminder batch.
type blockingRunner struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, _ time.Time) (service.BatchResult, error) {
	close(r.entered)
	<-r.release
	return service.BatchResult{Successful: 1}, nil
}

func (r *blockingRunner) Preview(_ context.Context, _ time.Time) ([]service.PreviewItem, error) {
	return nil, nil
}

// startInFlightRun boots a real tick loop and blocks a run inside it: the
// returned runner is parked in Run until release is closed.
func startInFlightRun(t *testing.T) (*Scheduler, *blockingRunner) {
	t.Helper()
	runner := &blockingRunner{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	cfg := Config{
		Enabled:       true,
		CheckInterval: 10 * time.Second,
		ReminderTimes: []string{"09:00"},
	}
	s := newTestSchedulerWithRunner(t, cfg, runner)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-runner.entered:
	case <-time.After(30 * time.Second):
		t.Fatal("tick never reached the runner")
	}
	return s, runner
}

func newTestSchedulerWithRunner(t *testing.T, cfg Config, runner CadenceRunner) *Scheduler {
	t.Helper()
	s, err := New(cfg, runner, newFakeClaims(), &fakeClock{t: at("09:00")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStopDuringInFlightRun(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real tick interval")
	}
	s, runner := startInFlightRun(t)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	// Stop must wait for the run, but without holding the lock: other
	// controls stay responsive while the run is still parked.
	statusDone := make(chan Status, 1)
	go func() { statusDone <- s.Status() }()
	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked while Stop waits for the in-flight run")
	}
	select {
	case <-stopped:
		t.Fatal("Stop returned while the run was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the run completed")
	}
	if s.Status().Running {
		t.Error("scheduler still reports running after Stop")
	}
}

func TestUpdateConfigDuringInFlightRun(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real tick interval")
	}
	s, runner := startInFlightRun(t)
	defer func() {
		s.Stop()
	}()

	updated := make(chan error, 1)
	go func() {
		cfg := s.Config()
		cfg.CheckInterval = 20 * time.Second
		updated <- s.UpdateConfig(cfg)
	}()

	statusDone := make(chan Status, 1)
	go func() { statusDone <- s.Status() }()
	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked while UpdateConfig waits for the in-flight run")
	}

	close(runner.release)
	select {
	case err := <-updated:
		if err != nil {
			t.Fatalf("UpdateConfig: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("UpdateConfig did not return after the run completed")
	}
	if got := s.Status().CheckInterval; got != "20s" {
		t.Errorf("check interval = %s, want 20s", got)
	}
}

func TestConfigReturnsSnapshot(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &fakeRunner{}, newFakeClaims(), &fakeClock{t: at("08:00")})

	cfg := s.Config()
	if cfg.CheckInterval != 60*time.Second || len(cfg.ReminderTimes) != 2 {
		t.Fatalf("Config = %+v, want the boot settings", cfg)
	}
	cfg.ReminderTimes[0] = "23:59"
	if got := s.Status().ReminderTimes[0]; got != "09:00" {
		t.Errorf("mutating the snapshot leaked into the scheduler: %s", got)
	}
}

func TestUpdateConfigValidates(t *testing.T) {
	s := newTestScheduler(t, testConfig(), &fakeRunner{}, newFakeClaims(), &fakeClock{t: at("08:00")})
	bad := testConfig()
	bad.ReminderTimes = []string{"9am"}
	if err := s.UpdateConfig(bad); !errors.Is(err, ErrConfiguration) {
		t.Errorf("UpdateConfig = %v, want ErrConfiguration", err)
	}

	good := testConfig()
	good.ReminderTimes = []string{"06:30"}
	if err := s.UpdateConfig(good); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if got := s.Status().ReminderTimes; len(got) != 1 || got[0] != "06:30" {
		t.Errorf("reminder times = %v, want [06:30]", got)
	}
}
