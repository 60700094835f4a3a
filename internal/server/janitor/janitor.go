// Package janitor periodically purges expired one-time-code state: stale
// challenges, issuance records outside the rate window and lapsed
// elevation grants.
package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/dmitrijs2005/passm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passm/internal/timex"
	"github.com/robfig/cron/v3"
)

// Stats counts what a sweep removed.
type Stats struct {
	Challenges int64
	Issuances  int64
	Grants     int64
}

// Janitor runs Sweep on a cron schedule.
type Janitor struct {
	store      repomanager.Store
	clock      timex.Clock
	log        logging.Logger
	rateWindow time.Duration
	schedule   string

	mu   sync.Mutex
	cron *cron.Cron
}

func New(store repomanager.Store, clock timex.Clock, rateWindow time.Duration, schedule string, log logging.Logger) *Janitor {
	return &Janitor{
		store:      store,
		clock:      clock,
		log:        log.With("module", "janitor"),
		rateWindow: rateWindow,
		schedule:   schedule,
	}
}

// Sweep deletes everything that can no longer affect a decision.
func (j *Janitor) Sweep(ctx context.Context) (Stats, error) {
	var (
		st  Stats
		err error
	)
	now := j.clock.Now()
	r := j.store.Repos()

	if st.Challenges, err = r.Challenges.DeleteExpired(ctx, now); err != nil {
		return st, fmt.Errorf("purge challenges: %w", err)
	}
	if st.Issuances, err = r.Issuances.DeleteBefore(ctx, now.Add(-j.rateWindow)); err != nil {
		return st, fmt.Errorf("purge issuances: %w", err)
	}
	if st.Grants, err = r.Grants.DeleteExpired(ctx, now); err != nil {
		return st, fmt.Errorf("purge grants: %w", err)
	}
	return st, nil
}

// Start schedules sweeps until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.run(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c

	go func() {
		<-ctx.Done()
		j.stop(c)
	}()

	j.log.Info(ctx, "janitor started", "schedule", j.schedule)
	return nil
}

func (j *Janitor) run(ctx context.Context) {
	st, err := j.Sweep(ctx)
	if err != nil {
		j.log.Error(ctx, "sweep failed", "error", err)
		return
	}
	j.log.Debug(ctx, "sweep done", "challenges", st.Challenges, "issuances", st.Issuances, "grants", st.Grants)
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.mu.Unlock()
	j.stop(c)
}

// stop halts c if it is still the active scheduler.
func (j *Janitor) stop(c *cron.Cron) {
	j.mu.Lock()
	if c == nil || j.cron != c {
		j.mu.Unlock()
		return
	}
	j.cron = nil
	j.mu.Unlock()

	<-c.Stop().Done()
}
