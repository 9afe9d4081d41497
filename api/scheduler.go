/*
scheduler.go - Automated annual-leave provisioning

PURPOSE:
  Periodically grants each employee their annual-leave bucket when a new
  entitlement year begins. The bucket covers one year from the grant
  date; the overlap check inside leave.Grant makes the sweep idempotent,
  so running it again within the same window is a no-op.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps the whole directory each tick
  - Employees under six months of service have no entitlement and are
    skipped until they do

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 24 hours)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewProvisionScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ProvisionAnnual endpoint (manual sweep)
  - leave/grant.go: entitlement table and bucket creation
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/5xRuby/daikichi-sub000/leave"
)

// ProvisionScheduler sweeps the directory and grants annual buckets.
type ProvisionScheduler struct {
	Service       *leave.Service
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewProvisionScheduler creates a new scheduler.
func NewProvisionScheduler(svc *leave.Service, logger *slog.Logger) *ProvisionScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisionScheduler{
		Service:       svc,
		Logger:        logger,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ps *ProvisionScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Logger.Info("provision scheduler disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	ps.Logger.Info("provision scheduler started",
		slog.Duration("interval", ps.CheckInterval))
}

// Stop stops the scheduler. Safe to call more than once.
func (ps *ProvisionScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker == nil || ps.stopped {
		return
	}
	ps.stopped = true
	ps.ticker.Stop()
	close(ps.stop)
	ps.wg.Wait()
	ps.Logger.Info("provision scheduler stopped")
}

func (ps *ProvisionScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.sweep()

	for {
		select {
		case <-ps.ticker.C:
			ps.sweep()
		case <-ps.stop:
			return
		}
	}
}

func (ps *ProvisionScheduler) sweep() {
	ctx := context.Background()
	now := ps.Service.Now()

	employees, err := ps.Service.Store.ListEmployees(ctx)
	if err != nil {
		ps.Logger.Error("provision sweep: listing employees", slog.Any("error", err))
		return
	}

	granted := 0
	for _, e := range employees {
		bucket, err := leave.ProvisionAnnual(ctx, ps.Service.Store, ps.Service.Now, e, now)
		if err != nil {
			if leave.IsValidation(err) {
				// Window already provisioned.
				continue
			}
			ps.Logger.Error("provision sweep: granting",
				slog.String("employee", e.ID), slog.Any("error", err))
			continue
		}
		if bucket != nil {
			granted++
			ps.Logger.Info("annual bucket granted",
				slog.String("employee", e.ID),
				slog.Int("hours", bucket.Quota),
				slog.Int64("bucket", bucket.ID))
		}
	}

	if granted > 0 {
		ps.Logger.Info("provision sweep completed", slog.Int("granted", granted))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ps *ProvisionScheduler) RunNow() {
	ps.sweep()
}
