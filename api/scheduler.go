/*
scheduler.go - Cron-driven settlement runs and pending-remittance expiry

PURPOSE:
  Runs the settlement orchestrator on a schedule (by default over the
  previous calendar month, shortly after month start) and sweeps remittances
  stuck in PENDING past the expiry horizon.

DESIGN:
  - robfig/cron drives both jobs; schedules are standard cron expressions
  - The settlement job settles the previous calendar month: re-running over
    an already-settled period is harmless because eligibility excludes
    claimed records
  - The expiry sweep reports CANCELLED through the lifecycle manager, so
    expired remittances release their claims and the next run retries them

CONFIGURATION:
  - SettlementSchedule:  cron expression for the monthly run
  - ExpirySweepSchedule: cron expression for the sweep
  - PendingExpiry:       how long a remittance may stay PENDING; zero
                         disables the sweep

USAGE:
  scheduler, err := NewScheduler(handler, SchedulerConfig{...})
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateSettlement endpoint (manual runs)
  - settlement/lifecycle.go: Outcome transitions
*/
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/settlement-engine/metrics"
	"github.com/warp/settlement-engine/settlement"
)

// SchedulerConfig carries the cron expressions and expiry horizon.
type SchedulerConfig struct {
	SettlementSchedule  string
	ExpirySweepSchedule string
	PendingExpiry       time.Duration
}

// Scheduler runs settlement and expiry jobs on cron schedules.
type Scheduler struct {
	Handler *Handler
	Config  SchedulerConfig

	cron *cron.Cron
}

// NewScheduler creates a scheduler with both jobs registered.
func NewScheduler(handler *Handler, cfg SchedulerConfig) (*Scheduler, error) {
	s := &Scheduler{
		Handler: handler,
		Config:  cfg,
		cron:    cron.New(),
	}

	if _, err := s.cron.AddFunc(cfg.SettlementSchedule, s.runMonthlySettlement); err != nil {
		return nil, fmt.Errorf("invalid settlement schedule %q: %w", cfg.SettlementSchedule, err)
	}
	if cfg.PendingExpiry > 0 {
		if _, err := s.cron.AddFunc(cfg.ExpirySweepSchedule, s.sweepExpiredRemittances); err != nil {
			return nil, fmt.Errorf("invalid expiry sweep schedule %q: %w", cfg.ExpirySweepSchedule, err)
		}
	}

	return s, nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[Scheduler] Started: settlement %q, expiry sweep %q (horizon %v)",
		s.Config.SettlementSchedule, s.Config.ExpirySweepSchedule, s.Config.PendingExpiry)
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Stopped")
}

// runMonthlySettlement settles the previous calendar month.
func (s *Scheduler) runMonthlySettlement() {
	ctx := context.Background()
	period := settlement.MonthOf(settlement.Today().AddMonths(-1))

	log.Printf("[Scheduler] Running settlement for %s .. %s", period.Start, period.End)

	began := time.Now()
	run, err := s.Handler.Orchestrator.Run(ctx, period)
	if err != nil {
		metrics.ObserveSettlementRun(string(settlement.SettlementFailed), time.Since(began))
		log.Printf("[Scheduler] Settlement failed: %v", err)
		return
	}
	metrics.ObserveSettlementRun(string(run.Status), time.Since(began))
	metrics.AddRemittancesGenerated(run.TotalRemittancesGenerated)

	log.Printf("[Scheduler] Settlement %s: %d remittances, total %s",
		run.ID, run.TotalRemittancesGenerated, run.TotalAmount)
}

// sweepExpiredRemittances cancels remittances stuck in PENDING past the
// expiry horizon. Cancellation releases their claims, so the records settle
// again on the next run.
func (s *Scheduler) sweepExpiredRemittances() {
	ctx := context.Background()
	cutoff := time.Now().Add(-s.Config.PendingExpiry)

	pending, err := s.Handler.Store.ListRemittancesByStatus(ctx, settlement.RemittancePending)
	if err != nil {
		log.Printf("[Scheduler] Expiry sweep failed to list pending remittances: %v", err)
		return
	}

	expired := 0
	for _, rem := range pending {
		if !rem.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Handler.Lifecycle.Report(ctx, rem.ID, settlement.RemittanceCancelled); err != nil {
			// A concurrent outcome report may win; that is fine.
			log.Printf("[Scheduler] Could not expire remittance %s: %v", rem.ID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		metrics.AddExpiredRemittances(expired)
		log.Printf("[Scheduler] Expired %d pending remittances older than %v", expired, s.Config.PendingExpiry)
	}
}
