/*
orchestrator.go - Per-worker settlement runs over a period

PURPOSE:
  Drives eligibility selection -> net evaluation -> remittance building for
  every worker with unsettled work in a period, and aggregates the run into a
  Settlement record.

CONCURRENCY:
  Settlement runs may be triggered repeatedly or overlap for the same period
  (an operator re-invoking the run, a scheduled retry). Two attempts for the
  SAME worker must serialize; different workers settle fully in parallel with
  no shared state. The orchestrator holds an exclusive section keyed by worker
  id for the select/evaluate/build sequence. The store's conditional claim is
  the second line of defense: even without the lock, two runs cannot both
  claim the same record.

IDEMPOTENCY:
  Re-running an already-settled period is a no-op by construction: the second
  run's selection finds nothing to claim (everything is held by a PAID or
  still-PENDING remittance) and produces no new remittance.
*/
package settlement

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Orchestrator runs settlements across workers for a period.
type Orchestrator struct {
	Store  Store
	Policy NetPolicy

	// Clock is replaceable for tests. Defaults to time.Now.
	Clock func() time.Time

	mu          sync.Mutex
	workerLocks map[WorkerID]*sync.Mutex
}

// NewOrchestrator creates an orchestrator with the carry-forward net policy.
func NewOrchestrator(store Store) *Orchestrator {
	return &Orchestrator{
		Store:       store,
		Policy:      CarryForward{},
		workerLocks: make(map[WorkerID]*sync.Mutex),
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

// lockWorker returns the exclusive section for a worker, creating it on first
// use. The same lock instance is shared by every run in this process, so two
// in-flight settlement attempts for one worker serialize.
func (o *Orchestrator) lockWorker(id WorkerID) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.workerLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.workerLocks[id] = lock
	}
	return lock
}

// Run settles every worker with unsettled work in the period and records the
// run as a Settlement. Workers whose net is zero or negative are silent
// no-ops: they do not increment the remittance counter and produce no
// remittance row. On a hard storage failure the run stops, is recorded as
// FAILED, and the error is surfaced; re-running the period is always safe.
func (o *Orchestrator) Run(ctx context.Context, period Period) (Settlement, error) {
	if err := period.Validate(); err != nil {
		return Settlement{}, err
	}

	run := Settlement{
		ID:          SettlementID(uuid.NewString()),
		Period:      period,
		Status:      SettlementCompleted,
		TotalAmount: decimal.Zero,
		RunAt:       o.now(),
	}

	workers, err := o.Store.WorkersWithUnsettledWork(ctx, period)
	if err != nil {
		return Settlement{}, err
	}

	for _, worker := range workers {
		remittance, err := o.settleWorker(ctx, run.ID, worker, period)
		if err != nil {
			run.Status = SettlementFailed
			if saveErr := o.Store.SaveSettlement(ctx, run); saveErr != nil {
				log.Printf("[Settlement] failed to record failed run %s: %v", run.ID, saveErr)
			}
			return Settlement{}, err
		}
		if remittance != nil {
			run.TotalRemittancesGenerated++
			run.TotalAmount = run.TotalAmount.Add(remittance.NetAmount)
		}
	}

	if err := o.Store.SaveSettlement(ctx, run); err != nil {
		return Settlement{}, err
	}

	return run, nil
}

// settleWorker runs select -> evaluate -> build for one worker under the
// worker's exclusive section. A claim conflict means another attempt got
// there between our selection and our claim; selection is re-run once from
// scratch rather than partially retried.
func (o *Orchestrator) settleWorker(ctx context.Context, settlementID SettlementID, worker WorkerID, period Period) (*Remittance, error) {
	lock := o.lockWorker(worker)
	lock.Lock()
	defer lock.Unlock()

	selector := &Selector{Store: o.Store}
	builder := &Builder{Store: o.Store, Clock: o.Clock}

	const attempts = 2
	for attempt := 1; ; attempt++ {
		set, err := selector.Select(ctx, worker, period)
		if err != nil {
			return nil, err
		}
		if set.Empty() {
			return nil, nil
		}

		result := o.Policy.Evaluate(set)
		if !result.Payable {
			return nil, nil
		}

		remittance, err := builder.Build(ctx, settlementID, set, result)
		if err == nil {
			return remittance, nil
		}
		if !IsRetryable(err) || attempt >= attempts {
			return nil, err
		}
		log.Printf("[Settlement] claim conflict for worker %s, re-selecting: %v", worker, err)
	}
}
