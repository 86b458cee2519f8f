// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements settlement.Store with plain maps. The single mutex makes
// every operation atomic, which is exactly the transactional guarantee the
// engine requires from CreateRemittance and TransitionRemittance.
type Memory struct {
	mu sync.RWMutex

	workers     map[settlement.WorkerID]settlement.Worker
	worklogs    map[settlement.WorkLogID]settlement.WorkLog
	segments    map[settlement.SegmentID]settlement.TimeSegment
	adjustments map[settlement.AdjustmentID]settlement.Adjustment
	remittances map[settlement.RemittanceID]settlement.Remittance
	lines       map[settlement.RemittanceLineID]settlement.RemittanceLine
	settlements map[settlement.SettlementID]settlement.Settlement
}

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.workers = make(map[settlement.WorkerID]settlement.Worker)
	m.worklogs = make(map[settlement.WorkLogID]settlement.WorkLog)
	m.segments = make(map[settlement.SegmentID]settlement.TimeSegment)
	m.adjustments = make(map[settlement.AdjustmentID]settlement.Adjustment)
	m.remittances = make(map[settlement.RemittanceID]settlement.Remittance)
	m.lines = make(map[settlement.RemittanceLineID]settlement.RemittanceLine)
	m.settlements = make(map[settlement.SettlementID]settlement.Settlement)
}

// =============================================================================
// WORKERS AND WORKLOGS
// =============================================================================

func (m *Memory) SaveWorker(_ context.Context, w settlement.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
	return nil
}

func (m *Memory) GetWorker(_ context.Context, id settlement.WorkerID) (*settlement.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.workers[id]; ok {
		return &w, nil
	}
	return nil, nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]settlement.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]settlement.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveWorkLog(_ context.Context, wl settlement.WorkLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worklogs[wl.ID] = wl
	return nil
}

func (m *Memory) GetWorkLog(_ context.Context, id settlement.WorkLogID) (*settlement.WorkLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if wl, ok := m.worklogs[id]; ok {
		return &wl, nil
	}
	return nil, nil
}

func (m *Memory) LoadWorkLogDetails(_ context.Context) ([]settlement.WorkLogDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	details := make(map[settlement.WorkLogID]*settlement.WorkLogDetail, len(m.worklogs))
	var order []settlement.WorkLogID
	for id, wl := range m.worklogs {
		details[id] = &settlement.WorkLogDetail{
			WorkLog:     wl,
			ClaimStatus: make(map[settlement.SegmentID]settlement.RemittanceStatus),
		}
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	for _, seg := range m.segments {
		d, ok := details[seg.WorkLogID]
		if !ok {
			continue
		}
		d.Segments = append(d.Segments, seg)
		if seg.RemittanceLineID != nil {
			if status, ok := m.statusOfLineLocked(*seg.RemittanceLineID); ok {
				d.ClaimStatus[seg.ID] = status
			}
		}
	}

	for _, adj := range m.adjustments {
		if adj.WorkLogID == nil {
			continue
		}
		if d, ok := details[*adj.WorkLogID]; ok {
			d.Adjustments = append(d.Adjustments, adj)
		}
	}

	result := make([]settlement.WorkLogDetail, 0, len(order))
	for _, id := range order {
		d := details[id]
		sort.Slice(d.Segments, func(i, j int) bool { return d.Segments[i].ID < d.Segments[j].ID })
		sort.Slice(d.Adjustments, func(i, j int) bool { return d.Adjustments[i].ID < d.Adjustments[j].ID })
		result = append(result, *d)
	}
	return result, nil
}

// =============================================================================
// SEGMENTS AND ADJUSTMENTS
// =============================================================================

func (m *Memory) SaveSegment(_ context.Context, s settlement.TimeSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[s.ID] = s
	return nil
}

func (m *Memory) SaveAdjustment(_ context.Context, a settlement.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments[a.ID] = a
	return nil
}

func (m *Memory) SegmentsByWorkLog(_ context.Context, id settlement.WorkLogID) ([]settlement.TimeSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.TimeSegment
	for _, seg := range m.segments {
		if seg.WorkLogID == id {
			result = append(result, seg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SegmentDate.Equal(result[j].SegmentDate) {
			return result[i].SegmentDate.Before(result[j].SegmentDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// ELIGIBILITY READS
// =============================================================================

// statusOfLineLocked resolves a claim reference to the claiming remittance's
// current status. Callers must hold at least the read lock.
func (m *Memory) statusOfLineLocked(lineID settlement.RemittanceLineID) (settlement.RemittanceStatus, bool) {
	line, ok := m.lines[lineID]
	if !ok {
		return "", false
	}
	r, ok := m.remittances[line.RemittanceID]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// unclaimedLocked applies the eligibility rule to a claim reference: eligible
// when never claimed, or when the claiming remittance is FAILED/CANCELLED.
func (m *Memory) unclaimedLocked(ref *settlement.RemittanceLineID) bool {
	if ref == nil {
		return true
	}
	status, ok := m.statusOfLineLocked(*ref)
	if !ok {
		return true
	}
	return status.ReleasesClaims()
}

func (m *Memory) UnsettledSegments(_ context.Context, worker settlement.WorkerID, period settlement.Period) ([]settlement.TimeSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.TimeSegment
	for _, seg := range m.segments {
		wl, ok := m.worklogs[seg.WorkLogID]
		if !ok || wl.WorkerID != worker {
			continue
		}
		if seg.Deleted() || !period.Contains(seg.SegmentDate) {
			continue
		}
		if m.unclaimedLocked(seg.RemittanceLineID) {
			result = append(result, seg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SegmentDate.Equal(result[j].SegmentDate) {
			return result[i].SegmentDate.Before(result[j].SegmentDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) UnsettledAdjustments(_ context.Context, worker settlement.WorkerID) ([]settlement.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.Adjustment
	for _, adj := range m.adjustments {
		if adj.WorkerID != worker {
			continue
		}
		if m.unclaimedLocked(adj.RemittanceLineID) {
			result = append(result, adj)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) WorkersWithUnsettledWork(_ context.Context, period settlement.Period) ([]settlement.WorkerID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hasWorkLog := make(map[settlement.WorkerID]bool)
	for _, wl := range m.worklogs {
		hasWorkLog[wl.WorkerID] = true
	}

	eligible := make(map[settlement.WorkerID]bool)
	for _, seg := range m.segments {
		wl, ok := m.worklogs[seg.WorkLogID]
		if !ok || seg.Deleted() || !period.Contains(seg.SegmentDate) {
			continue
		}
		if m.unclaimedLocked(seg.RemittanceLineID) {
			eligible[wl.WorkerID] = true
		}
	}
	for _, adj := range m.adjustments {
		// Workers with no worklogs at all never enter a run.
		if !hasWorkLog[adj.WorkerID] {
			continue
		}
		if m.unclaimedLocked(adj.RemittanceLineID) {
			eligible[adj.WorkerID] = true
		}
	}

	result := make([]settlement.WorkerID, 0, len(eligible))
	for id := range eligible {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// =============================================================================
// REMITTANCES - Atomic claim-and-create, conditional transitions
// =============================================================================

func (m *Memory) CreateRemittance(_ context.Context, r settlement.Remittance, lines []settlement.RemittanceLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Conditional claim: every source must still be unclaimed before anything
	// is written. This is the all-or-nothing point of the engine.
	for _, line := range lines {
		switch line.SourceType {
		case settlement.SourceSegment:
			seg, ok := m.segments[settlement.SegmentID(line.SourceID)]
			if !ok || seg.Deleted() || !m.unclaimedLocked(seg.RemittanceLineID) {
				return &settlement.ClaimConflictError{SourceType: line.SourceType, SourceID: line.SourceID}
			}
		case settlement.SourceAdjustment:
			adj, ok := m.adjustments[settlement.AdjustmentID(line.SourceID)]
			if !ok || !m.unclaimedLocked(adj.RemittanceLineID) {
				return &settlement.ClaimConflictError{SourceType: line.SourceType, SourceID: line.SourceID}
			}
		}
	}

	m.remittances[r.ID] = r
	for _, line := range lines {
		m.lines[line.ID] = line
		lineID := line.ID
		switch line.SourceType {
		case settlement.SourceSegment:
			seg := m.segments[settlement.SegmentID(line.SourceID)]
			seg.RemittanceLineID = &lineID
			m.segments[seg.ID] = seg
		case settlement.SourceAdjustment:
			adj := m.adjustments[settlement.AdjustmentID(line.SourceID)]
			adj.RemittanceLineID = &lineID
			m.adjustments[adj.ID] = adj
		}
	}
	return nil
}

func (m *Memory) GetRemittance(_ context.Context, id settlement.RemittanceID) (*settlement.Remittance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.remittances[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Memory) RemittanceLines(_ context.Context, id settlement.RemittanceID) ([]settlement.RemittanceLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.RemittanceLine
	for _, line := range m.lines {
		if line.RemittanceID == id {
			result = append(result, line)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (m *Memory) RemittancesBySettlement(_ context.Context, id settlement.SettlementID) ([]settlement.Remittance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.Remittance
	for _, r := range m.remittances {
		if r.SettlementID == id {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) ListRemittancesByStatus(_ context.Context, status settlement.RemittanceStatus) ([]settlement.Remittance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []settlement.Remittance
	for _, r := range m.remittances {
		if r.Status == status {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) TransitionRemittance(_ context.Context, id settlement.RemittanceID, to settlement.RemittanceStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.remittances[id]
	if !ok {
		return settlement.ErrRemittanceNotFound
	}
	if !r.Status.CanTransitionTo(to) {
		return &settlement.InvalidTransitionError{RemittanceID: id, From: r.Status, To: to}
	}

	r.Status = to
	if to == settlement.RemittancePaid {
		paidAt := at
		r.PaidAt = &paidAt
	}
	m.remittances[id] = r

	if to.ReleasesClaims() {
		for _, line := range m.lines {
			if line.RemittanceID != id {
				continue
			}
			switch line.SourceType {
			case settlement.SourceSegment:
				if seg, ok := m.segments[settlement.SegmentID(line.SourceID)]; ok {
					seg.RemittanceLineID = nil
					m.segments[seg.ID] = seg
				}
			case settlement.SourceAdjustment:
				if adj, ok := m.adjustments[settlement.AdjustmentID(line.SourceID)]; ok {
					adj.RemittanceLineID = nil
					m.adjustments[adj.ID] = adj
				}
			}
		}
	}
	return nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func (m *Memory) SaveSettlement(_ context.Context, s settlement.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[s.ID] = s
	return nil
}

func (m *Memory) ListSettlements(_ context.Context) ([]settlement.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]settlement.Settlement, 0, len(m.settlements))
	for _, s := range m.settlements {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RunAt.Equal(result[j].RunAt) {
			return result[i].RunAt.Before(result[j].RunAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}
