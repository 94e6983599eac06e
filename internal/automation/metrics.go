package automation

import (
	"sync/atomic"
	"time"
)

// CycleMetrics tracks engine activity with atomic counters. Exported via
// Engine.Stats for the ops endpoint; prometheus counterparts live in
// pkg/prom.
type CycleMetrics struct {
	cyclesRun        int64
	actionsExecuted  int64
	ruleFailures     int64
	dispatchFailures int64
	totalCycleNs     int64
	startedNs        int64
}

func NewCycleMetrics() *CycleMetrics {
	return &CycleMetrics{startedNs: time.Now().UnixNano()}
}

func (m *CycleMetrics) RecordCycle(d time.Duration) {
	atomic.AddInt64(&m.cyclesRun, 1)
	atomic.AddInt64(&m.totalCycleNs, int64(d))
}

func (m *CycleMetrics) RecordAction()          { atomic.AddInt64(&m.actionsExecuted, 1) }
func (m *CycleMetrics) RecordRuleFailure()     { atomic.AddInt64(&m.ruleFailures, 1) }
func (m *CycleMetrics) RecordDispatchFailure() { atomic.AddInt64(&m.dispatchFailures, 1) }

func (m *CycleMetrics) Stats() map[string]interface{} {
	cycles := atomic.LoadInt64(&m.cyclesRun)
	totalNs := atomic.LoadInt64(&m.totalCycleNs)

	avg := time.Duration(0)
	if cycles > 0 {
		avg = time.Duration(totalNs / cycles)
	}
	return map[string]interface{}{
		"cycles_run":        cycles,
		"actions_executed":  atomic.LoadInt64(&m.actionsExecuted),
		"rule_failures":     atomic.LoadInt64(&m.ruleFailures),
		"dispatch_failures": atomic.LoadInt64(&m.dispatchFailures),
		"avg_cycle_ms":      avg.Milliseconds(),
		"uptime_seconds":    time.Since(time.Unix(0, atomic.LoadInt64(&m.startedNs))).Seconds(),
	}
}
