package cleanup

import (
	"sync"
	"time"
)

const maxRecordedRuns = 50

type RunMetrics struct {
	RunID     string        `json:"run_id"`
	Trigger   string        `json:"trigger"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Deleted   int           `json:"deleted"`
	Failures  int           `json:"failures"`
	Purged    int64         `json:"codes_purged"`
}

// MetricsCollector remembers the most recent sweeps.
type MetricsCollector struct {
	metrics map[string]*RunMetrics
	order   []string
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*RunMetrics),
		now:     time.Now,
	}
}

func (mc *MetricsCollector) StartRun(runID, trigger string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics[runID] = &RunMetrics{
		RunID:     runID,
		Trigger:   trigger,
		StartTime: mc.now(),
		Status:    "running",
	}
	mc.order = append(mc.order, runID)
	if len(mc.order) > maxRecordedRuns {
		delete(mc.metrics, mc.order[0])
		mc.order = mc.order[1:]
	}
}

func (mc *MetricsCollector) EndRun(runID string, report *Report, status string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, exists := mc.metrics[runID]
	if !exists {
		return
	}
	m.EndTime = mc.now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Status = status
	if report != nil {
		m.Deleted = report.Deleted
		m.Failures = len(report.Errors)
		m.Purged = report.CodesPurged
	}
}

// Last returns the most recent run, if any.
func (mc *MetricsCollector) Last() (RunMetrics, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.order) == 0 {
		return RunMetrics{}, false
	}
	return *mc.metrics[mc.order[len(mc.order)-1]], true
}

func (mc *MetricsCollector) Runs() []RunMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]RunMetrics, 0, len(mc.order))
	for _, id := range mc.order {
		out = append(out, *mc.metrics[id])
	}
	return out
}
