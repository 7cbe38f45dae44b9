package metrics

import (
	"sync"
	"time"
)

// Metrics collects pass counters for the monitoring endpoints. One
// instance is built in main and handed to the pipeline and the API;
// there is no package global so tests can run pipelines in parallel.
type Metrics struct {
	mu sync.RWMutex

	// Pass counters
	PassesCompleted int64
	ItemsFetched    int64
	ItemsPersisted  int64
	AlertsSent      int64
	AlertFailures   int64

	// Per-stage drops
	DroppedInvalid    int64
	DroppedIrrelevant int64
	DroppedDuplicate  int64
	AlreadyStored     int64

	// Enrichment
	EnrichmentCalls    int64
	EnrichmentFailures int64

	// Timings
	LastPassDuration    time.Duration
	TotalPassDuration   time.Duration
	AveragePassDuration time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) AddFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += int64(n)
}

func (m *Metrics) AddDroppedInvalid(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedInvalid += int64(n)
}

func (m *Metrics) AddDroppedIrrelevant(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedIrrelevant += int64(n)
}

func (m *Metrics) AddDroppedDuplicate(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedDuplicate += int64(n)
}

func (m *Metrics) AddAlreadyStored(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlreadyStored += int64(n)
}

func (m *Metrics) AddEnrichmentCalls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnrichmentCalls += int64(n)
}

func (m *Metrics) AddEnrichmentFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnrichmentFailures += int64(n)
}

func (m *Metrics) AddAlertsSent(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertsSent += int64(n)
}

func (m *Metrics) AddAlertFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlertFailures += int64(n)
}

func (m *Metrics) AddPersisted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsPersisted += int64(n)
}

// RecordPass closes out one orchestration pass: duration bookkeeping
// plus the healthy flag.
func (m *Metrics) RecordPass(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PassesCompleted++
	m.LastPassDuration = duration
	m.TotalPassDuration += duration
	m.AveragePassDuration = m.TotalPassDuration / time.Duration(m.PassesCompleted)
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"passes_completed":         m.PassesCompleted,
		"items_fetched":            m.ItemsFetched,
		"items_persisted":          m.ItemsPersisted,
		"alerts_sent":              m.AlertsSent,
		"alert_failures":           m.AlertFailures,
		"dropped_invalid":          m.DroppedInvalid,
		"dropped_irrelevant":       m.DroppedIrrelevant,
		"dropped_duplicate":        m.DroppedDuplicate,
		"already_stored":           m.AlreadyStored,
		"enrichment_calls":         m.EnrichmentCalls,
		"enrichment_failures":      m.EnrichmentFailures,
		"last_pass_duration_ms":    m.LastPassDuration.Milliseconds(),
		"average_pass_duration_ms": m.AveragePassDuration.Milliseconds(),
		"last_run_time":            m.LastRunTime.Format(time.RFC3339),
		"last_error_time":          m.LastErrorTime.Format(time.RFC3339),
		"last_error":               m.LastError,
		"is_healthy":               m.IsHealthy,
	}
}
