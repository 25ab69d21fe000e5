package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/siteforge/SiteForge/internal/pkg/billing"
	"github.com/siteforge/SiteForge/internal/pkg/metrics/counter"
)

// Manager owns the periodic reconciliation trigger. Runs are serialized
// through the redis lease, so overlapping managers in different processes
// do not race on the snapshot table.
type Manager struct {
	engine   *billing.Engine
	lease    *billing.RunLease
	interval time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a reconcile scheduler.
func NewManager(engine *billing.Engine, lease *billing.RunLease, interval time.Duration) *Manager {
	return &Manager{
		engine:   engine,
		lease:    lease,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

var (
	globalManager *Manager
	globalMu      sync.RWMutex
)

// Setup installs the process-wide scheduler instance.
func Setup(engine *billing.Engine, lease *billing.RunLease, interval time.Duration) *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = NewManager(engine, lease, interval)
	return globalManager
}

// GetManager returns the process-wide scheduler; nil before Setup.
func GetManager() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// Start begins the periodic reconcile loop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[Scheduler] starting reconcile loop, interval=%s", m.interval)

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.reconcileWorker()
}

// Stop halts the loop and waits for an in-flight run to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] stopping reconcile loop...")
	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.stopCh)
	m.wg.Wait()
	m.running = false
	log.Info("[Scheduler] stopped")
}

func (m *Manager) reconcileWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ticker.C:
			_, _ = m.RunOnce(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// RunOnce executes one lease-guarded reconcile and records run counters.
// Also used by the API trigger endpoints. A nil report with a nil error
// means another run holds the lease; an error means the run (or the lease
// acquisition) actually failed.
func (m *Manager) RunOnce(ctx context.Context) (*billing.RunReport, error) {
	if m.lease != nil {
		token, ok, err := m.lease.Acquire(ctx)
		if err != nil {
			log.Errorf("[Scheduler] lease acquire failed: %v", err)
			return nil, err
		}
		if !ok {
			log.Info("[Scheduler] another reconcile run holds the lease, skipping")
			return nil, nil
		}
		defer m.lease.Release(ctx, token)
	}

	report, err := m.engine.Reconcile(ctx)
	if err != nil {
		log.Errorf("[Scheduler] reconcile failed: %v", err)
		return report, err
	}

	recordRun(report)
	return report, nil
}

func recordRun(report *billing.RunReport) {
	if report == nil {
		return
	}
	for field, n := range map[string]int{
		counter.FieldRuns:          1,
		counter.FieldCancellations: report.Cancelled,
		counter.FieldReactivations: report.Reactivated,
		counter.FieldToggles:       report.TogglesSent,
		counter.FieldNotices:       report.NoticesSent,
	} {
		if err := counter.Add(field, n); err != nil {
			log.Warnf("[Scheduler] counter update failed for %s: %v", field, err)
		}
	}
}
