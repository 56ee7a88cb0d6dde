/*
scheduler.go - Background handover monitor

PURPOSE:
  Periodically looks for cash that is stuck between people:
  - handovers still pending after PendingAfter (the recipient never opened
    a shift, so a manager probably needs to confirm them manually)
  - shifts left open longer than OpenAfter (a worker forgot to close)

  The monitor only reads and logs. It never resolves a handover or closes a
  shift on anyone's behalf.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one check immediately on Start
  - Stop waits for the running check to finish

USAGE:
  monitor := NewHandoverMonitor(store, cfg, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - handlers.go: ConfirmHandover endpoint (manual resolution)
  - cashdesk/handover.go: ManualConfirm
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/frontdesk/cashdesk"
)

// MonitorConfig tunes the HandoverMonitor.
type MonitorConfig struct {
	Enabled      bool
	Interval     time.Duration
	PendingAfter time.Duration
	OpenAfter    time.Duration
}

// MonitorReport is the outcome of one check.
type MonitorReport struct {
	CheckedAt      time.Time
	StaleHandovers []cashdesk.Handover
	LongOpenShifts []cashdesk.Shift
}

// HandoverMonitor reports stale handovers and forgotten shifts.
type HandoverMonitor struct {
	Store  cashdesk.Store
	Config MonitorConfig
	Now    func() time.Time

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHandoverMonitor creates a monitor. Zero durations get defaults.
func NewHandoverMonitor(store cashdesk.Store, cfg MonitorConfig, logger *slog.Logger) *HandoverMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PendingAfter <= 0 {
		cfg.PendingAfter = 24 * time.Hour
	}
	if cfg.OpenAfter <= 0 {
		cfg.OpenAfter = 16 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HandoverMonitor{
		Store:  store,
		Config: cfg,
		Now:    func() time.Time { return time.Now().UTC() },
		log:    logger.With("component", "monitor"),
	}
}

// Start begins the monitor. A stopped monitor can be started again.
func (m *HandoverMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Config.Enabled {
		m.log.Info("monitor disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.Config.Interval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.log.Info("monitor started",
		"interval", m.Config.Interval,
		"pending_after", m.Config.PendingAfter,
		"open_after", m.Config.OpenAfter)
}

// Stop stops the monitor.
func (m *HandoverMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		m.log.Info("monitor stopped")
	}
}

func (m *HandoverMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	m.checkAndLog()

	for {
		select {
		case <-ticker.C:
			m.checkAndLog()
		case <-stop:
			return
		}
	}
}

func (m *HandoverMonitor) checkAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := m.Check(ctx)
	if err != nil {
		m.log.Error("monitor check failed", "error", err)
		return
	}

	for _, h := range report.StaleHandovers {
		m.log.Warn("handover still pending",
			"handover_id", h.ID,
			"from_shift_id", h.FromShiftID,
			"to_staff_id", h.ToStaffID,
			"amount", h.Amount.StringFixed(2),
			"age", report.CheckedAt.Sub(h.CreatedAt).Round(time.Minute))
	}
	for _, s := range report.LongOpenShifts {
		m.log.Warn("shift open for too long",
			"shift_id", s.ID,
			"worker_id", s.WorkerID,
			"opened_at", s.OpenedAt,
			"age", report.CheckedAt.Sub(s.OpenedAt).Round(time.Minute))
	}
	m.log.Debug("monitor check complete",
		"stale_handovers", len(report.StaleHandovers),
		"long_open_shifts", len(report.LongOpenShifts))
}

// Check runs one scan.
func (m *HandoverMonitor) Check(ctx context.Context) (MonitorReport, error) {
	now := m.Now()
	report := MonitorReport{CheckedAt: now}

	pendingCutoff := now.Add(-m.Config.PendingAfter)
	stale, err := m.Store.ListHandovers(ctx, cashdesk.HandoverFilter{
		Statuses:  []cashdesk.HandoverStatus{cashdesk.HandoverPending},
		CreatedTo: &pendingCutoff,
	})
	if err != nil {
		return report, err
	}
	report.StaleHandovers = stale

	open, err := m.Store.ListShifts(ctx, cashdesk.ShiftFilter{Status: cashdesk.ShiftOpen})
	if err != nil {
		return report, err
	}
	openCutoff := now.Add(-m.Config.OpenAfter)
	for _, s := range open {
		if s.OpenedAt.Before(openCutoff) {
			report.LongOpenShifts = append(report.LongOpenShifts, s)
		}
	}
	return report, nil
}
