/*
scheduler.go - Periodic alert sweep

PURPOSE:
  Periodically refresh-derives every stored record and collects the
  expiry/review/audit alerts, so dates that pass while nobody edits a
  record are still surfaced.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps immediately on start, then on every tick
  - Never writes records: a sweep only reads and derives
  - Keeps the last SweepResult for GET /api/alerts/last-sweep

ORDERING:
  Sweep alerts are ordered fatal first, then by record priority
  (Critical first), then by days remaining, then by record ID.

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAlertScheduler(store, engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GET /api/alerts (on-demand sweep)
  - generic/engine.go: Refresh derivation
*/
package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sysmayal/tracking-engine/generic"
	"go.uber.org/zap"
)

const priorityField generic.Field = "priority"

// SweepAlert is one alert found by a sweep, tagged with its record.
type SweepAlert struct {
	RecordID   generic.RecordID   `json:"record_id"`
	EntityType generic.EntityType `json:"entity_type"`
	Priority   generic.Priority   `json:"priority"`
	generic.Alert
}

// SweepFailure is a record the sweep could not fully derive.
type SweepFailure struct {
	RecordID generic.RecordID `json:"record_id"`
	Error    string           `json:"error"`
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	RanAt    time.Time      `json:"ran_at"`
	Today    generic.Date   `json:"today"`
	Records  int            `json:"records"`
	Alerts   []SweepAlert   `json:"alerts"`
	Fatal    int            `json:"fatal"`
	Warnings int            `json:"warnings"`
	Failures []SweepFailure `json:"failures"`
}

// Sweep refresh-derives every record and gathers the alerts.
// Records with bad fields still contribute the alerts of their good fields.
func Sweep(ctx context.Context, store generic.RecordStore, engine *generic.Engine, today generic.Date) (SweepResult, error) {
	result := SweepResult{
		RanAt:    time.Now(),
		Today:    today,
		Alerts:   []SweepAlert{},
		Failures: []SweepFailure{},
	}

	records, err := store.List(ctx, generic.RecordFilter{})
	if err != nil {
		return result, err
	}
	result.Records = len(records)

	for _, rec := range records {
		derived, err := engine.Derive(generic.Input{
			EntityType: rec.EntityType,
			Snapshot:   rec.Fields,
			Trigger:    generic.TriggerRefresh,
			Today:      today,
		})
		if err != nil {
			result.Failures = append(result.Failures, SweepFailure{RecordID: rec.ID, Error: err.Error()})
		}
		if derived == nil {
			continue
		}

		priority, _ := generic.ParsePriority(rec.Fields.String(priorityField))
		for _, a := range derived.Alerts {
			result.Alerts = append(result.Alerts, SweepAlert{
				RecordID:   rec.ID,
				EntityType: rec.EntityType,
				Priority:   priority,
				Alert:      a,
			})
			switch a.Severity {
			case generic.SeverityFatal:
				result.Fatal++
			case generic.SeverityWarning:
				result.Warnings++
			}
		}
	}

	sortSweepAlerts(result.Alerts)
	return result, nil
}

func sortSweepAlerts(alerts []SweepAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() < b.Priority.Weight()
		}
		if a.Days != b.Days {
			return a.Days < b.Days
		}
		return a.RecordID < b.RecordID
	})
}

// =============================================================================
// SCHEDULER
// =============================================================================

// AlertScheduler runs Sweep on a ticker.
type AlertScheduler struct {
	Store         generic.RecordStore
	Engine        *generic.Engine
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Today is the clock used for each sweep.
	Today func() generic.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.RWMutex
	last    *SweepResult
	nextRun time.Time
}

// NewAlertScheduler creates a new scheduler.
func NewAlertScheduler(store generic.RecordStore, engine *generic.Engine, logger *zap.Logger) *AlertScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertScheduler{
		Store:         store,
		Engine:        engine,
		Logger:        logger.Named("scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Today:         generic.Today,
	}
}

// Start begins the scheduler.
func (as *AlertScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		as.Logger.Info("disabled, not starting")
		return
	}
	if as.ticker != nil {
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.stop = make(chan struct{})
	as.scheduleNext()
	as.wg.Add(1)

	go as.run()

	as.Logger.Info("started", zap.Duration("interval", as.CheckInterval))
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (as *AlertScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		as.ticker = nil
		as.lastMu.Lock()
		as.nextRun = time.Time{}
		as.lastMu.Unlock()
		as.Logger.Info("stopped")
	}
}

func (as *AlertScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.RunNow(context.Background())

	for {
		select {
		case <-as.ticker.C:
			as.scheduleNext()
			as.RunNow(context.Background())
		case <-as.stop:
			return
		}
	}
}

// RunNow sweeps once and records the result.
func (as *AlertScheduler) RunNow(ctx context.Context) (SweepResult, error) {
	today := as.Today()
	result, err := Sweep(ctx, as.Store, as.Engine, today)
	if err != nil {
		as.Logger.Error("sweep failed", zap.Error(err))
		return result, err
	}

	for _, a := range result.Alerts {
		if a.Severity != generic.SeverityFatal {
			continue
		}
		as.Logger.Warn("fatal alert",
			zap.String("record_id", string(a.RecordID)),
			zap.String("entity_type", string(a.EntityType)),
			zap.String("kind", string(a.Kind)),
			zap.String("field", string(a.Field)),
			zap.Int("days", a.Days))
	}
	for _, f := range result.Failures {
		as.Logger.Warn("record not fully derived",
			zap.String("record_id", string(f.RecordID)),
			zap.String("error", f.Error))
	}
	as.Logger.Info("sweep completed",
		zap.String("today", today.String()),
		zap.Int("records", result.Records),
		zap.Int("fatal", result.Fatal),
		zap.Int("warnings", result.Warnings))

	as.lastMu.Lock()
	as.last = &result
	as.lastMu.Unlock()
	return result, nil
}

// LastSweep returns the most recent sweep, if any has run.
func (as *AlertScheduler) LastSweep() (SweepResult, bool) {
	as.lastMu.RLock()
	defer as.lastMu.RUnlock()
	if as.last == nil {
		return SweepResult{}, false
	}
	return *as.last, true
}

// GetNextRunTime returns when the next scheduled sweep will occur.
// ok is false while the scheduler is stopped.
func (as *AlertScheduler) GetNextRunTime() (next time.Time, ok bool) {
	as.lastMu.RLock()
	defer as.lastMu.RUnlock()
	return as.nextRun, !as.nextRun.IsZero()
}

func (as *AlertScheduler) scheduleNext() {
	as.lastMu.Lock()
	as.nextRun = time.Now().Add(as.CheckInterval).UTC()
	as.lastMu.Unlock()
}
