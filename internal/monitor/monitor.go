package monitor

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/metrics"
	"github.com/btraven00/linkmedic/internal/model"
)

// Checker validates urls. Its cache is reset before every pass so each pass
// sees fresh results.
type Checker interface {
	ValidateAll(ctx context.Context, urls []string) (map[string]*model.ValidationResult, error)
	ResetCache()
}

// AlertSender accepts alerts without blocking.
type AlertSender interface {
	Send(alert model.MonitoringAlert)
}

// URLSource lists the urls to monitor.
type URLSource func(ctx context.Context) ([]string, error)

// ChangeSignal reports whether the url set may have changed.
type ChangeSignal interface {
	Changed() bool
}

// PassResult summarizes one monitoring pass.
type PassResult struct {
	Started time.Time                 `json:"started"`
	Checked int                       `json:"checked"`
	Counts  map[model.HealthState]int `json:"counts"`
	Alerts  []model.MonitoringAlert   `json:"alerts"`
	Records []model.LinkHealthRecord  `json:"records"`
}

// Monitor owns the health records of one store.
type Monitor struct {
	checker Checker
	store   Store
	alerts  AlertSender
	policy  Policy
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	records map[string]*model.LinkHealthRecord
	recent  []model.MonitoringAlert
}

// recentAlerts bounds the alerts kept for the HTTP view.
const recentAlerts = 100

// New loads the records from store.
func New(ctx context.Context, checker Checker, store Store, alerts AlertSender, policy Policy, logger *zap.Logger) (*Monitor, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load health records: %w", err)
	}

	logger.Debug("loaded health records", zap.Int("records", len(records)))

	return &Monitor{
		checker: checker,
		store:   store,
		alerts:  alerts,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		records: records,
	}, nil
}

// Record returns a copy of the health record of url, if any.
func (m *Monitor) Record(url string) (model.LinkHealthRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[url]
	if !ok {
		return model.LinkHealthRecord{}, false
	}
	return *r, true
}

// Records returns copies of all records, sorted by url. An empty state
// returns every record.
func (m *Monitor) Records(state model.HealthState) []model.LinkHealthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.LinkHealthRecord, 0, len(m.records))
	for _, r := range m.records {
		if state == "" || r.Status == state {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b model.LinkHealthRecord) int { return cmp.Compare(a.URL, b.URL) })

	return out
}

// RecentAlerts returns the latest alerts, newest last.
func (m *Monitor) RecentAlerts() []model.MonitoringAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.recent)
}

// Pass checks urls once, updates and saves their records and raises alerts
// for state changes. When ctx is cancelled mid-pass the urls that finished
// are still recorded.
func (m *Monitor) Pass(ctx context.Context, urls []string) (*PassResult, error) {
	started := m.now()
	m.checker.ResetCache()

	results, checkErr := m.checker.ValidateAll(ctx, urls)

	m.mu.Lock()
	defer m.mu.Unlock()

	pass := &PassResult{Started: started, Counts: make(map[model.HealthState]int)}
	now := m.now()
	for _, u := range urls {
		rec, ok := m.records[u]
		if !ok {
			rec = &model.LinkHealthRecord{URL: u, Status: model.HealthUnknown}
			m.records[u] = rec
		}

		if result := results[u]; result != nil {
			pass.Checked++
			prev, changed := m.policy.Apply(rec, result, now)
			if changed {
				if alert, raise := alertFor(rec, prev, now); raise {
					pass.Alerts = append(pass.Alerts, alert)
					m.recent = append(m.recent, alert)
					metrics.IncAlert(string(alert.Severity))
					if m.alerts != nil {
						m.alerts.Send(alert)
					}
				}
			}
		}

		pass.Counts[rec.Status]++
		pass.Records = append(pass.Records, *rec)
	}
	if n := len(m.recent) - recentAlerts; n > 0 {
		m.recent = slices.Delete(m.recent, 0, n)
	}

	// the store outlives a cancelled pass
	if err := m.store.Save(context.WithoutCancel(ctx), m.records); err != nil {
		return pass, fmt.Errorf("failed to save health records: %w", err)
	}

	gauges := make(map[string]int, len(pass.Counts))
	for state, n := range pass.Counts {
		gauges[string(state)] = n
	}
	metrics.SetHealthStates(gauges)

	m.logger.Info("monitoring pass finished",
		zap.Int("checked", pass.Checked),
		zap.Int("alerts", len(pass.Alerts)),
		zap.Int("broken", pass.Counts[model.HealthBroken]),
		zap.Int("degraded", pass.Counts[model.HealthDegraded]),
		zap.Duration("took", m.now().Sub(started)))

	return pass, checkErr
}

// RunOptions control a long-running monitor.
type RunOptions struct {
	Interval time.Duration
	Source   URLSource
	// Watch, when set, reloads the urls from Source before a pass whenever
	// it reports a change.
	Watch ChangeSignal
	// OnPass is called after every pass.
	OnPass func(*PassResult)
}

// Run passes over the urls every interval until ctx is done. It returns the
// context error on cancellation.
func (m *Monitor) Run(ctx context.Context, opts RunOptions) error {
	urls, err := opts.Source(ctx)
	if err != nil {
		return err
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if opts.Watch != nil && opts.Watch.Changed() {
			refreshed, err := opts.Source(ctx)
			if err != nil {
				m.logger.Warn("keeping previous urls, reload failed", zap.Error(err))
			} else {
				m.logger.Info("corpus changed, reloaded urls", zap.Int("urls", len(refreshed)))
				urls = refreshed
			}
		}

		pass, err := m.Pass(ctx, urls)
		if opts.OnPass != nil && pass != nil {
			opts.OnPass(pass)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("monitoring pass failed", zap.Error(err))
		}

		timer.Reset(opts.Interval)
	}
}
