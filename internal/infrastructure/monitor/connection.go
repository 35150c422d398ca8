package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger is any dependency that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type probe struct {
	name     string
	pinger   Pinger
	required bool
}

// Monitor probes registered dependencies on a cron schedule and keeps the
// latest result for the health endpoint.
type Monitor struct {
	probes  []probe
	timeout time.Duration

	status Status
	mu     sync.RWMutex

	cron     *cron.Cron
	interval time.Duration
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		timeout:  3 * time.Second,
		interval: interval,
		logger:   logger,
	}
}

// Register adds a probe. Required probes decide overall health. Call before
// Start.
func (m *Monitor) Register(name string, pinger Pinger, required bool) {
	if pinger == nil {
		return
	}
	m.probes = append(m.probes, probe{name: name, pinger: pinger, required: required})
}

func (m *Monitor) Start() error {
	m.Refresh(context.Background())

	m.cron = cron.New()
	schedule := fmt.Sprintf("@every %s", m.interval)
	if _, err := m.cron.AddFunc(schedule, func() { m.Refresh(context.Background()) }); err != nil {
		return fmt.Errorf("schedule health probes: %w", err)
	}
	m.cron.Start()
	return nil
}

func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

func (m *Monitor) IsOnline() bool {
	return m.GetStatus().Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Refresh runs every probe concurrently and replaces the stored status.
func (m *Monitor) Refresh(ctx context.Context) {
	results := make([]ComponentStatus, len(m.probes))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range m.probes {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			started := time.Now()
			err := p.pinger.Ping(probeCtx)
			results[i] = ComponentStatus{
				Online:   err == nil,
				Required: p.required,
				Latency:  time.Since(started),
			}
			if err != nil {
				results[i].Error = err.Error()
				m.logger.Warn("health probe failed", zap.String("component", p.name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Status{
		Components: make(map[string]ComponentStatus, len(m.probes)),
		LastCheck:  time.Now().UTC(),
	}
	for i, p := range m.probes {
		status.Components[p.name] = results[i]
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
