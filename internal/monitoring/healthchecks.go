package monitoring

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	HEALTHCHECK_INTERVAL = 15 * time.Second
	HEALTHCHECK_TIMEOUT  = 3 * time.Second
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type probe struct {
	name    string
	check   Check
	healthy atomic.Bool
}

// Monitor runs registered checks on a ticker and keeps the latest result of
// each in an atomic flag.
type Monitor struct {
	interval time.Duration
	mu       sync.RWMutex
	probes   []*probe
}

func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}
	return &Monitor{interval: interval}
}

// Register adds a check. Checks start out healthy until their first run says
// otherwise.
func (m *Monitor) Register(name string, check Check) {
	p := &probe{name: name, check: check}
	p.healthy.Store(true)

	m.mu.Lock()
	m.probes = append(m.probes, p)
	m.mu.Unlock()
}

// Run checks every dependency once and then on every tick until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	probes := append([]*probe(nil), m.probes...)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx)
		}()
	}
	wg.Wait()
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
	defer cancel()

	err := p.check(ctx)
	was := p.healthy.Swap(err == nil)
	switch {
	case err != nil:
		slog.Warn("[HealthCheck] Dependency is unhealthy",
			slog.String("dependency", p.name),
			slog.String("error", err.Error()))
	case !was:
		slog.Info("[HealthCheck] Dependency recovered", slog.String("dependency", p.name))
	}
}

// Snapshot returns the latest state of every dependency.
func (m *Monitor) Snapshot() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.probes))
	for _, p := range m.probes {
		out[p.name] = p.healthy.Load()
	}
	return out
}

func (m *Monitor) Healthy() bool {
	for _, ok := range m.Snapshot() {
		if !ok {
			return false
		}
	}
	return true
}

// Unhealthy lists failing dependencies in name order.
func (m *Monitor) Unhealthy() []string {
	var names []string
	for name, ok := range m.Snapshot() {
		if !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
