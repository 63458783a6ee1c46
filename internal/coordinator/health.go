package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkerHealthState is a worker's health classification.
type WorkerHealthState string

const (
	WorkerHealthy      WorkerHealthState = "healthy"
	WorkerUnhealthy    WorkerHealthState = "unhealthy"
	WorkerDisconnected WorkerHealthState = "disconnected"
)

const defaultHeartbeatInterval = 30 * time.Second

// workerHealth tracks one worker's consecutive missed heartbeats.
type workerHealth struct {
	addr   string
	misses int
	state  WorkerHealthState
}

// HealthMonitor sends a heartbeat to every worker on an interval and
// reclassifies workers that miss it: unhealthy after one miss,
// disconnected after two.
type HealthMonitor struct {
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	workers map[string]*workerHealth
	rpcs    map[string]*RPC

	onChange func(addr string, state WorkerHealthState)
}

// NewHealthMonitor builds a monitor. interval<=0 uses the default heartbeat
// interval.
func NewHealthMonitor(interval time.Duration, log logrus.FieldLogger) *HealthMonitor {
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	return &HealthMonitor{
		interval: interval,
		log:      log,
		workers:  make(map[string]*workerHealth),
		rpcs:     make(map[string]*RPC),
	}
}

// Watch registers a worker for heartbeating.
func (m *HealthMonitor) Watch(addr string, rpc *RPC) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[addr] = &workerHealth{addr: addr, state: WorkerHealthy}
	m.rpcs[addr] = rpc
}

// OnChange registers a callback invoked whenever a worker's health state
// changes.
func (m *HealthMonitor) OnChange(fn func(addr string, state WorkerHealthState)) {
	m.onChange = fn
}

// State returns a worker's current classification.
func (m *HealthMonitor) State(addr string) WorkerHealthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workers[addr]; ok {
		return w.state
	}
	return WorkerDisconnected
}

// Run beats until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.beatAll(ctx)
		}
	}
}

func (m *HealthMonitor) beatAll(ctx context.Context) {
	m.mu.Lock()
	addrs := make([]string, 0, len(m.workers))
	for addr := range m.workers {
		addrs = append(addrs, addr)
	}
	m.mu.Unlock()

	for _, addr := range addrs {
		m.beat(ctx, addr)
	}
}

func (m *HealthMonitor) beat(ctx context.Context, addr string) {
	m.mu.Lock()
	rpc, ok := m.rpcs[addr]
	m.mu.Unlock()
	if !ok {
		return
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := rpc.Health(hctx)

	m.mu.Lock()
	w := m.workers[addr]
	if w == nil {
		m.mu.Unlock()
		return
	}
	prev := w.state
	if err != nil {
		w.misses++
		switch {
		case w.misses >= 2:
			w.state = WorkerDisconnected
		default:
			w.state = WorkerUnhealthy
		}
	} else {
		w.misses = 0
		w.state = WorkerHealthy
	}
	changed := w.state != prev
	state := w.state
	m.mu.Unlock()

	if changed {
		if m.log != nil {
			m.log.WithField("worker", addr).WithField("state", state).Warn("worker health changed")
		}
		if m.onChange != nil {
			m.onChange(addr, state)
		}
	}
}
