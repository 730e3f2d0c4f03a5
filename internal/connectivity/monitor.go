// Package connectivity turns remote reachability into an online/offline
// signal. The reconciliation engine listens for the offline→online edge.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by remote.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	online bool
	edges  chan bool
}

// NewMonitor starts offline; the first successful probe produces the initial
// offline→online edge.
func NewMonitor(pinger Pinger, interval time.Duration, log *zap.Logger) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		log:      log,
		edges:    make(chan bool, 8),
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Edges delivers the new state on every transition.
func (m *Monitor) Edges() <-chan bool {
	return m.edges
}

// Set forces a connectivity state (explicit offline toggle, tests). A no-op
// when the state is unchanged.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if !changed {
		return
	}
	select {
	case m.edges <- online:
	default:
		m.log.Warn("connectivity edge dropped, consumer lagging", zap.Bool("online", online))
	}
}

// Run probes the remote on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.pinger.Ping(probeCtx)
	if err != nil && ctx.Err() == nil {
		m.log.Debug("connectivity probe failed", zap.Error(err))
	}
	m.Set(err == nil)
}
