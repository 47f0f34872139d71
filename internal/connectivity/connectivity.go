package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"rmtracer/internal/domain"

	"github.com/rs/zerolog"
)

// Monitor polls the backend and turns reachability into an online flag plus
// a transition stream. The initial state is offline until the first
// successful ping.
type Monitor struct {
	backend  domain.Backend
	interval time.Duration
	logger   *zerolog.Logger

	online      atomic.Bool
	transitions chan bool
}

func NewMonitor(backend domain.Backend, interval time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		backend:     backend,
		interval:    interval,
		logger:      logger,
		transitions: make(chan bool, 8),
	}
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Transitions emits the new state on every online/offline edge.
func (m *Monitor) Transitions() <-chan bool {
	return m.transitions
}

// Run polls until the context is cancelled. The first probe happens
// immediately.
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
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.backend.Ping(pingCtx)
	cancel()

	next := err == nil
	prev := m.online.Swap(next)
	if prev == next {
		return
	}

	if next {
		m.logger.Info().Msg("Backend reachable, now online")
	} else {
		m.logger.Warn().Err(err).Msg("Backend unreachable, now offline")
	}

	select {
	case m.transitions <- next:
	default:
		m.logger.Warn().Msg("Connectivity transition dropped, consumer too slow")
	}
}
