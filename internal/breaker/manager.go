package breaker

import "sync"

// Manager owns one Breaker per provider id, created lazily on first use so
// the Selector doesn't need a separate boot-time registration step for
// every provider in config.Config.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, breakers: make(map[string]*Breaker)}
}

func (m *Manager) For(providerID string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[providerID]
	if !ok {
		b = New(m.cfg)
		m.breakers[providerID] = b
	}
	return b
}
