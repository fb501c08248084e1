package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is a cache that can be swept for expired entries.
type Cleaner interface {
	Cleanup() int
	Size() int
	Metrics() Metrics
}

// Manager periodically sweeps registered caches and reports their
// statistics.
type Manager struct {
	mu       sync.Mutex
	caches   map[string]Cleaner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager sweeping at the given interval. An
// interval of zero defaults to one minute.
func NewManager(interval time.Duration, logger *slog.Logger) *Manager {
	if interval == 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		caches:   make(map[string]Cleaner),
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Register adds a named cache to the sweep.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	m.caches[name] = c
	m.mu.Unlock()
}

// Stop stops the background sweep.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// LogStats logs statistics for all registered caches.
func (m *Manager) LogStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.caches {
		metrics := c.Metrics()
		m.logger.Info("cache stats",
			slog.String("cache", name),
			slog.Group("metrics",
				slog.Int64("hits", metrics.Hits),
				slog.Int64("misses", metrics.Misses),
				slog.Int64("evictions", metrics.Evictions),
				slog.Int64("expirations", metrics.Expirations),
				slog.Float64("hit_rate", metrics.HitRate()),
			),
			slog.Int("size", c.Size()),
		)
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, c := range m.caches {
		if removed := c.Cleanup(); removed > 0 {
			m.logger.Debug("cache cleanup",
				slog.String("cache", name),
				slog.Int("removed", removed),
			)
		}
	}
}
