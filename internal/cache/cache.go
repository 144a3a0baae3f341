// Package cache provides a TTL-bounded LRU cache and a manager that sweeps
// expired entries in the background.
package cache

import (
	"sync"
	"time"

	"expenses/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over registered caches.
type Manager struct {
	mu      sync.Mutex
	caches  []Cleaner
	logger  *log.Logger
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		logger: log.OrDiscard(logger),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup sweeps every interval until Stop. Calling it twice is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.run(interval)
}

// Sweep cleans every registered cache once and returns the number of entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, n)
			}
		case <-m.stop:
			return
		}
	}
}

// Stop ends the cleanup loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	close(m.stop)
	<-m.done
}
