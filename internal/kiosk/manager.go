package kiosk

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

// Manager owns the kiosk sessions opened through the HTTP API.
type Manager struct {
	recognizer *session.Recognizer
	ledger     ledger.Store
	opts       []Option
	clock      func() time.Time
	max        int

	mu     sync.RWMutex
	kiosks map[string]*Kiosk
}

// NewManager creates a manager. opts are applied to every kiosk it creates.
func NewManager(r *session.Recognizer, store ledger.Store, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		recognizer: r,
		ledger:     store,
		opts:       opts,
		clock:      o.clock,
		max:        o.maxSessions,
		kiosks:     make(map[string]*Kiosk),
	}
}

// Create opens a new kiosk session with a random ID. When the limit is
// reached, sessions idle for longer than constants.KioskIdleTimeout are
// closed first; if none are, Create fails with ErrTooManySessions.
func (m *Manager) Create() (*Kiosk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.kiosks) >= m.max {
		if n := m.pruneLocked(constants.KioskIdleTimeout); n > 0 {
			log.Printf("kiosk: closed %d idle sessions to make room", n)
		}
		if len(m.kiosks) >= m.max {
			return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.max)
		}
	}

	k := New(uuid.New().String(), m.recognizer, m.ledger, m.opts...)
	m.kiosks[k.ID()] = k
	return k, nil
}

// Get returns the kiosk with the given ID.
func (m *Manager) Get(id string) (*Kiosk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kiosks[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return k, nil
}

// Delete closes a kiosk session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.kiosks[id]
	if ok {
		k.Close()
		delete(m.kiosks, id)
	}
	return ok
}

// Len returns the number of open kiosk sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.kiosks)
}

// Prune closes sessions idle for longer than idle and returns how many were closed.
func (m *Manager) Prune(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(idle)
}

func (m *Manager) pruneLocked(idle time.Duration) int {
	cutoff := m.clock().Add(-idle)
	n := 0
	for id, k := range m.kiosks {
		if k.LastActive().Before(cutoff) {
			k.Close()
			delete(m.kiosks, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes idle sessions every interval until ctx is canceled.
func (m *Manager) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(idle); n > 0 {
				log.Printf("kiosk: closed %d idle sessions", n)
			}
		}
	}
}
