package wakelock

import (
	"sync"

	"github.com/nekomusic/playd/internal/ports"
)

// NoopLock tracks held state without touching the host power policy.
// Used when the system bus is unavailable and in tests.
type NoopLock struct {
	mu   sync.Mutex
	held bool
}

// NewNoopLock creates a lock that only tracks state.
func NewNoopLock() *NoopLock {
	return &NoopLock{}
}

// Acquire marks the lock held.
func (n *NoopLock) Acquire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held = true
}

// Release marks the lock released.
func (n *NoopLock) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.held = false
}

// Held reports the tracked state.
func (n *NoopLock) Held() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.held
}

// Ensure both implementations satisfy the interface.
var (
	_ ports.WakeLock = (*NoopLock)(nil)
	_ ports.WakeLock = (*LogindLock)(nil)
)
