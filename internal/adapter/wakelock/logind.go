// Package wakelock keeps the host awake during playback through the
// systemd-logind idle inhibitor.
package wakelock

import (
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
)

// safetyExpiry caps how long a single acquisition may keep the host awake.
// A lock that old releases itself; a healthy playback session re-acquires on
// the next track start.
const safetyExpiry = 10 * time.Minute

// LogindLock holds a logind idle inhibitor while playback is active.
// The inhibitor is an open file descriptor returned by the Inhibit call;
// closing it releases the lock.
//
// Thread-safety: This implementation is thread-safe.
type LogindLock struct {
	mu sync.Mutex

	conn *dbus.Conn
	log  *slog.Logger

	fd         int
	held       bool
	acquiredAt time.Time
	expiry     *time.Timer
}

// NewLogindLock connects to the system bus. The returned lock starts released.
func NewLogindLock(log *slog.Logger) (*LogindLock, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &LogindLock{conn: conn, log: log, fd: -1}, nil
}

// Acquire takes an idle inhibitor if not already held.
func (l *LogindLock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return
	}

	obj := l.conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")
	var fd dbus.UnixFD
	err := obj.Call("org.freedesktop.login1.Manager.Inhibit", 0,
		"idle", "playd", "audio playback in progress", "block").Store(&fd)
	if err != nil {
		l.log.Warn("failed to acquire idle inhibitor", "error", err)
		return
	}

	l.fd = int(fd)
	l.held = true
	l.acquiredAt = time.Now()
	l.expiry = time.AfterFunc(safetyExpiry, l.expire)
	l.log.Debug("idle inhibitor acquired")
}

// Release drops the inhibitor if held.
func (l *LogindLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked("released")
}

// Held reports whether the inhibitor is currently held.
func (l *LogindLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Close releases the inhibitor and the bus connection.
func (l *LogindLock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.releaseLocked("released on close")
	return l.conn.Close()
}

func (l *LogindLock) expire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}
	l.log.Warn("idle inhibitor hit safety expiry", "heldFor", time.Since(l.acquiredAt))
	l.releaseLocked("expired")
}

func (l *LogindLock) releaseLocked(reason string) {
	if !l.held {
		return
	}

	if l.expiry != nil {
		l.expiry.Stop()
		l.expiry = nil
	}
	if err := syscall.Close(l.fd); err != nil {
		l.log.Warn("failed to close inhibitor fd", "error", err)
	}

	l.fd = -1
	l.held = false
	l.log.Debug("idle inhibitor " + reason)
}
