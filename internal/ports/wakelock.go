// Package ports define the wake-lock boundary.
package ports

// WakeLock keeps the host awake while audio is being rendered.
//
// Acquire is idempotent while held, and implementations enforce a safety
// expiry so a stuck lock cannot drain the battery indefinitely: a lock older
// than the configured cap releases itself.
type WakeLock interface {
	// Acquire takes the lock if not already held.
	// Failures are logged by the implementation; playback never depends on
	// the lock being held.
	Acquire()

	// Release drops the lock if held.
	Release()

	// Held reports whether the lock is currently held.
	Held() bool
}
