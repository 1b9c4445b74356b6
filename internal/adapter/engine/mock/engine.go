// Package mock provides a mock implementation of the Engine interface.
// This is used for testing services without requiring an audio output device.
package mock

import (
	"sync"
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// Engine simulates the decode/render pipeline in memory.
// Open emits an EngineReady event like the real engine; completion and
// failure reports are injected by tests through the Simulate helpers.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	mu sync.RWMutex

	// Current source state
	source   string
	status   domain.PlaybackStatus
	position time.Duration
	duration time.Duration
	volume   float64
	speed    float64

	// Event stream
	events chan domain.EngineEvent
	closed bool

	// Behavior configuration (for testing error scenarios)
	failOpen bool
	failPlay bool
	failSeek bool

	// Call recording (for testing)
	opened  []string
	volumes []float64
}

// NewEngine creates a new mock engine.
func NewEngine() *Engine {
	return &Engine{
		status:   domain.StatusStopped,
		duration: 3 * time.Minute,
		volume:   1.0,
		speed:    1.0,
		events:   make(chan domain.EngineEvent, 16),
	}
}

// SetFailOpen configures the mock to fail Open calls.
func (m *Engine) SetFailOpen(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = fail
}

// SetFailPlay configures the mock to fail Play calls.
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetFailSeek configures the mock to fail Seek calls.
func (m *Engine) SetFailSeek(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSeek = fail
}

// SetDuration configures the duration reported for subsequently opened sources.
func (m *Engine) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// Open prepares a new source, replacing any current one.
func (m *Engine) Open(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOpen {
		return domain.NewEngineError("open", source, "mock open failed", nil)
	}
	if source == "" {
		return domain.ErrInvalidSource
	}

	m.source = source
	m.position = 0
	m.status = domain.StatusStopped
	m.opened = append(m.opened, source)

	m.emitLocked(domain.EngineEvent{Kind: domain.EngineReady, Duration: m.duration})
	return nil
}

// Play starts or resumes rendering.
func (m *Engine) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPlay {
		return domain.NewEngineError("play", m.source, "mock play failed", nil)
	}
	if m.source == "" {
		return domain.ErrNoTrackLoaded
	}

	m.status = domain.StatusPlaying
	return nil
}

// Pause suspends rendering.
func (m *Engine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == domain.StatusPlaying {
		m.status = domain.StatusPaused
	}
	return nil
}

// Stop discards the current source.
func (m *Engine) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.source = ""
	m.position = 0
	m.status = domain.StatusStopped
	return nil
}

// Seek moves the playback position.
func (m *Engine) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSeek {
		return domain.NewEngineError("seek", m.source, "mock seek failed", nil)
	}
	if m.source == "" {
		return domain.ErrNoTrackLoaded
	}
	if position < 0 || (m.duration > 0 && position > m.duration) {
		return domain.ErrInvalidPosition
	}

	m.position = position
	return nil
}

// Position returns the current playback position.
func (m *Engine) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Duration returns the current source duration.
func (m *Engine) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.source == "" {
		return 0
	}
	return m.duration
}

// Status returns the engine-level playback status.
func (m *Engine) Status() domain.PlaybackStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetVolume sets the output gain.
func (m *Engine) SetVolume(volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	m.volume = volume
	m.volumes = append(m.volumes, volume)
	return nil
}

// Volume returns the current output gain.
func (m *Engine) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// SetSpeed sets the playback rate multiplier.
func (m *Engine) SetSpeed(speed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if speed <= 0 {
		return domain.ErrInvalidSpeed
	}

	m.speed = speed
	return nil
}

// Speed returns the current rate multiplier (for testing).
func (m *Engine) Speed() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.speed
}

// Events returns the engine event stream.
func (m *Engine) Events() <-chan domain.EngineEvent {
	return m.events
}

// Close tears down the event stream.
func (m *Engine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

// SimulateCompletion reports a natural end of the current source (for testing).
func (m *Engine) SimulateCompletion() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = domain.StatusStopped
	m.position = 0
	m.emitLocked(domain.EngineEvent{Kind: domain.EngineCompleted})
}

// SimulateError reports a decode/source failure (for testing).
func (m *Engine) SimulateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = domain.StatusStopped
	m.emitLocked(domain.EngineEvent{Kind: domain.EngineFailed, Err: err})
}

// SimulateProgress advances the simulated position (for testing).
func (m *Engine) SimulateProgress(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusPlaying {
		return
	}
	m.position += delta
	if m.duration > 0 && m.position > m.duration {
		m.position = m.duration
	}
}

// OpenedSources returns every source passed to Open, in order (for testing).
func (m *Engine) OpenedSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.opened))
	copy(out, m.opened)
	return out
}

// VolumeCalls returns every value passed to SetVolume, in order (for testing).
func (m *Engine) VolumeCalls() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]float64, len(m.volumes))
	copy(out, m.volumes)
	return out
}

func (m *Engine) emitLocked(ev domain.EngineEvent) {
	if m.closed {
		return
	}
	select {
	case m.events <- ev:
	default:
		// Nobody is draining; drop the report like the real engine.
	}
}

// Verify that Engine implements the interface
var _ ports.Engine = (*Engine)(nil)
