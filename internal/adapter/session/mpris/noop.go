package mpris

import (
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// NoopPublisher is the session surface used when no session bus is available
// (headless hosts, tests). All publishes are discarded.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards everything.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// PublishTrack discards the update.
func (n *NoopPublisher) PublishTrack(domain.Track, string) {}

// PublishPlayback discards the update.
func (n *NoopPublisher) PublishPlayback(bool, time.Duration, time.Duration) {}

// PublishFavorite discards the update.
func (n *NoopPublisher) PublishFavorite(bool) {}

// PublishSleepTimer discards the update.
func (n *NoopPublisher) PublishSleepTimer(time.Duration) {}

// Close is a no-op.
func (n *NoopPublisher) Close() error { return nil }

// Ensure NoopPublisher implements the interface.
var _ ports.SessionPublisher = (*NoopPublisher)(nil)
