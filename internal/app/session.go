package app

import (
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

// sessionBridge mirrors bus events onto the session surface. It is the only
// consumer-side coupling between the orchestrator and the media session; the
// orchestrator itself never calls the publisher.
type sessionBridge struct {
	publisher  ports.SessionPublisher
	controller ports.TransportController
}

// bindSession subscribes the bridge and returns the subscription handle.
func bindSession(bus ports.EventBus, publisher ports.SessionPublisher, controller ports.TransportController) domain.SubscriptionID {
	bridge := &sessionBridge{publisher: publisher, controller: controller}
	return bus.SubscribeAll(bridge.handle)
}

func (b *sessionBridge) handle(event domain.Event) {
	switch e := event.(type) {
	case domain.TrackChangedEvent:
		b.publisher.PublishTrack(e.Track, e.CoverPath)
		b.publishTransport()
	case domain.TrackStartedEvent, domain.TrackPausedEvent, domain.TrackCompletedEvent:
		b.publishTransport()
	case domain.ProgressEvent:
		b.publishTransport()
	case domain.SeekedEvent:
		b.publishTransport()
	case domain.FavoriteToggledEvent:
		b.publisher.PublishFavorite(e.Favorite)
	case domain.SleepTimerSetEvent:
		if e.End.IsZero() {
			b.publisher.PublishSleepTimer(0)
		} else {
			b.publisher.PublishSleepTimer(time.Until(e.End))
		}
	case domain.SleepTimerTickEvent:
		b.publisher.PublishSleepTimer(e.Remaining)
	case domain.SleepTimerFiredEvent:
		b.publisher.PublishSleepTimer(0)
	}
}

// publishTransport pushes the current transport state. Only the most recent
// call needs to win, so reading a fresh snapshot is always correct.
func (b *sessionBridge) publishTransport() {
	snapshot := b.controller.Snapshot()
	b.publisher.PublishPlayback(snapshot.Playing, snapshot.Position, snapshot.Duration)
}
