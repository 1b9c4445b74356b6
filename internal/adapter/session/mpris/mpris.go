// Package mpris exposes the playback session on the D-Bus session bus as an
// org.mpris.MediaPlayer2 player, the Linux counterpart of a mobile media
// session with its lock-screen transport controls.
package mpris

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

const (
	objectPath    = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootInterface = "org.mpris.MediaPlayer2"
	playerIface   = "org.mpris.MediaPlayer2.Player"
	extraIface    = "com.nekomusic.playd.Player1"

	statusPlaying = "Playing"
	statusPaused  = "Paused"
	statusStopped = "Stopped"
)

// Publisher mirrors playback state onto an MPRIS object and routes the
// standard transport methods back into the orchestrator.
//
// Publishing is fire-and-forget: property update failures are logged and
// swallowed so a broken session surface can never stall playback.
type Publisher struct {
	mu sync.Mutex

	conn    *dbus.Conn
	props   *prop.Properties
	busName string
	log     *slog.Logger

	hasTrack bool
}

// NewPublisher connects to the session bus and claims
// org.mpris.MediaPlayer2.<name>. Transport commands arriving over the bus are
// forwarded to the controller.
func NewPublisher(name string, controller ports.TransportController, log *slog.Logger) (*Publisher, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	p := &Publisher{
		conn:    conn,
		busName: rootInterface + "." + name,
		log:     log,
	}

	handler := &transportHandler{controller: controller, log: log}
	if err := conn.Export(handler, objectPath, rootInterface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export root interface: %w", err)
	}
	if err := conn.Export(handler, objectPath, playerIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export player interface: %w", err)
	}
	if err := conn.Export(handler, objectPath, extraIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export extra interface: %w", err)
	}

	props, err := prop.Export(conn, objectPath, initialProps(name))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export properties: %w", err)
	}
	p.props = props

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			rootIntrospection(),
			playerIntrospection(),
			extraIntrospection(),
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), objectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	reply, err := conn.RequestName(p.busName, dbus.NameFlagReplaceExisting)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %q already taken", p.busName)
	}

	log.Info("media session registered", "busName", p.busName)
	return p, nil
}

// PublishTrack announces the current track's metadata.
func (p *Publisher) PublishTrack(track domain.Track, coverPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	artURL := coverPath
	if artURL != "" && !strings.Contains(artURL, "://") {
		artURL = "file://" + artURL
	}

	metadata := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath(
			fmt.Sprintf("/com/nekomusic/playd/track/%d", track.ID))),
		"xesam:title":  dbus.MakeVariant(track.Title),
		"xesam:artist": dbus.MakeVariant([]string{track.Artist}),
		"xesam:album":  dbus.MakeVariant(track.Album),
	}
	if track.Duration > 0 {
		metadata["mpris:length"] = dbus.MakeVariant(track.Duration.Microseconds())
	}
	if artURL != "" {
		metadata["mpris:artUrl"] = dbus.MakeVariant(artURL)
	}

	p.hasTrack = true
	p.set(playerIface, "Metadata", metadata)
	p.set(playerIface, "CanGoNext", true)
	p.set(playerIface, "CanGoPrevious", true)
	p.set(playerIface, "CanSeek", true)
}

// PublishPlayback announces the transport state.
func (p *Publisher) PublishPlayback(playing bool, position, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := statusStopped
	if p.hasTrack {
		if playing {
			status = statusPlaying
		} else {
			status = statusPaused
		}
	}

	p.set(playerIface, "PlaybackStatus", status)
	p.set(playerIface, "Position", position.Microseconds())
}

// PublishFavorite announces the current track's favorite flag.
func (p *Publisher) PublishFavorite(favorite bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(extraIface, "Favorite", favorite)
}

// PublishSleepTimer announces the remaining sleep-timer time.
func (p *Publisher) PublishSleepTimer(remaining time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(extraIface, "SleepRemaining", remaining.Microseconds())
}

// Close releases the bus name and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	if _, err := p.conn.ReleaseName(p.busName); err != nil {
		p.log.Warn("failed to release bus name", "busName", p.busName, "error", err)
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Publisher) set(iface, name string, value interface{}) {
	if p.conn == nil {
		return
	}
	if err := p.props.Set(iface, name, dbus.MakeVariant(value)); err != nil {
		p.log.Warn("failed to publish property", "property", name, "error", err)
	}
}

// transportHandler receives the MPRIS method calls and forwards them to the
// orchestrator. Command failures are logged, not returned: remote controls
// expect these calls to be best-effort.
type transportHandler struct {
	controller ports.TransportController
	log        *slog.Logger
}

// Raise is required by the MPRIS root interface; a headless daemon has no
// window to raise.
func (h *transportHandler) Raise() *dbus.Error { return nil }

// Quit is intentionally a no-op: lifecycle belongs to the service manager.
func (h *transportHandler) Quit() *dbus.Error { return nil }

func (h *transportHandler) Next() *dbus.Error {
	h.run("next", h.controller.Next)
	return nil
}

func (h *transportHandler) Previous() *dbus.Error {
	h.run("previous", h.controller.Previous)
	return nil
}

func (h *transportHandler) Pause() *dbus.Error {
	snapshot := h.controller.Snapshot()
	if snapshot.Playing {
		h.run("pause", h.controller.TogglePlayPause)
	}
	return nil
}

func (h *transportHandler) Play() *dbus.Error {
	snapshot := h.controller.Snapshot()
	if !snapshot.Playing {
		h.run("play", h.controller.TogglePlayPause)
	}
	return nil
}

func (h *transportHandler) PlayPause() *dbus.Error {
	h.run("playPause", h.controller.TogglePlayPause)
	return nil
}

func (h *transportHandler) Stop() *dbus.Error {
	snapshot := h.controller.Snapshot()
	if snapshot.Playing {
		h.run("stop", h.controller.TogglePlayPause)
	}
	return nil
}

// Seek moves relative to the current position, in microseconds.
func (h *transportHandler) Seek(offset int64) *dbus.Error {
	snapshot := h.controller.Snapshot()
	target := snapshot.Position + time.Duration(offset)*time.Microsecond
	if target < 0 {
		target = 0
	}
	h.run("seek", func() error { return h.controller.SeekTo(target) })
	return nil
}

// SetPosition seeks to an absolute position, in microseconds.
func (h *transportHandler) SetPosition(_ dbus.ObjectPath, position int64) *dbus.Error {
	h.run("setPosition", func() error {
		return h.controller.SeekTo(time.Duration(position) * time.Microsecond)
	})
	return nil
}

// OpenUri is part of the player interface but unsupported: playback sources
// come from the library backend, not arbitrary URIs.
func (h *transportHandler) OpenUri(_ string) *dbus.Error { return nil }

// ToggleFavorite backs the surface's custom favorite action.
func (h *transportHandler) ToggleFavorite() *dbus.Error {
	h.run("toggleFavorite", h.controller.ToggleFavorite)
	return nil
}

func (h *transportHandler) run(op string, fn func() error) {
	if err := fn(); err != nil {
		h.log.Warn("transport command failed", "op", op, "error", err)
	}
}

func initialProps(name string) map[string]map[string]*prop.Prop {
	emitting := func(v interface{}) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}

	return map[string]map[string]*prop.Prop{
		rootInterface: {
			"CanQuit":             emitting(false),
			"CanRaise":            emitting(false),
			"HasTrackList":        emitting(false),
			"Identity":            emitting("playd " + name),
			"SupportedUriSchemes": emitting([]string{}),
			"SupportedMimeTypes":  emitting([]string{}),
		},
		playerIface: {
			"PlaybackStatus": emitting(statusStopped),
			"Rate":           emitting(1.0),
			"Metadata":       emitting(map[string]dbus.Variant{}),
			"Volume":         emitting(1.0),
			"Position":       emitting(int64(0)),
			"MinimumRate":    emitting(0.25),
			"MaximumRate":    emitting(4.0),
			"CanGoNext":      emitting(false),
			"CanGoPrevious":  emitting(false),
			"CanPlay":        emitting(true),
			"CanPause":       emitting(true),
			"CanSeek":        emitting(false),
			"CanControl":     emitting(true),
		},
		extraIface: {
			"Favorite":       emitting(false),
			"SleepRemaining": emitting(int64(0)),
		},
	}
}

func rootIntrospection() introspect.Interface {
	return introspect.Interface{
		Name: rootInterface,
		Methods: []introspect.Method{
			{Name: "Raise"},
			{Name: "Quit"},
		},
	}
}

func playerIntrospection() introspect.Interface {
	return introspect.Interface{
		Name: playerIface,
		Methods: []introspect.Method{
			{Name: "Next"},
			{Name: "Previous"},
			{Name: "Pause"},
			{Name: "PlayPause"},
			{Name: "Stop"},
			{Name: "Play"},
			{Name: "Seek", Args: []introspect.Arg{
				{Name: "Offset", Type: "x", Direction: "in"},
			}},
			{Name: "SetPosition", Args: []introspect.Arg{
				{Name: "TrackId", Type: "o", Direction: "in"},
				{Name: "Position", Type: "x", Direction: "in"},
			}},
			{Name: "OpenUri", Args: []introspect.Arg{
				{Name: "Uri", Type: "s", Direction: "in"},
			}},
		},
	}
}

func extraIntrospection() introspect.Interface {
	return introspect.Interface{
		Name: extraIface,
		Methods: []introspect.Method{
			{Name: "ToggleFavorite"},
		},
	}
}

// Ensure Publisher implements the interface.
var _ ports.SessionPublisher = (*Publisher)(nil)
