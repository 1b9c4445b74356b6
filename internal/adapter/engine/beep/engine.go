// Package beep implements the playback engine on the beep/v2 decode and
// speaker pipeline.
package beep

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

const speakerBufferSize = 100 * time.Millisecond

// formatMP3 and friends name the supported containers.
const (
	formatMP3  = "mp3"
	formatFLAC = "flac"
	formatOGG  = "ogg"
	formatWAV  = "wav"
)

// stream bundles the resources of one opened source.
type stream struct {
	closer    io.Closer
	streamer  beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	volume    *effects.Volume
	ctrl      *beep.Ctrl
	seekable  bool
}

// Engine renders audio through the system output device.
// One speaker is initialized for the engine lifetime at a fixed sample rate;
// sources at other rates are resampled into it, which also gives the speed
// control a single knob (the resample ratio).
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	mu sync.Mutex

	log        *slog.Logger
	sampleRate beep.SampleRate
	client     *http.Client

	speakerReady bool
	current      *stream
	status       domain.PlaybackStatus
	volumeLevel  float64
	speed        float64
	generation   uint64

	events chan domain.EngineEvent
	closed bool
}

// NewEngine creates an engine rendering at the given sample rate.
func NewEngine(sampleRate int, log *slog.Logger) *Engine {
	return &Engine{
		log:         log,
		sampleRate:  beep.SampleRate(sampleRate),
		status:      domain.StatusStopped,
		volumeLevel: 1.0,
		speed:       1.0,
		events:      make(chan domain.EngineEvent, 16),
		client: &http.Client{
			// Streams are long-lived; only bound the header exchange.
			Timeout: 0,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}
}

// Open prepares a new source for playback, replacing any current one.
func (e *Engine) Open(source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return domain.ErrNotInitialized
	}
	if source == "" {
		return domain.ErrInvalidSource
	}

	e.discardLocked()

	reader, contentType, seekable, err := e.openReader(source)
	if err != nil {
		return domain.NewEngineError("open", source, "source unavailable", err)
	}

	streamer, format, err := decode(containerFor(source, contentType), reader)
	if err != nil {
		reader.Close()
		return domain.NewEngineError("open", source, "decode failed", err)
	}

	if !e.speakerReady {
		if err := speaker.Init(e.sampleRate, e.sampleRate.N(speakerBufferSize)); err != nil {
			streamer.Close()
			reader.Close()
			return domain.NewEngineError("open", source, "speaker init failed", err)
		}
		e.speakerReady = true
		e.log.Debug("speaker initialized", "sampleRate", int(e.sampleRate))
	}

	ratio := e.speed * float64(format.SampleRate) / float64(e.sampleRate)
	resampler := beep.ResampleRatio(4, ratio, streamer)

	volume := &effects.Volume{
		Streamer: resampler,
		Base:     2,
		Volume:   gainFor(e.volumeLevel),
		Silent:   e.volumeLevel == 0,
	}
	ctrl := &beep.Ctrl{Streamer: volume, Paused: true}

	e.current = &stream{
		closer:    reader,
		streamer:  streamer,
		format:    format,
		resampler: resampler,
		volume:    volume,
		ctrl:      ctrl,
		seekable:  seekable,
	}
	e.status = domain.StatusStopped
	e.generation++

	speaker.Play(beep.Seq(ctrl, beep.Callback(e.completionCallback(e.generation))))

	dur := e.durationLocked()
	e.emitLocked(domain.EngineEvent{Kind: domain.EngineReady, Duration: dur})
	e.log.Debug("source opened", "source", source, "duration", dur, "seekable", seekable)
	return nil
}

// Play starts or resumes rendering of the prepared source.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return domain.ErrNoTrackLoaded
	}

	speaker.Lock()
	e.current.ctrl.Paused = false
	speaker.Unlock()

	e.status = domain.StatusPlaying
	return nil
}

// Pause suspends rendering, keeping the position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return domain.ErrNoTrackLoaded
	}

	speaker.Lock()
	e.current.ctrl.Paused = true
	speaker.Unlock()

	e.status = domain.StatusPaused
	return nil
}

// Stop discards the current source and releases its resources.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.discardLocked()
	return nil
}

// Seek moves the playback position within the current source.
func (e *Engine) Seek(position time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return domain.ErrNoTrackLoaded
	}
	if !e.current.seekable {
		return domain.NewEngineError("seek", "", "source is not seekable", nil)
	}
	if position < 0 {
		return domain.ErrInvalidPosition
	}

	n := e.current.format.SampleRate.N(position)
	if total := e.current.streamer.Len(); total > 0 && n > total {
		return domain.ErrInvalidPosition
	}

	speaker.Lock()
	err := e.current.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return domain.NewEngineError("seek", "", "seek failed", err)
	}
	return nil
}

// Position returns the current playback position.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return 0
	}

	speaker.Lock()
	n := e.current.streamer.Position()
	speaker.Unlock()

	return e.current.format.SampleRate.D(n)
}

// Duration returns the total duration of the current source (0 if unknown).
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

// Status returns the engine-level playback status.
func (e *Engine) Status() domain.PlaybackStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetVolume sets the output gain, 0.0 (silent) to 1.0 (full).
func (e *Engine) SetVolume(volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	e.volumeLevel = volume
	if e.current != nil {
		speaker.Lock()
		e.current.volume.Volume = gainFor(volume)
		e.current.volume.Silent = volume == 0
		speaker.Unlock()
	}
	return nil
}

// Volume returns the current output gain.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volumeLevel
}

// SetSpeed sets the playback rate multiplier (1.0 = normal).
func (e *Engine) SetSpeed(speed float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if speed < 0.25 || speed > 4.0 {
		return domain.ErrInvalidSpeed
	}

	e.speed = speed
	if e.current != nil {
		ratio := speed * float64(e.current.format.SampleRate) / float64(e.sampleRate)
		speaker.Lock()
		e.current.resampler.SetRatio(ratio)
		speaker.Unlock()
	}
	return nil
}

// Events returns the stream of engine state reports.
func (e *Engine) Events() <-chan domain.EngineEvent {
	return e.events
}

// Close tears down the output device and the event stream.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.discardLocked()
	if e.speakerReady {
		speaker.Close()
		e.speakerReady = false
	}

	e.closed = true
	close(e.events)
	return nil
}

// discardLocked clears the speaker and releases the current source.
func (e *Engine) discardLocked() {
	if e.current == nil {
		return
	}

	// Clearing the speaker drops the sequence before its callback fires;
	// bumping the generation defeats a callback already in flight.
	e.generation++
	if e.speakerReady {
		speaker.Clear()
	}

	if err := e.current.streamer.Close(); err != nil {
		e.log.Warn("failed to close streamer", "error", err)
	}
	if err := e.current.closer.Close(); err != nil {
		e.log.Warn("failed to close source", "error", err)
	}

	e.current = nil
	e.status = domain.StatusStopped
}

// completionCallback builds the drain callback for the given generation.
// The speaker invokes callbacks while holding its own lock, and every engine
// method takes e.mu before speaker.Lock; taking e.mu inside the callback
// would invert that order against a concurrent Position or Play. The report
// therefore leaves the speaker goroutine before touching engine state.
func (e *Engine) completionCallback(gen uint64) func() {
	return func() {
		go e.completed(gen)
	}
}

// completed records a natural end of the given generation's sequence.
func (e *Engine) completed(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.current == nil {
		return
	}

	e.status = domain.StatusStopped
	e.emitLocked(domain.EngineEvent{Kind: domain.EngineCompleted})
}

func (e *Engine) durationLocked() time.Duration {
	if e.current == nil {
		return 0
	}
	if total := e.current.streamer.Len(); total > 0 {
		return e.current.format.SampleRate.D(total)
	}
	return 0
}

func (e *Engine) emitLocked(ev domain.EngineEvent) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.log.Warn("engine event dropped", "kind", int(ev.Kind))
	}
}

// openReader opens the source as a local file or an HTTP stream.
func (e *Engine) openReader(source string) (io.ReadCloser, string, bool, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := e.client.Get(source)
		if err != nil {
			return nil, "", false, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return resp.Body, resp.Header.Get("Content-Type"), false, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, "", false, err
	}
	return f, "", true, nil
}

// containerFor infers the audio container from the source name, falling back
// to the transfer Content-Type and finally to MP3.
func containerFor(source, contentType string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = u.Path
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return formatMP3
	case ".flac":
		return formatFLAC
	case ".ogg", ".oga":
		return formatOGG
	case ".wav":
		return formatWAV
	}

	switch {
	case strings.Contains(contentType, "flac"):
		return formatFLAC
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "vorbis"):
		return formatOGG
	case strings.Contains(contentType, "wav"):
		return formatWAV
	default:
		return formatMP3
	}
}

// decode runs the container's decoder over the reader.
func decode(container string, r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch container {
	case formatFLAC:
		return flac.Decode(r)
	case formatOGG:
		return vorbis.Decode(r)
	case formatWAV:
		return wav.Decode(r)
	default:
		return mp3.Decode(r)
	}
}

// gainFor converts a linear 0..1 level to the base-2 gain the mixer expects.
func gainFor(level float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Log2(level)
}

// Verify that Engine implements the interface
var _ ports.Engine = (*Engine)(nil)
