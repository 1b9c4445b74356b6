// Package service contains the application services coordinating the domain
// logic: the content cache and the playback orchestrator.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

const (
	// minAudioSize rejects truncated downloads: a complete audio artifact is
	// never this small.
	minAudioSize = 1024

	// thumbnailEdge bounds the cover thumbnail handed to session surfaces.
	thumbnailEdge = 512

	cacheEnabledKey = "cache_enabled"
)

// audioExtensions maps a transfer's declared Content-Type to the on-disk
// container extension. The header is authoritative; unknown types fall back
// to mp3 so the cached file stays playable by extension-sniffing consumers.
var audioExtensions = map[string]string{
	"audio/mpeg":      "mp3",
	"audio/mp3":       "mp3",
	"audio/flac":      "flac",
	"audio/x-flac":    "flac",
	"audio/ogg":       "ogg",
	"audio/vorbis":    "ogg",
	"application/ogg": "ogg",
	"audio/wav":       "wav",
	"audio/x-wav":     "wav",
	"audio/wave":      "wav",
	"audio/mp4":       "m4a",
	"audio/m4a":       "m4a",
	"audio/x-m4a":     "m4a",
	"audio/aac":       "aac",
}

// CacheService is the disk-backed content cache for the three artifact kinds
// (audio, cover, lyrics), keyed by track ID. Artifact files live under the
// cache root; their metadata records live in the settings store under
// "{kind}_{id}_{field}" keys.
//
// Every operation is best-effort: a cache miss or write failure never fails
// playback, the network source is always the fallback.
//
// Thread-safety: This implementation is thread-safe. Concurrent writes for
// the same (kind, id) are collapsed by the in-flight registry.
type CacheService struct {
	root     string
	settings ports.SettingsRepository
	source   ports.FileSource
	bus      ports.EventBus
	log      *slog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewCacheService creates the cache rooted at dir and ensures the artifact
// directories exist.
func NewCacheService(
	dir string,
	settings ports.SettingsRepository,
	source ports.FileSource,
	bus ports.EventBus,
	log *slog.Logger,
) (*CacheService, error) {
	c := &CacheService{
		root:     dir,
		settings: settings,
		source:   source,
		bus:      bus,
		log:      log,
		inflight: make(map[string]bool),
	}
	if err := c.ensureTree(); err != nil {
		return nil, err
	}
	return c, nil
}

// Enabled reports the persisted cache switch. Defaults to on.
func (c *CacheService) Enabled() bool {
	enabled, err := c.settings.GetBool(cacheEnabledKey, true)
	if err != nil {
		c.log.Warn("failed to read cache switch", "error", err)
		return true
	}
	return enabled
}

// SetEnabled persists the cache switch.
func (c *CacheService) SetEnabled(enabled bool) error {
	return c.settings.SetBool(cacheEnabledKey, enabled)
}

// ReadAudio returns the cached audio path for a track, or "" when no
// complete artifact exists. Complete means: cache enabled, not in flight,
// file present, and larger than the minimum plausible audio size.
func (c *CacheService) ReadAudio(id int64) string {
	if !c.Enabled() || c.isInFlight(domain.KindAudio, id) {
		return ""
	}

	path := c.audioPath(id, c.audioExt(id))
	info, err := os.Stat(path)
	if err != nil || info.Size() <= minAudioSize {
		return ""
	}
	return path
}

// ReadCover returns the cached cover path for a track, preferring the
// bounded thumbnail, or "" when none exists.
func (c *CacheService) ReadCover(id int64) string {
	if !c.Enabled() || c.isInFlight(domain.KindCover, id) {
		return ""
	}

	thumb := c.thumbPath(id)
	if info, err := os.Stat(thumb); err == nil && info.Size() > 0 {
		return thumb
	}

	full := c.coverPath(id)
	if info, err := os.Stat(full); err == nil && info.Size() > 0 {
		return full
	}
	return ""
}

// ReadLyrics returns the cached lyrics text for a track, or "" when none
// exists.
func (c *CacheService) ReadLyrics(id int64) string {
	if !c.Enabled() || c.isInFlight(domain.KindLyrics, id) {
		return ""
	}

	data, err := os.ReadFile(c.lyricsPath(id))
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteAudio downloads a track's audio into the cache. The artifact is
// written to a temp file and renamed on success; a failed transfer leaves no
// partial file behind. When no title is declared, the finished file is
// probed for an embedded one.
//
// Callers run this in the background; it blocks for the whole transfer.
func (c *CacheService) WriteAudio(ctx context.Context, id int64, sourceURL, declaredTitle string) error {
	if !c.Enabled() {
		return domain.ErrCacheDisabled
	}
	if !c.beginWrite(domain.KindAudio, id) {
		return domain.ErrCacheBusy
	}
	defer c.endWrite(domain.KindAudio, id)

	file, err := c.source.Fetch(ctx, sourceURL)
	if err != nil {
		return domain.NewCacheError("write", domain.KindAudio, id, err)
	}
	defer file.Body.Close()

	ext := extensionFor(file.ContentType)
	final := c.audioPath(id, ext)

	size, err := c.writeTemp(filepath.Dir(final), final, file.Body)
	if err != nil {
		return domain.NewCacheError("write", domain.KindAudio, id, err)
	}

	title := declaredTitle
	if title == "" {
		title = probeTitle(final)
	}

	c.setMeta(domain.KindAudio, id, "size", strconv.FormatInt(size, 10))
	c.setMeta(domain.KindAudio, id, "time", strconv.FormatInt(time.Now().Unix(), 10))
	c.setMeta(domain.KindAudio, id, "ext", ext)
	if title != "" {
		c.setMeta(domain.KindAudio, id, "title", title)
	}

	c.bus.Publish(domain.NewCacheStoredEvent(id, domain.KindAudio, size))
	c.log.Debug("audio cached", "trackID", id, "size", size, "ext", ext)
	return nil
}

// WriteCover downloads a track's cover image into the cache and derives the
// bounded thumbnail from it. A failed thumbnail only logs; the full image
// remains usable.
func (c *CacheService) WriteCover(ctx context.Context, id int64, sourceURL string) error {
	if !c.Enabled() {
		return domain.ErrCacheDisabled
	}
	if !c.beginWrite(domain.KindCover, id) {
		return domain.ErrCacheBusy
	}
	defer c.endWrite(domain.KindCover, id)

	file, err := c.source.Fetch(ctx, sourceURL)
	if err != nil {
		return domain.NewCacheError("write", domain.KindCover, id, err)
	}
	defer file.Body.Close()

	final := c.coverPath(id)
	size, err := c.writeTemp(filepath.Dir(final), final, file.Body)
	if err != nil {
		return domain.NewCacheError("write", domain.KindCover, id, err)
	}

	if err := c.writeThumbnail(id, final); err != nil {
		c.log.Warn("failed to derive cover thumbnail", "trackID", id, "error", err)
	}

	c.setMeta(domain.KindCover, id, "size", strconv.FormatInt(size, 10))
	c.setMeta(domain.KindCover, id, "time", strconv.FormatInt(time.Now().Unix(), 10))

	c.bus.Publish(domain.NewCacheStoredEvent(id, domain.KindCover, size))
	c.log.Debug("cover cached", "trackID", id, "size", size)
	return nil
}

// WriteLyrics stores a track's lyrics text.
func (c *CacheService) WriteLyrics(id int64, content string) error {
	if !c.Enabled() {
		return domain.ErrCacheDisabled
	}
	if !c.beginWrite(domain.KindLyrics, id) {
		return domain.ErrCacheBusy
	}
	defer c.endWrite(domain.KindLyrics, id)

	final := c.lyricsPath(id)
	size, err := c.writeTemp(filepath.Dir(final), final, strings.NewReader(content))
	if err != nil {
		return domain.NewCacheError("write", domain.KindLyrics, id, err)
	}

	c.setMeta(domain.KindLyrics, id, "size", strconv.FormatInt(size, 10))
	c.setMeta(domain.KindLyrics, id, "time", strconv.FormatInt(time.Now().Unix(), 10))

	c.bus.Publish(domain.NewCacheStoredEvent(id, domain.KindLyrics, size))
	return nil
}

// Delete removes all three artifact kinds and their metadata for a track.
// Best-effort: I/O errors are logged and swallowed.
func (c *CacheService) Delete(id int64) {
	paths := []string{
		c.audioPath(id, c.audioExt(id)),
		c.coverPath(id),
		c.thumbPath(id),
		c.lyricsPath(id),
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to remove cached artifact", "path", p, "error", err)
		}
	}

	for _, kind := range []domain.CacheKind{domain.KindAudio, domain.KindCover, domain.KindLyrics} {
		if err := c.settings.DeletePrefix(metaPrefix(kind, id)); err != nil {
			c.log.Warn("failed to remove cache metadata", "trackID", id, "kind", kind, "error", err)
		}
	}
}

// TotalSize returns the byte size of the whole cache tree.
// Approximate under concurrent writers.
func (c *CacheService) TotalSize() int64 {
	var total int64
	_ = filepath.WalkDir(c.root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// FormattedSize returns TotalSize as a human-readable string.
func (c *CacheService) FormattedSize() string {
	return formatBytes(c.TotalSize())
}

// EntryCount returns the number of finalized artifacts in the cache.
func (c *CacheService) EntryCount() int {
	return len(c.ListEntries())
}

// ListEntries returns a snapshot of the finalized artifacts.
// Approximate under concurrent writers.
func (c *CacheService) ListEntries() []domain.CacheEntry {
	var entries []domain.CacheEntry
	for _, kind := range []domain.CacheKind{domain.KindAudio, domain.KindCover, domain.KindLyrics} {
		dir := filepath.Join(c.root, kind.String())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			name := f.Name()
			if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, "_thumb.jpg") {
				continue
			}

			base := strings.TrimSuffix(name, filepath.Ext(name))
			id, err := strconv.ParseInt(base, 10, 64)
			if err != nil {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}

			title, _ := c.settings.GetString(metaKey(kind, id, "title"), "")
			entries = append(entries, domain.CacheEntry{
				TrackID:  id,
				Kind:     kind,
				Path:     filepath.Join(dir, name),
				Size:     info.Size(),
				Title:    title,
				Ext:      strings.TrimPrefix(filepath.Ext(name), "."),
				CachedAt: info.ModTime(),
			})
		}
	}
	return entries
}

// WipeAll deletes the entire cache tree and all metadata, then recreates the
// empty directory structure.
func (c *CacheService) WipeAll() error {
	for _, kind := range []domain.CacheKind{domain.KindAudio, domain.KindCover, domain.KindLyrics} {
		if err := os.RemoveAll(filepath.Join(c.root, kind.String())); err != nil {
			return domain.NewCacheError("wipe", kind, 0, err)
		}
		if err := c.settings.DeletePrefix(kind.String() + "_"); err != nil {
			return domain.NewCacheError("wipe", kind, 0, err)
		}
	}
	return c.ensureTree()
}

// --- internals ---

func (c *CacheService) ensureTree() error {
	for _, kind := range []domain.CacheKind{domain.KindAudio, domain.KindCover, domain.KindLyrics} {
		if err := os.MkdirAll(filepath.Join(c.root, kind.String()), 0o755); err != nil {
			return domain.NewCacheError("init", kind, 0, err)
		}
	}
	return nil
}

// beginWrite claims the (kind, id) slot. Returns false if a write is already
// in flight. The persisted flag mirrors the in-memory registry so readers in
// a future process see a crashed write as in flight until overwritten.
func (c *CacheService) beginWrite(kind domain.CacheKind, id int64) bool {
	key := metaKey(kind, id, "inflight")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] {
		return false
	}
	c.inflight[key] = true

	if err := c.settings.SetBool(key, true); err != nil {
		c.log.Warn("failed to persist in-flight flag", "key", key, "error", err)
	}
	return true
}

func (c *CacheService) endWrite(kind domain.CacheKind, id int64) {
	key := metaKey(kind, id, "inflight")

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)

	if err := c.settings.SetBool(key, false); err != nil {
		c.log.Warn("failed to clear in-flight flag", "key", key, "error", err)
	}
}

func (c *CacheService) isInFlight(kind domain.CacheKind, id int64) bool {
	key := metaKey(kind, id, "inflight")

	c.mu.Lock()
	local := c.inflight[key]
	c.mu.Unlock()
	if local {
		return true
	}

	persisted, err := c.settings.GetBool(key, false)
	if err != nil {
		return false
	}
	return persisted
}

// writeTemp streams r into a uuid-named temp file in dir and renames it to
// final on success. On any failure the temp file is removed.
func (c *CacheService) writeTemp(dir, final string, r io.Reader) (int64, error) {
	tmp := filepath.Join(dir, uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			c.log.Warn("failed to remove partial download", "path", tmp, "error", rmErr)
		}
		return 0, err
	}

	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return size, nil
}

func (c *CacheService) writeThumbnail(id int64, coverFile string) error {
	img, err := imaging.Open(coverFile)
	if err != nil {
		return err
	}
	thumb := imaging.Fit(img, thumbnailEdge, thumbnailEdge, imaging.Lanczos)
	return imaging.Save(thumb, c.thumbPath(id))
}

func (c *CacheService) setMeta(kind domain.CacheKind, id int64, field, value string) {
	if err := c.settings.SetString(metaKey(kind, id, field), value); err != nil {
		c.log.Warn("failed to persist cache metadata",
			"trackID", id, "kind", kind, "field", field, "error", err)
	}
}

func (c *CacheService) audioExt(id int64) string {
	ext, err := c.settings.GetString(metaKey(domain.KindAudio, id, "ext"), "mp3")
	if err != nil || ext == "" {
		return "mp3"
	}
	return ext
}

func (c *CacheService) audioPath(id int64, ext string) string {
	return filepath.Join(c.root, domain.KindAudio.String(), domain.FormatTrackID(id)+"."+ext)
}

func (c *CacheService) coverPath(id int64) string {
	return filepath.Join(c.root, domain.KindCover.String(), domain.FormatTrackID(id)+".jpg")
}

func (c *CacheService) thumbPath(id int64) string {
	return filepath.Join(c.root, domain.KindCover.String(), domain.FormatTrackID(id)+"_thumb.jpg")
}

func (c *CacheService) lyricsPath(id int64) string {
	return filepath.Join(c.root, domain.KindLyrics.String(), domain.FormatTrackID(id)+".txt")
}

func metaKey(kind domain.CacheKind, id int64, field string) string {
	return fmt.Sprintf("%s_%d_%s", kind, id, field)
}

func metaPrefix(kind domain.CacheKind, id int64) string {
	return fmt.Sprintf("%s_%d_", kind, id)
}

// extensionFor maps a Content-Type header to the on-disk audio extension.
func extensionFor(contentType string) string {
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	if ext, ok := audioExtensions[mediaType]; ok {
		return ext
	}
	return "mp3"
}

// probeTitle reads the embedded title tag from a finished audio file.
func probeTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return meta.Title()
}

// formatBytes renders a byte count for humans.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
