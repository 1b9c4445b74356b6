package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/adapter/eventbus"
	"github.com/nekomusic/playd/internal/adapter/repository/memory"
	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/logger"
	"github.com/nekomusic/playd/internal/ports"
)

// fakeSource serves canned transfers by URL.
type fakeSource struct {
	responses map[string]fakeResponse
}

type fakeResponse struct {
	body        io.Reader
	contentType string
	err         error
}

func (f *fakeSource) AudioURL(id int64) string {
	return fmt.Sprintf("http://backend/api/music/file/%d", id)
}

func (f *fakeSource) CoverURL(id int64) string {
	return fmt.Sprintf("http://backend/api/music/cover/%d", id)
}

func (f *fakeSource) Fetch(_ context.Context, url string) (*ports.RemoteFile, error) {
	resp, ok := f.responses[url]
	if !ok {
		return nil, errors.New("no such url")
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &ports.RemoteFile{
		Body:        io.NopCloser(resp.body),
		ContentType: resp.contentType,
		Length:      -1,
	}, nil
}

// brokenReader fails partway through the transfer.
type brokenReader struct {
	remaining int
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, errors.New("connection reset")
	}
	n := len(p)
	if n > b.remaining {
		n = b.remaining
	}
	b.remaining -= n
	return n, nil
}

type cacheFixture struct {
	cache    *CacheService
	settings *memory.SettingsRepository
	source   *fakeSource
	dir      string
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()

	dir := t.TempDir()
	settings := memory.NewSettingsRepository()
	source := &fakeSource{responses: make(map[string]fakeResponse)}
	bus := eventbus.New(logger.NewTestLogger())
	t.Cleanup(func() { bus.Close() })

	cache, err := NewCacheService(dir, settings, source, bus, logger.NewTestLogger())
	require.NoError(t, err)

	return &cacheFixture{cache: cache, settings: settings, source: source, dir: dir}
}

func TestCacheService_AudioRoundTrip(t *testing.T) {
	fx := newCacheFixture(t)

	body := strings.Repeat("a", 2048)
	fx.source.responses["http://x/7"] = fakeResponse{
		body:        strings.NewReader(body),
		contentType: "audio/flac",
	}

	require.NoError(t, fx.cache.WriteAudio(context.Background(), 7, "http://x/7", "Night Drive"))

	path := fx.cache.ReadAudio(7)
	require.NotEmpty(t, path)
	assert.Equal(t, ".flac", filepath.Ext(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), info.Size())

	title, err := fx.settings.GetString("audio_7_title", "")
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", title)
}

func TestCacheService_TruncatedAudioNotReadable(t *testing.T) {
	fx := newCacheFixture(t)

	fx.source.responses["http://x/8"] = fakeResponse{
		body:        strings.NewReader("tiny"),
		contentType: "audio/mpeg",
	}

	require.NoError(t, fx.cache.WriteAudio(context.Background(), 8, "http://x/8", ""))
	assert.Empty(t, fx.cache.ReadAudio(8))
}

func TestCacheService_InFlightNeverRead(t *testing.T) {
	fx := newCacheFixture(t)

	// Finalize an artifact, then mark it in flight again as a crashed
	// rewrite would.
	fx.source.responses["http://x/9"] = fakeResponse{
		body:        strings.NewReader(strings.Repeat("b", 4096)),
		contentType: "audio/mpeg",
	}
	require.NoError(t, fx.cache.WriteAudio(context.Background(), 9, "http://x/9", ""))
	require.NotEmpty(t, fx.cache.ReadAudio(9))

	require.NoError(t, fx.settings.SetBool("audio_9_inflight", true))
	assert.Empty(t, fx.cache.ReadAudio(9))
}

func TestCacheService_FailedWriteRollsBack(t *testing.T) {
	fx := newCacheFixture(t)

	fx.source.responses["http://x/10"] = fakeResponse{
		body:        &brokenReader{remaining: 512},
		contentType: "audio/mpeg",
	}

	err := fx.cache.WriteAudio(context.Background(), 10, "http://x/10", "")
	require.Error(t, err)

	var cacheErr *domain.CacheError
	assert.ErrorAs(t, err, &cacheErr)

	// No partial file survives and the slot is writable again.
	files, readErr := os.ReadDir(filepath.Join(fx.dir, "audio"))
	require.NoError(t, readErr)
	assert.Empty(t, files)
	assert.Empty(t, fx.cache.ReadAudio(10))

	inflight, getErr := fx.settings.GetBool("audio_10_inflight", false)
	require.NoError(t, getErr)
	assert.False(t, inflight)
}

func TestCacheService_DisabledCacheIsInert(t *testing.T) {
	fx := newCacheFixture(t)

	require.NoError(t, fx.cache.SetEnabled(false))

	assert.ErrorIs(t, fx.cache.WriteAudio(context.Background(), 1, "http://x/1", ""), domain.ErrCacheDisabled)
	assert.ErrorIs(t, fx.cache.WriteLyrics(1, "la la"), domain.ErrCacheDisabled)
	assert.Empty(t, fx.cache.ReadAudio(1))
	assert.Empty(t, fx.cache.ReadCover(1))
	assert.Empty(t, fx.cache.ReadLyrics(1))
}

func TestCacheService_ConcurrentWriteCollapsed(t *testing.T) {
	fx := newCacheFixture(t)

	require.True(t, fx.cache.beginWrite(domain.KindAudio, 3))
	defer fx.cache.endWrite(domain.KindAudio, 3)

	err := fx.cache.WriteAudio(context.Background(), 3, "http://x/3", "")
	assert.ErrorIs(t, err, domain.ErrCacheBusy)
}

func TestCacheService_CoverWithThumbnail(t *testing.T) {
	fx := newCacheFixture(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 600, 600))))
	fx.source.responses["http://x/cover/4"] = fakeResponse{
		body:        &buf,
		contentType: "image/png",
	}

	require.NoError(t, fx.cache.WriteCover(context.Background(), 4, "http://x/cover/4"))

	path := fx.cache.ReadCover(4)
	require.NotEmpty(t, path)
	assert.True(t, strings.HasSuffix(path, "4_thumb.jpg"), "thumbnail preferred, got %s", path)
}

func TestCacheService_LyricsRoundTrip(t *testing.T) {
	fx := newCacheFixture(t)

	require.NoError(t, fx.cache.WriteLyrics(5, "verse one\nverse two"))
	assert.Equal(t, "verse one\nverse two", fx.cache.ReadLyrics(5))
}

func TestCacheService_DeleteRemovesAllKinds(t *testing.T) {
	fx := newCacheFixture(t)

	fx.source.responses["http://x/6"] = fakeResponse{
		body:        strings.NewReader(strings.Repeat("c", 2048)),
		contentType: "audio/mpeg",
	}
	require.NoError(t, fx.cache.WriteAudio(context.Background(), 6, "http://x/6", ""))
	require.NoError(t, fx.cache.WriteLyrics(6, "text"))

	fx.cache.Delete(6)

	assert.Empty(t, fx.cache.ReadAudio(6))
	assert.Empty(t, fx.cache.ReadLyrics(6))

	keys, err := fx.settings.KeysWithPrefix("audio_6_")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCacheService_InspectionAndWipe(t *testing.T) {
	fx := newCacheFixture(t)

	fx.source.responses["http://x/11"] = fakeResponse{
		body:        strings.NewReader(strings.Repeat("d", 4096)),
		contentType: "audio/mpeg",
	}
	require.NoError(t, fx.cache.WriteAudio(context.Background(), 11, "http://x/11", "Title"))
	require.NoError(t, fx.cache.WriteLyrics(11, "words"))

	assert.Equal(t, 2, fx.cache.EntryCount())
	assert.GreaterOrEqual(t, fx.cache.TotalSize(), int64(4096))

	entries := fx.cache.ListEntries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, int64(11), e.TrackID)
	}

	// WipeAll clears artifacts and cache metadata but not player settings.
	require.NoError(t, fx.settings.SetString("play_mode", "shuffle"))
	require.NoError(t, fx.cache.WipeAll())

	assert.Equal(t, 0, fx.cache.EntryCount())
	assert.Empty(t, fx.cache.ReadAudio(11))

	mode, err := fx.settings.GetString("play_mode", "")
	require.NoError(t, err)
	assert.Equal(t, "shuffle", mode)
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"audio/mpeg", "mp3"},
		{"audio/flac", "flac"},
		{"audio/x-flac", "flac"},
		{"application/ogg", "ogg"},
		{"audio/wav", "wav"},
		{"audio/mp4", "m4a"},
		{"Audio/MPEG; charset=binary", "mp3"},
		{"application/octet-stream", "mp3"},
		{"", "mp3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extensionFor(tt.contentType), "content type %q", tt.contentType)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(3*1024*1024/2))
}
