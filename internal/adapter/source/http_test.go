package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/logger"
)

func TestHTTPSource_URLs(t *testing.T) {
	src := NewHTTPSource("http://backend:8080/", logger.NewTestLogger())

	assert.Equal(t, "http://backend:8080/api/music/file/42", src.AudioURL(42))
	assert.Equal(t, "http://backend:8080/api/music/cover/42", src.CoverURL(42))
}

func TestHTTPSource_FetchStreamsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "playd/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, logger.NewTestLogger())

	file, err := src.Fetch(context.Background(), server.URL+"/api/music/file/1")
	require.NoError(t, err)
	defer file.Body.Close()

	assert.Equal(t, "audio/mpeg", file.ContentType)
	assert.Equal(t, int64(len("audio-bytes")), file.Length)

	body, err := io.ReadAll(file.Body)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
}

func TestHTTPSource_FetchRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, logger.NewTestLogger())

	_, err := src.Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPSource_FetchRejectsEmptyURL(t *testing.T) {
	src := NewHTTPSource("http://backend", logger.NewTestLogger())

	_, err := src.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}
