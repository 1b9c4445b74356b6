// Package source provides the HTTP adapter for the streaming backend's
// file endpoints.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/ports"
)

const userAgent = "playd/1.0"

// HTTPSource fetches track artifacts from the backend over HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewHTTPSource creates a file source rooted at the backend base URL.
func NewHTTPSource(baseURL string, log *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		client: &http.Client{
			// Covers connection and header exchange for large audio bodies;
			// body reads are bounded by the caller's context instead.
			Timeout: 0,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}
}

// AudioURL returns the canonical audio URL for a track ID.
func (s *HTTPSource) AudioURL(id int64) string {
	return fmt.Sprintf("%s/api/music/file/%d", s.baseURL, id)
}

// CoverURL returns the canonical cover URL for a track ID.
func (s *HTTPSource) CoverURL(id int64) string {
	return fmt.Sprintf("%s/api/music/cover/%d", s.baseURL, id)
}

// Fetch opens a transfer for the given URL. The caller owns the body.
func (s *HTTPSource) Fetch(ctx context.Context, url string) (*ports.RemoteFile, error) {
	if url == "" {
		return nil, domain.ErrInvalidSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s.log.Debug("transfer opened",
		"url", url,
		"contentType", resp.Header.Get("Content-Type"),
		"length", resp.ContentLength)

	return &ports.RemoteFile{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// Ensure HTTPSource implements the interface.
var _ ports.FileSource = (*HTTPSource)(nil)
