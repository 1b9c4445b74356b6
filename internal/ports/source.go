// Package ports define the remote file source boundary.
package ports

import (
	"context"
	"io"
)

// RemoteFile is an open transfer from the backend file source.
// The caller owns Body and must close it.
type RemoteFile struct {
	// Body streams the raw bytes
	Body io.ReadCloser

	// ContentType is the transfer's declared Content-Type header.
	// It is authoritative for audio container/extension inference.
	ContentType string

	// Length is the declared content length (-1 if unknown)
	Length int64
}

// FileSource retrieves track artifacts from the streaming backend.
//
// The backend serves GET <base>/api/music/file/{id} for raw audio bytes and
// GET <base>/api/music/cover/{id} for cover images. Fetch is also used for
// arbitrary absolute URLs (explicit cover references carried on a track).
type FileSource interface {
	// AudioURL returns the canonical audio URL for a track ID.
	AudioURL(id int64) string

	// CoverURL returns the canonical cover URL for a track ID, used when a
	// track carries no explicit cover reference.
	CoverURL(id int64) string

	// Fetch opens a transfer for the given URL.
	Fetch(ctx context.Context, url string) (*RemoteFile, error)
}
