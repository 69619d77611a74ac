// Package mediastore keeps generated media (images, audio, video) out of
// conversation records. Binary content is written to a Backend and callers
// receive a Handle whose URI ("media://<id>") is what gets recorded.
//
// A Handle is an owned resource: whoever holds it is responsible for calling
// Release once the content is no longer displayed.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Scheme is the URI scheme of media handles.
const Scheme = "media://"

// ErrNotFound is returned when a handle does not resolve to stored content.
var ErrNotFound = errors.New("mediastore: not found")

// Backend is the blob storage used by a Store.
//
// Keys are opaque, forward-slash free strings. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key, mimeType string, data []byte) error

	// Get opens the content stored under key. The caller must close the
	// returned ReadCloser. Missing keys return an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Handle references one stored media object.
type Handle struct {
	ID       string `json:"id" msgpack:"id"`
	MIMEType string `json:"mime_type" msgpack:"mime_type"`
	Size     int    `json:"size" msgpack:"size"`
}

// URI returns the media:// reference for the handle.
func (h Handle) URI() string {
	return Scheme + h.ID
}

// ParseURI extracts the handle id from a media:// reference.
func ParseURI(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, Scheme)
	if !ok || id == "" || strings.ContainsAny(id, "/\\") {
		return "", false
	}
	return id, true
}

// Store allocates and resolves media handles on top of a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store writing to backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Put stores data and returns a new handle for it.
func (s *Store) Put(ctx context.Context, mimeType string, data []byte) (Handle, error) {
	h := Handle{
		ID:       uuid.NewString(),
		MIMEType: mimeType,
		Size:     len(data),
	}
	if err := s.backend.Put(ctx, h.ID, mimeType, data); err != nil {
		return Handle{}, fmt.Errorf("mediastore: put %s: %w", h.ID, err)
	}
	s.logger.Debug("media stored", "id", h.ID, "mime", mimeType, "size", len(data))
	return h, nil
}

// Open resolves a media:// URI. The caller must close the returned reader.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	id, ok := ParseURI(uri)
	if !ok {
		return nil, "", fmt.Errorf("mediastore: invalid uri %q", uri)
	}
	return s.backend.Get(ctx, id)
}

// ReadAll resolves a media:// URI and returns its full content.
func (s *Store) ReadAll(ctx context.Context, uri string) ([]byte, string, error) {
	rc, mime, err := s.Open(ctx, uri)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// Release deletes the content behind a handle URI. Releasing an unknown or
// already released handle is a no-op.
func (s *Store) Release(ctx context.Context, uri string) error {
	id, ok := ParseURI(uri)
	if !ok {
		return fmt.Errorf("mediastore: invalid uri %q", uri)
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("mediastore: release %s: %w", id, err)
	}
	s.logger.Debug("media released", "id", id)
	return nil
}
