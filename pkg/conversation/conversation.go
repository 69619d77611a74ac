// Package conversation stores chat sessions and their ordered records.
//
// A session is an append-only list of records. The assistant pipeline only
// ever appends; records are never rewritten once stored.
//
// Two implementations are provided: Badger for on-disk persistence and
// Memory for tests and ephemeral runs. Both encode values with msgpack.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("conversation: not found")

// DefaultTitle is the title given to new sessions.
const DefaultTitle = "New Chat"

// Kind identifies what a record holds.
type Kind string

const (
	KindUser    Kind = "user"
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindSources Kind = "sources"
	KindError   Kind = "error"
)

// Citation is a source reference attached to a sources record.
type Citation struct {
	URI   string `json:"uri" msgpack:"uri"`
	Title string `json:"title" msgpack:"title"`
}

// Record is one entry of a conversation.
type Record struct {
	ID         string     `json:"id" msgpack:"id"`
	Kind       Kind       `json:"type" msgpack:"kind"`
	Capability string     `json:"feature,omitempty" msgpack:"capability,omitempty"`
	Data       string     `json:"data,omitempty" msgpack:"data,omitempty"`
	Citations  []Citation `json:"sources,omitempty" msgpack:"citations,omitempty"`
	UserImage  string     `json:"user_image,omitempty" msgpack:"user_image,omitempty"`
	CreatedAt  time.Time  `json:"created_at" msgpack:"created_at"`
}

// Session is a named conversation.
type Session struct {
	ID        string    `json:"id" msgpack:"id"`
	Title     string    `json:"title" msgpack:"title"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
	Records   int       `json:"records" msgpack:"records"`
}

// Store persists sessions and records. Implementations must be safe for
// concurrent use.
type Store interface {
	// CreateSession creates an empty session. An empty title uses DefaultTitle.
	CreateSession(ctx context.Context, title string) (*Session, error)

	// GetSession returns the session or ErrNotFound.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListSessions returns all sessions, most recently created first.
	ListSessions(ctx context.Context) ([]*Session, error)

	// RenameSession changes the session title.
	RenameSession(ctx context.Context, id, title string) error

	// DeleteSession removes the session and all its records. Deleting a
	// missing session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// Append adds a record to the end of the session. Missing ID and
	// CreatedAt fields are filled in.
	Append(ctx context.Context, sessionID string, rec *Record) error

	// Records returns the records of a session in append order.
	Records(ctx context.Context, sessionID string) ([]*Record, error)

	// Close releases resources held by the store.
	Close() error
}
