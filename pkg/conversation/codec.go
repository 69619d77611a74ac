package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Key layout:
//
//	session:{id}                → msgpack-encoded Session
//	record:{session_id}:{seq}   → msgpack-encoded Record
//
// seq is zero padded so lexicographic order matches append order.

func sessionKey(id string) []byte {
	return []byte("session:" + id)
}

func sessionPrefix() []byte {
	return []byte("session:")
}

func recordKey(sessionID string, seq int) []byte {
	return fmt.Appendf(nil, "record:%s:%012d", sessionID, seq)
}

func recordPrefix(sessionID string) []byte {
	return []byte("record:" + sessionID + ":")
}

func newSession(title string, now time.Time) *Session {
	if title == "" {
		title = DefaultTitle
	}
	return &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func fillRecord(rec *Record, now time.Time) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
}

func encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &s, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("conversation: decode record: %w", err)
	}
	return &r, nil
}
