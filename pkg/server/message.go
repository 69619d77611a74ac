package server

import (
	"github.com/haivivi/studio/pkg/encoding"
)

// Client message types.
const (
	TypeTurn   = "turn"
	TypeAPIKey = "api_key"
)

// Server message types. Records are sent as conversation records whose
// type is the record kind.
const (
	TypeSession            = "session"
	TypeProgress           = "progress"
	TypeDone               = "done"
	TypeBusy               = "busy"
	TypeRateLimited        = "rate_limited"
	TypeCredentialRequired = "credential_required"
	TypeReady              = "ready"
	TypeFailed             = "failed"
)

// ClientMessage is a message sent by a websocket client. An empty Type is a
// turn.
//
// The image may be a data URI, bare base64 or {"mime", "data"}.
type ClientMessage struct {
	Type   string          `json:"type,omitempty"`
	Text   string          `json:"text,omitempty"`
	Image  *encoding.Media `json:"image,omitempty"`
	APIKey string          `json:"api_key,omitempty"`
}

// Status is a control message sent by the server.
type Status struct {
	Type              string `json:"type"`
	Session           string `json:"session,omitempty"`
	Message           string `json:"message,omitempty"`
	Capability        string `json:"feature,omitempty"`
	Step              int    `json:"step,omitempty"`
	Completed         int    `json:"completed,omitempty"`
	Degraded          bool   `json:"degraded,omitempty"`
	CredentialInvalid bool   `json:"credential_invalid,omitempty"`
}
