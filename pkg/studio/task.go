package studio

import "github.com/haivivi/studio/pkg/mediastore"

// PreviousResult is the instruction placeholder that asks for the text
// output of the preceding task in the same turn.
const PreviousResult = "[PREVIOUS_RESULT]"

// Task is one classified unit of work.
type Task struct {
	Capability  Capability `json:"feature" yaml:"feature"`
	Instruction string     `json:"prompt" yaml:"prompt"`
}

// Attachment is a user-supplied file, typically an image to edit.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// ExecContext is what a task sees of the rest of its turn.
type ExecContext struct {
	// PreviousText is the payload of the latest text output in the turn.
	// It is only meaningful when HasPrevious is true.
	PreviousText string
	HasPrevious  bool

	// Attachment is the file attached to the turn, nil if none. Every task
	// of the turn sees it.
	Attachment *Attachment
}

// resolve returns the effective instruction for task.
func (ec ExecContext) resolve(task Task) string {
	if task.Instruction == PreviousResult && ec.HasPrevious {
		return ec.PreviousText
	}
	return task.Instruction
}

// OutputKind is the shape of an Output payload.
type OutputKind string

const (
	OutputText  OutputKind = "text"
	OutputImage OutputKind = "image"
	OutputVideo OutputKind = "video"
	OutputAudio OutputKind = "audio"
)

// Citation is a grounding source returned by Search.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Output is the normalized result of one task.
//
// For text outputs Payload is the text itself. For media outputs Payload is a
// reference: a data URI for images and a media:// handle URI for video and
// audio. Handle references are owned resources and must be released by
// whoever ends up holding them.
type Output struct {
	Kind      OutputKind `json:"kind"`
	Payload   string     `json:"payload"`
	MIMEType  string     `json:"mime_type,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
}

// Owned reports whether the payload is a media handle that must be
// released by its holder.
func (o Output) Owned() bool {
	if o.Kind == OutputText {
		return false
	}
	_, ok := mediastore.ParseURI(o.Payload)
	return ok
}
