package studio

import (
	"fmt"
	"strings"
)

// Capability is one of the generative functions a Task can invoke. The
// string values are the identifiers the classifier returns.
type Capability string

const (
	Chat            Capability = "CHAT"
	Search          Capability = "SEARCH"
	ImageGeneration Capability = "IMAGE_GENERATION"
	ImageEditing    Capability = "IMAGE_EDITING"
	VideoGeneration Capability = "VIDEO_GENERATION"
	TextToSpeech    Capability = "TTS"
)

// Capabilities returns every capability in prompt order.
func Capabilities() []Capability {
	return []Capability{
		ImageGeneration,
		ImageEditing,
		VideoGeneration,
		TextToSpeech,
		Search,
		Chat,
	}
}

// ParseCapability resolves a classifier identifier, ignoring case and
// surrounding space.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("studio: unknown capability %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of Capabilities().
func (c Capability) Valid() bool {
	switch c {
	case Chat, Search, ImageGeneration, ImageEditing, VideoGeneration, TextToSpeech:
		return true
	}
	return false
}

// Label is the short name shown next to results.
func (c Capability) Label() string {
	switch c {
	case Chat:
		return "Chat"
	case Search:
		return "Web Search"
	case ImageGeneration:
		return "Image Generation"
	case ImageEditing:
		return "Image Editing"
	case VideoGeneration:
		return "Video Generation"
	case TextToSpeech:
		return "Text to Speech"
	}
	return string(c)
}

// Description is the one-line routing hint given to the classifier.
func (c Capability) Description() string {
	switch c {
	case ImageGeneration:
		return "For requests to create, generate, or draw an image."
	case ImageEditing:
		return "For requests to edit, change, or modify an existing image. Use this when the user has attached an image."
	case VideoGeneration:
		return "For requests to create, generate, or animate a video."
	case TextToSpeech:
		return `For requests to say, speak, narrate, or read something aloud. When it follows a text-producing task, its prompt must be exactly "` + PreviousResult + `".`
	case Search:
		return "For questions about recent events, facts, or anything that needs up-to-date information."
	case Chat:
		return "For conversation, questions, stories, poems, code, and any request the other features do not cover."
	}
	return ""
}

// Progress is the status line shown while a task of this capability runs.
func (c Capability) Progress() string {
	switch c {
	case Chat:
		return "Thinking..."
	case Search:
		return "Searching the web..."
	case ImageGeneration:
		return "Generating image..."
	case ImageEditing:
		return "Editing image..."
	case VideoGeneration:
		return "Generating video... this can take a few minutes"
	case TextToSpeech:
		return "Generating audio..."
	}
	return "Working..."
}
