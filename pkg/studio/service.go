package studio

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// TextRequest is a single-prompt text generation call.
type TextRequest struct {
	Model  string
	Prompt string

	// Schema, when set, asks for a JSON response matching it.
	Schema *jsonschema.Schema

	// Grounding asks the model to ground the answer in web search results.
	Grounding bool
}

// TextResponse is the result of a TextRequest.
type TextResponse struct {
	Text string

	// Sources are the raw grounding references, in response order. Entries
	// may have an empty URI or title.
	Sources []Citation
}

// Blob is binary content returned by a generation call.
type Blob struct {
	MIMEType string
	Data     []byte
}

// ImageRequest asks for a generated image.
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	MIMEType    string
}

// ImageEditRequest asks for an edited version of Image.
type ImageEditRequest struct {
	Model       string
	Instruction string
	Image       Attachment
}

// VideoRequest asks for a generated video.
type VideoRequest struct {
	Model       string
	Prompt      string
	Resolution  string
	AspectRatio string
}

// VideoOperation is the state of a long-running video generation.
type VideoOperation struct {
	Name string
	Done bool

	// URI is the download reference, set once Done.
	URI string

	// Err is the failure reported by the service for a finished operation.
	Err error

	native any
}

// SpeechRequest asks for synthesized speech.
type SpeechRequest struct {
	Model string
	Text  string
	Voice string
}

// TextGenerator generates text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error)
}

// ImageGenerator creates and edits images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) (*Blob, error)
	EditImage(ctx context.Context, req *ImageEditRequest) (*Blob, error)
}

// VideoGenerator runs video generation as a long-running operation.
type VideoGenerator interface {
	SubmitVideo(ctx context.Context, req *VideoRequest) (*VideoOperation, error)
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
	DownloadVideo(ctx context.Context, uri string) (*Blob, error)
}

// SpeechGenerator synthesizes speech. The returned blob holds raw 16-bit
// little-endian PCM.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, req *SpeechRequest) (*Blob, error)
}

// Service is the full set of remote capabilities.
type Service interface {
	TextGenerator
	ImageGenerator
	VideoGenerator
	SpeechGenerator
}
