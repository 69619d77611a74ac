package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haivivi/studio/pkg/audio/pcm"
	"github.com/haivivi/studio/pkg/audio/resampler"
	"github.com/haivivi/studio/pkg/audio/wav"
	"github.com/haivivi/studio/pkg/encoding"
	"github.com/haivivi/studio/pkg/mediastore"
)

const (
	// DefaultPollInterval is the delay between video operation polls.
	DefaultPollInterval = 10 * time.Second

	// DefaultMaxPollAttempts bounds the video wait to ten minutes at the
	// default interval.
	DefaultMaxPollAttempts = 60

	// DefaultVoice is the prebuilt voice used for speech.
	DefaultVoice = "Kore"

	// SpeechFormat is the PCM layout returned by speech synthesis.
	SpeechFormat = pcm.L16Mono24K

	imageAspectRatio = "1:1"
	imageMIMEType    = "image/png"
	videoResolution  = "720p"
	videoAspectRatio = "16:9"
	videoMIMEType    = "video/mp4"
	defaultCiteTitle = "Source"
)

// Models names the remote model used for each call site. Empty fields fall
// back to DefaultModels.
type Models struct {
	Dispatcher string `json:"dispatcher,omitempty" yaml:"dispatcher,omitempty"`
	Chat       string `json:"chat,omitempty" yaml:"chat,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Image      string `json:"image,omitempty" yaml:"image,omitempty"`
	Edit       string `json:"edit,omitempty" yaml:"edit,omitempty"`
	Video      string `json:"video,omitempty" yaml:"video,omitempty"`
	Speech     string `json:"speech,omitempty" yaml:"speech,omitempty"`
}

// DefaultModels returns the Gemini model set.
func DefaultModels() Models {
	return Models{
		Dispatcher: "gemini-2.5-pro",
		Chat:       "gemini-2.5-flash",
		Title:      "gemini-2.5-flash",
		Image:      "imagen-4.0-generate-001",
		Edit:       "gemini-2.5-flash-image",
		Video:      "veo-3.1-fast-generate-preview",
		Speech:     "gemini-2.5-flash-preview-tts",
	}
}

// WithDefaults fills empty fields from DefaultModels.
func (m Models) WithDefaults() Models {
	d := DefaultModels()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&m.Dispatcher, d.Dispatcher)
	fill(&m.Chat, d.Chat)
	fill(&m.Title, d.Title)
	fill(&m.Image, d.Image)
	fill(&m.Edit, d.Edit)
	fill(&m.Video, d.Video)
	fill(&m.Speech, d.Speech)
	return m
}

// MediaPutter stores generated media and returns an owned handle.
type MediaPutter interface {
	Put(ctx context.Context, mimeType string, data []byte) (mediastore.Handle, error)
}

// Executor runs a single Task against the remote service.
//
// Video and audio results are written to Media and returned as media://
// handle URIs. The executor never releases them.
type Executor struct {
	Text   TextGenerator
	Search TextGenerator // Search defaults to Text.
	Images ImageGenerator
	Videos VideoGenerator
	Speech SpeechGenerator
	Media  MediaPutter

	Models Models
	Voice  string

	// PollInterval is the delay between video status checks. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// MaxPollAttempts bounds the number of status checks after submission.
	// Zero means DefaultMaxPollAttempts; negative means unbounded.
	MaxPollAttempts int

	// OutputSampleRate resamples synthesized speech before encoding. Zero
	// keeps the native rate.
	OutputSampleRate int

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// NewExecutor returns an Executor that uses svc for every capability.
func NewExecutor(svc Service, media MediaPutter) *Executor {
	return &Executor{
		Text:   svc,
		Images: svc,
		Videos: svc,
		Speech: svc,
		Media:  media,
	}
}

// Execute runs task with ec. Failures are returned as *Error.
func (e *Executor) Execute(ctx context.Context, task Task, ec ExecContext) (Output, error) {
	start := time.Now()
	out, err := e.execute(ctx, task, ec)
	if err != nil {
		err = taskError(task.Capability, err)
		e.logger().Debug("task failed", "capability", task.Capability, "duration", time.Since(start), "error", err)
		return Output{}, err
	}
	e.logger().Debug("task done", "capability", task.Capability, "kind", out.Kind, "duration", time.Since(start))
	return out, nil
}

func (e *Executor) execute(ctx context.Context, task Task, ec ExecContext) (Output, error) {
	prompt := ec.resolve(task)
	if task.Capability.Valid() && strings.TrimSpace(prompt) == "" {
		return Output{}, fmt.Errorf("%w: %s task has an empty instruction", ErrMissingInput, task.Capability)
	}
	switch task.Capability {
	case Chat:
		return e.chat(ctx, prompt)
	case Search:
		return e.search(ctx, prompt)
	case ImageGeneration:
		return e.generateImage(ctx, prompt)
	case ImageEditing:
		return e.editImage(ctx, prompt, ec.Attachment)
	case VideoGeneration:
		return e.generateVideo(ctx, prompt)
	case TextToSpeech:
		return e.speak(ctx, prompt)
	}
	return Output{}, fmt.Errorf("%w: %q", ErrUnknownCapability, task.Capability)
}

func (e *Executor) chat(ctx context.Context, prompt string) (Output, error) {
	if e.Text == nil {
		return Output{}, errors.New("text generator not configured")
	}
	resp, err := e.Text.GenerateText(ctx, &TextRequest{
		Model:  e.models().Chat,
		Prompt: prompt,
	})
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: OutputText, Payload: resp.Text}, nil
}

func (e *Executor) search(ctx context.Context, prompt string) (Output, error) {
	gen := e.Search
	if gen == nil {
		gen = e.Text
	}
	if gen == nil {
		return Output{}, errors.New("search generator not configured")
	}
	resp, err := gen.GenerateText(ctx, &TextRequest{
		Model:     e.models().Chat,
		Prompt:    prompt,
		Grounding: true,
	})
	if err != nil {
		return Output{}, err
	}
	return Output{
		Kind:      OutputText,
		Payload:   resp.Text,
		Citations: citations(resp.Sources),
	}, nil
}

// citations drops sources without a URI and titles the rest.
func citations(sources []Citation) []Citation {
	var out []Citation
	for _, s := range sources {
		if s.URI == "" {
			continue
		}
		if s.Title == "" {
			s.Title = defaultCiteTitle
		}
		out = append(out, s)
	}
	return out
}

func (e *Executor) generateImage(ctx context.Context, prompt string) (Output, error) {
	if e.Images == nil {
		return Output{}, errors.New("image generator not configured")
	}
	blob, err := e.Images.GenerateImage(ctx, &ImageRequest{
		Model:       e.models().Image,
		Prompt:      prompt,
		AspectRatio: imageAspectRatio,
		MIMEType:    imageMIMEType,
	})
	if err != nil {
		return Output{}, err
	}
	if blob == nil || len(blob.Data) == 0 {
		return Output{}, fmt.Errorf("%w: no image returned", ErrEmptyResult)
	}
	return imageOutput(blob), nil
}

func (e *Executor) editImage(ctx context.Context, instruction string, att *Attachment) (Output, error) {
	if att == nil || len(att.Data) == 0 {
		return Output{}, fmt.Errorf("%w: image editing requires an attached image", ErrMissingInput)
	}
	if e.Images == nil {
		return Output{}, errors.New("image generator not configured")
	}
	blob, err := e.Images.EditImage(ctx, &ImageEditRequest{
		Model:       e.models().Edit,
		Instruction: instruction,
		Image:       *att,
	})
	if err != nil {
		return Output{}, err
	}
	if blob == nil || len(blob.Data) == 0 {
		return Output{}, fmt.Errorf("%w: no image was returned from the editing model", ErrEmptyResult)
	}
	return imageOutput(blob), nil
}

func imageOutput(blob *Blob) Output {
	mime := blob.MIMEType
	if mime == "" {
		mime = imageMIMEType
	}
	return Output{
		Kind:     OutputImage,
		Payload:  encoding.DataURI(mime, blob.Data),
		MIMEType: mime,
	}
}

func (e *Executor) generateVideo(ctx context.Context, prompt string) (Output, error) {
	if e.Videos == nil {
		return Output{}, errors.New("video generator not configured")
	}
	op, err := e.Videos.SubmitVideo(ctx, &VideoRequest{
		Model:       e.models().Video,
		Prompt:      prompt,
		Resolution:  videoResolution,
		AspectRatio: videoAspectRatio,
	})
	if err != nil {
		return Output{}, err
	}
	op, err = e.waitVideo(ctx, op)
	if err != nil {
		return Output{}, err
	}
	if op.Err != nil {
		return Output{}, fmt.Errorf("video operation %s failed: %w", op.Name, op.Err)
	}
	if op.URI == "" {
		return Output{}, fmt.Errorf("%w: video generation failed to produce a download link", ErrEmptyResult)
	}
	blob, err := e.Videos.DownloadVideo(ctx, op.URI)
	if err != nil {
		return Output{}, fmt.Errorf("download video: %w", err)
	}
	if blob == nil || len(blob.Data) == 0 {
		return Output{}, fmt.Errorf("%w: downloaded video is empty", ErrEmptyResult)
	}
	mime := blob.MIMEType
	if mime == "" {
		mime = videoMIMEType
	}
	return e.store(ctx, OutputVideo, mime, blob.Data)
}

// waitVideo polls op until it is done, ctx ends or the attempt budget runs
// out.
func (e *Executor) waitVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error) {
	if op.Done {
		return op, nil
	}
	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limit := e.MaxPollAttempts
	if limit == 0 {
		limit = DefaultMaxPollAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		next, err := e.Videos.PollVideo(ctx, op)
		if err != nil {
			return nil, err
		}
		op = next
		if op.Done {
			return op, nil
		}
		e.logger().Debug("video pending", "operation", op.Name, "attempt", attempt)
		if limit > 0 && attempt >= limit {
			return nil, fmt.Errorf("%w: %s not done after %d polls", ErrPollTimeout, op.Name, attempt)
		}
	}
}

func (e *Executor) speak(ctx context.Context, text string) (Output, error) {
	if e.Speech == nil {
		return Output{}, errors.New("speech generator not configured")
	}
	voice := e.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	blob, err := e.Speech.GenerateSpeech(ctx, &SpeechRequest{
		Model: e.models().Speech,
		Text:  text,
		Voice: voice,
	})
	if err != nil {
		return Output{}, err
	}
	if blob == nil || len(blob.Data) == 0 {
		return Output{}, fmt.Errorf("%w: speech synthesis produced no audio", ErrEmptyResult)
	}
	buf, err := SpeechFormat.Decode(blob.Data)
	if err != nil {
		return Output{}, fmt.Errorf("decode speech: %w", err)
	}
	if buf.Len() == 0 {
		return Output{}, fmt.Errorf("%w: speech synthesis returned no whole sample", ErrEmptyResult)
	}
	if rate := e.OutputSampleRate; rate > 0 && rate != buf.SampleRate {
		if buf, err = resampler.Resample(buf, rate); err != nil {
			return Output{}, fmt.Errorf("resample speech: %w", err)
		}
		if buf.Len() == 0 {
			return Output{}, fmt.Errorf("%w: resampled speech is empty", ErrEmptyResult)
		}
	}
	return e.store(ctx, OutputAudio, wav.MIMEType, wav.Encode(buf))
}

func (e *Executor) store(ctx context.Context, kind OutputKind, mime string, data []byte) (Output, error) {
	if e.Media == nil {
		return Output{}, errors.New("media store not configured")
	}
	h, err := e.Media.Put(ctx, mime, data)
	if err != nil {
		return Output{}, fmt.Errorf("store %s: %w", kind, err)
	}
	return Output{Kind: kind, Payload: h.URI(), MIMEType: mime}, nil
}

func (e *Executor) models() Models {
	return e.Models.WithDefaults()
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
