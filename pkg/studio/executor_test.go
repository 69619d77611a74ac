package studio

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/studio/pkg/audio/wav"
	"github.com/haivivi/studio/pkg/encoding"
	"github.com/haivivi/studio/pkg/mediastore"
)

func newTestExecutor(svc *fakeService) (*Executor, *mediastore.Memory, *mediastore.Store) {
	backend := mediastore.NewMemory()
	media := mediastore.New(backend)
	exec := NewExecutor(svc, media)
	exec.PollInterval = time.Millisecond
	return exec, backend, media
}

func TestExecutorChat(t *testing.T) {
	svc := newFakeService()
	exec, _, _ := newTestExecutor(svc)

	out, err := exec.Execute(context.Background(), Task{Capability: Chat, Instruction: "hi"}, ExecContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != OutputText || out.Payload != "echo: hi" {
		t.Errorf("out = %+v", out)
	}
	if got := svc.textReqs[0].Model; got != DefaultModels().Chat {
		t.Errorf("model = %q, want %q", got, DefaultModels().Chat)
	}
	if svc.textReqs[0].Grounding {
		t.Error("chat must not request grounding")
	}
}

func TestExecutorSearchCitations(t *testing.T) {
	svc := newFakeService()
	svc.text = func(req *TextRequest) (*TextResponse, error) {
		if !req.Grounding {
			t.Error("search must request grounding")
		}
		return &TextResponse{
			Text: "answer",
			Sources: []Citation{
				{URI: "", Title: "A"},
				{URI: "http://x", Title: ""},
			},
		}, nil
	}
	exec, _, _ := newTestExecutor(svc)

	out, err := exec.Execute(context.Background(), Task{Capability: Search, Instruction: "news"}, ExecContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []Citation{{URI: "http://x", Title: "Source"}}
	if !slices.Equal(out.Citations, want) {
		t.Errorf("citations = %+v, want %+v", out.Citations, want)
	}
	if out.Kind != OutputText || out.Payload != "answer" {
		t.Errorf("out = %+v", out)
	}
}

func TestExecutorImageGeneration(t *testing.T) {
	svc := newFakeService()
	exec, _, _ := newTestExecutor(svc)

	out, err := exec.Execute(context.Background(), Task{Capability: ImageGeneration, Instruction: "a cat"}, ExecContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != OutputImage {
		t.Fatalf("kind = %s", out.Kind)
	}
	mime, data, err := encoding.ParseDataURI(out.Payload)
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if mime != "image/png" || string(data) != string(svc.image.Data) {
		t.Errorf("payload = %s %q", mime, data)
	}
	req := svc.imageReqs[0]
	if req.AspectRatio != "1:1" || req.MIMEType != "image/png" || req.Prompt != "a cat" {
		t.Errorf("request = %+v", req)
	}
	if out.Owned() {
		t.Error("data uri output must not be owned")
	}
}

func TestExecutorImageGenerationEmpty(t *testing.T) {
	svc := newFakeService()
	svc.image = nil
	exec, _, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: ImageGeneration, Instruction: "a cat"}, ExecContext{})
	e, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *Error", err)
	}
	if e.Kind != KindEmptyResult || e.Capability != ImageGeneration {
		t.Errorf("err = %+v", e)
	}
}

func TestExecutorImageEditingWithoutAttachment(t *testing.T) {
	svc := newFakeService()
	exec, _, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: ImageEditing, Instruction: "make it blue"}, ExecContext{})
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("err = %v, want ErrMissingInput", err)
	}
	if e, _ := AsError(err); e == nil || e.Kind != KindMissingInput {
		t.Errorf("kind = %v", e)
	}
	if calls := svc.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %v, want none", calls)
	}
}

func TestExecutorImageEditing(t *testing.T) {
	svc := newFakeService()
	exec, _, _ := newTestExecutor(svc)
	att := &Attachment{MIMEType: "image/png", Data: []byte("src")}

	out, err := exec.Execute(context.Background(), Task{Capability: ImageEditing, Instruction: "make it blue"}, ExecContext{Attachment: att})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.Payload, "data:image/jpeg;base64,") {
		t.Errorf("payload = %q", out.Payload)
	}
	req := svc.editReqs[0]
	if req.Instruction != "make it blue" || string(req.Image.Data) != "src" || req.Model != DefaultModels().Edit {
		t.Errorf("request = %+v", req)
	}
}

func TestExecutorVideo(t *testing.T) {
	svc := newFakeService()
	svc.pollsUntil = 2
	exec, backend, media := newTestExecutor(svc)

	out, err := exec.Execute(context.Background(), Task{Capability: VideoGeneration, Instruction: "waves"}, ExecContext{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Kind != OutputVideo || !out.Owned() {
		t.Fatalf("out = %+v", out)
	}
	if svc.polls != 2 {
		t.Errorf("polls = %d, want 2", svc.polls)
	}
	data, mime, err := media.ReadAll(context.Background(), out.Payload)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if mime != "video/mp4" || string(data) != "mp4" {
		t.Errorf("stored %s %q", mime, data)
	}
	if backend.Len() != 1 {
		t.Errorf("backend len = %d", backend.Len())
	}
}

func TestExecutorVideoPollTimeout(t *testing.T) {
	svc := newFakeService()
	svc.neverDone = true
	exec, backend, _ := newTestExecutor(svc)
	exec.MaxPollAttempts = 3

	_, err := exec.Execute(context.Background(), Task{Capability: VideoGeneration, Instruction: "waves"}, ExecContext{})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if svc.polls != 3 {
		t.Errorf("polls = %d, want 3", svc.polls)
	}
	if backend.Len() != 0 {
		t.Errorf("backend len = %d, want 0", backend.Len())
	}
}

func TestExecutorVideoCanceled(t *testing.T) {
	svc := newFakeService()
	svc.neverDone = true
	exec, _, _ := newTestExecutor(svc)
	exec.MaxPollAttempts = -1

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := exec.Execute(ctx, Task{Capability: VideoGeneration, Instruction: "waves"}, ExecContext{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if e, _ := AsError(err); e == nil || e.Kind != KindCanceled {
		t.Errorf("kind = %v", e)
	}
}

func TestExecutorVideoNoDownloadLink(t *testing.T) {
	svc := newFakeService()
	svc.videoURI = ""
	exec, _, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: VideoGeneration, Instruction: "waves"}, ExecContext{})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if slices.Contains(svc.Calls(), "video.download") {
		t.Error("download must not be attempted without a link")
	}
}

func TestExecutorVideoOperationError(t *testing.T) {
	svc := newFakeService()
	svc.videoErr = errors.New("quota exceeded")
	exec, _, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: VideoGeneration, Instruction: "waves"}, ExecContext{})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
	if e, _ := AsError(err); e == nil || e.Kind != KindTransport {
		t.Errorf("kind = %v", e)
	}
}

func TestExecutorSpeech(t *testing.T) {
	svc := newFakeService()
	exec, _, media := newTestExecutor(svc)

	ec := ExecContext{PreviousText: "Hello", HasPrevious: true}
	out, err := exec.Execute(context.Background(), Task{Capability: TextToSpeech, Instruction: PreviousResult}, ec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := svc.spoken; len(got) != 1 || got[0] != "Hello" {
		t.Errorf("spoken = %q", got)
	}
	if out.Kind != OutputAudio || out.MIMEType != wav.MIMEType {
		t.Fatalf("out = %+v", out)
	}
	data, _, err := media.ReadAll(context.Background(), out.Payload)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	h, err := wav.ReadHeader(data)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.SampleRate != 24000 || h.Channels != 1 || h.DataSize != 960 {
		t.Errorf("header = %+v", h)
	}
}

func TestExecutorSpeechResample(t *testing.T) {
	tests := []struct {
		name     string
		pcmBytes int
		wantData uint32
	}{
		// 24 kHz mono L16 in, 16 kHz out: duration is kept.
		{"20ms", 960, 640},
		{"10ms", 480, 320},
		{"1s", 48000, 32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.speech = &Blob{MIMEType: "audio/L16;codec=pcm;rate=24000", Data: make([]byte, tt.pcmBytes)}
			exec, _, media := newTestExecutor(svc)
			exec.OutputSampleRate = 16000

			out, err := exec.Execute(context.Background(), Task{Capability: TextToSpeech, Instruction: "hi"}, ExecContext{})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			data, _, err := media.ReadAll(context.Background(), out.Payload)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			h, err := wav.ReadHeader(data)
			if err != nil {
				t.Fatalf("ReadHeader: %v", err)
			}
			if h.SampleRate != 16000 {
				t.Errorf("sample rate = %d, want 16000", h.SampleRate)
			}
			if h.DataSize != tt.wantData {
				t.Errorf("data size = %d, want %d", h.DataSize, tt.wantData)
			}
		})
	}
}

func TestExecutorSpeechOddByte(t *testing.T) {
	svc := newFakeService()
	svc.speech = &Blob{MIMEType: "audio/L16;codec=pcm;rate=24000", Data: []byte{0x01}}
	exec, backend, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: TextToSpeech, Instruction: "hi"}, ExecContext{})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if backend.Len() != 0 {
		t.Errorf("backend len = %d", backend.Len())
	}
}

func TestExecutorSpeechEmpty(t *testing.T) {
	svc := newFakeService()
	svc.speech = &Blob{}
	exec, backend, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: TextToSpeech, Instruction: "hi"}, ExecContext{})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
	if backend.Len() != 0 {
		t.Errorf("backend len = %d", backend.Len())
	}
}

func TestExecutorEmptyInstruction(t *testing.T) {
	tests := []struct {
		name string
		task Task
		ec   ExecContext
	}{
		{"chat", Task{Capability: Chat, Instruction: "  "}, ExecContext{}},
		{"image", Task{Capability: ImageGeneration}, ExecContext{}},
		{"empty previous text", Task{Capability: TextToSpeech, Instruction: PreviousResult}, ExecContext{HasPrevious: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			exec, _, _ := newTestExecutor(svc)
			_, err := exec.Execute(context.Background(), tt.task, tt.ec)
			if !errors.Is(err, ErrMissingInput) {
				t.Errorf("err = %v, want ErrMissingInput", err)
			}
			if len(svc.Calls()) != 0 {
				t.Errorf("remote calls = %v", svc.Calls())
			}
		})
	}
}

func TestExecutorUnknownCapability(t *testing.T) {
	svc := newFakeService()
	exec, _, _ := newTestExecutor(svc)

	_, err := exec.Execute(context.Background(), Task{Capability: "DANCE", Instruction: "x"}, ExecContext{})
	if !errors.Is(err, ErrUnknownCapability) {
		t.Fatalf("err = %v, want ErrUnknownCapability", err)
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("calls = %v", svc.Calls())
	}
}

func TestExecContextResolve(t *testing.T) {
	tests := []struct {
		name string
		task Task
		ec   ExecContext
		want string
	}{
		{"no previous", Task{Instruction: PreviousResult}, ExecContext{}, PreviousResult},
		{"previous text", Task{Instruction: PreviousResult}, ExecContext{PreviousText: "Hello", HasPrevious: true}, "Hello"},
		{"empty previous text", Task{Instruction: PreviousResult}, ExecContext{HasPrevious: true}, ""},
		{"literal", Task{Instruction: "say hi"}, ExecContext{PreviousText: "Hello", HasPrevious: true}, "say hi"},
		{"sentinel inside text", Task{Instruction: "read " + PreviousResult}, ExecContext{PreviousText: "Hello", HasPrevious: true}, "read " + PreviousResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ec.resolve(tt.task); got != tt.want {
				t.Errorf("resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelsWithDefaults(t *testing.T) {
	m := Models{Chat: "custom"}.WithDefaults()
	if m.Chat != "custom" {
		t.Errorf("chat = %q", m.Chat)
	}
	if m.Video != DefaultModels().Video || m.Dispatcher != DefaultModels().Dispatcher {
		t.Errorf("defaults not applied: %+v", m)
	}
}
