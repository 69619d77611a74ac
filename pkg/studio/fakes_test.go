package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakeService is a scripted Service that records every call.
type fakeService struct {
	mu    sync.Mutex
	calls []string

	text       func(req *TextRequest) (*TextResponse, error)
	textReqs   []*TextRequest
	image      *Blob
	imageErr   error
	imageReqs  []*ImageRequest
	edit       *Blob
	editReqs   []*ImageEditRequest
	pollsUntil int // PollVideo calls needed before the operation is done
	neverDone  bool
	videoURI   string
	videoErr   error
	video      *Blob
	polls      int
	speech     *Blob
	speechErr  error
	spoken     []string
}

func newFakeService() *fakeService {
	return &fakeService{
		image:    &Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		edit:     &Blob{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		videoURI: "https://example.com/video.mp4?alt=media",
		video:    &Blob{MIMEType: "video/mp4", Data: []byte("mp4")},
		speech:   &Blob{MIMEType: "audio/L16;codec=pcm;rate=24000", Data: make([]byte, 960)},
	}
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) GenerateText(_ context.Context, req *TextRequest) (*TextResponse, error) {
	f.record("text")
	f.mu.Lock()
	f.textReqs = append(f.textReqs, req)
	fn := f.text
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &TextResponse{Text: "echo: " + req.Prompt}, nil
}

func (f *fakeService) GenerateImage(_ context.Context, req *ImageRequest) (*Blob, error) {
	f.record("image")
	f.imageReqs = append(f.imageReqs, req)
	return f.image, f.imageErr
}

func (f *fakeService) EditImage(_ context.Context, req *ImageEditRequest) (*Blob, error) {
	f.record("edit")
	f.editReqs = append(f.editReqs, req)
	return f.edit, nil
}

func (f *fakeService) SubmitVideo(_ context.Context, req *VideoRequest) (*VideoOperation, error) {
	f.record("video.submit")
	return f.videoOp(), nil
}

func (f *fakeService) PollVideo(ctx context.Context, _ *VideoOperation) (*VideoOperation, error) {
	f.record("video.poll")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.polls++
	return f.videoOp(), nil
}

func (f *fakeService) videoOp() *VideoOperation {
	op := &VideoOperation{Name: "operations/video-1"}
	if f.neverDone || f.polls < f.pollsUntil {
		return op
	}
	op.Done = true
	op.URI = f.videoURI
	op.Err = f.videoErr
	return op
}

func (f *fakeService) DownloadVideo(_ context.Context, uri string) (*Blob, error) {
	f.record("video.download")
	if uri != f.videoURI {
		return nil, errors.New("unexpected uri " + uri)
	}
	return f.video, nil
}

func (f *fakeService) GenerateSpeech(_ context.Context, req *SpeechRequest) (*Blob, error) {
	f.record("speech")
	f.mu.Lock()
	f.spoken = append(f.spoken, req.Text)
	f.mu.Unlock()
	return f.speech, f.speechErr
}

// classifierReply makes the fake answer dispatcher requests with body and
// every other text request with chat.
func classifierReply(body string, chat func(prompt string) string) func(*TextRequest) (*TextResponse, error) {
	return func(req *TextRequest) (*TextResponse, error) {
		if req.Schema != nil {
			return &TextResponse{Text: body}, nil
		}
		if strings.HasPrefix(req.Prompt, "Create a very short") {
			return &TextResponse{Text: `"Sea Haiku Reading"`}, nil
		}
		return &TextResponse{Text: chat(req.Prompt)}, nil
	}
}

// recordingSink collects emitted records.
type recordingSink struct {
	mu      sync.Mutex
	records []Record
	failOn  RecordKind
}

func (s *recordingSink) Emit(_ context.Context, rec Record) error {
	if s.failOn != "" && rec.Kind == s.failOn {
		return errors.New("sink closed")
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) kinds() []RecordKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordKind, len(s.records))
	for i, r := range s.records {
		out[i] = r.Kind
	}
	return out
}

// staticClassifier returns a fixed dispatch.
type staticClassifier Dispatch

func (c staticClassifier) Classify(context.Context, string, bool) Dispatch {
	return Dispatch(c)
}

// scriptedExecutor returns outputs by task index and records contexts.
type scriptedExecutor struct {
	outputs  []Output
	errs     map[int]error
	tasks    []Task
	contexts []ExecContext
}

func (e *scriptedExecutor) Execute(_ context.Context, task Task, ec ExecContext) (Output, error) {
	i := len(e.tasks)
	e.tasks = append(e.tasks, task)
	e.contexts = append(e.contexts, ec)
	if err := e.errs[i]; err != nil {
		return Output{}, err
	}
	return e.outputs[i], nil
}
