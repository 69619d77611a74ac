package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RecordKind is the type of an emitted record.
type RecordKind string

const (
	RecordText    RecordKind = "text"
	RecordImage   RecordKind = "image"
	RecordVideo   RecordKind = "video"
	RecordAudio   RecordKind = "audio"
	RecordSources RecordKind = "sources"
	RecordError   RecordKind = "error"
)

// Record is one emitted turn result.
type Record struct {
	Kind       RecordKind `json:"type"`
	Capability Capability `json:"feature"`
	Payload    string     `json:"data,omitempty"`
	MIMEType   string     `json:"mime_type,omitempty"`
	Citations  []Citation `json:"sources,omitempty"`
}

// Sink receives records as soon as they are ready. Once Emit returns nil the
// record, and any media handle it references, belongs to the sink.
type Sink interface {
	Emit(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Emit(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Classifier produces the tasks of a turn.
type Classifier interface {
	Classify(ctx context.Context, userText string, hasImage bool) Dispatch
}

// TaskExecutor runs one task.
type TaskExecutor interface {
	Execute(ctx context.Context, task Task, ec ExecContext) (Output, error)
}

// MediaReleaser frees a media handle by URI.
type MediaReleaser interface {
	Release(ctx context.Context, uri string) error
}

// Turn is one user submission.
type Turn struct {
	Text       string
	Attachment *Attachment

	// Progress, if set, is called before each task of this turn starts,
	// after the orchestrator-wide Progress.
	Progress func(index int, task Task)
}

// TurnResult summarizes a finished turn.
type TurnResult struct {
	// Tasks is the classified task list.
	Tasks []Task

	// Completed counts tasks whose output was emitted.
	Completed int

	// Degraded is true when classification fell back to Chat.
	Degraded bool

	// Err is the failure that stopped the turn, nil if every task completed.
	// An error record has already been emitted for it unless the sink
	// itself failed.
	Err error

	// CredentialInvalid is true when Err means the API key must be
	// re-acquired.
	CredentialInvalid bool
}

// Orchestrator runs turns: classify, then execute tasks in order, emitting
// each result as it is produced.
type Orchestrator struct {
	Classifier Classifier
	Executor   TaskExecutor

	// Media releases handles that were produced but never handed to the
	// sink. Optional.
	Media MediaReleaser

	// Progress, if set, is called before each task starts.
	Progress func(index int, task Task)

	Metrics *Metrics

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// turnState is what one task hands to the next.
type turnState struct {
	previous    string
	hasPrevious bool
	attachment  *Attachment
}

func (s turnState) context() ExecContext {
	return ExecContext{
		PreviousText: s.previous,
		HasPrevious:  s.hasPrevious,
		Attachment:   s.attachment,
	}
}

// next folds out into the state. Only text outputs replace the previous
// text.
func (s turnState) next(out Output) turnState {
	if out.Kind == OutputText {
		s.previous = out.Payload
		s.hasPrevious = true
	}
	return s
}

// RunTurn classifies turn and runs its tasks strictly in order. The first
// failing task stops the turn and is reported as a single error record.
// Per-task failures never escape as a Go error; they are described by the
// returned TurnResult.
func (o *Orchestrator) RunTurn(ctx context.Context, turn Turn, sink Sink) TurnResult {
	start := time.Now()
	dispatch := o.Classifier.Classify(ctx, turn.Text, turn.Attachment != nil)
	res := TurnResult{Tasks: dispatch.Tasks, Degraded: dispatch.Degraded}
	if dispatch.Degraded {
		o.Metrics.observeDegraded()
	}
	o.logger().Info("turn started", "tasks", len(dispatch.Tasks), "degraded", dispatch.Degraded)

	state := turnState{attachment: turn.Attachment}
	for i, task := range dispatch.Tasks {
		if o.Progress != nil {
			o.Progress(i, task)
		}
		if turn.Progress != nil {
			turn.Progress(i, task)
		}
		taskStart := time.Now()
		out, err := o.Executor.Execute(ctx, task, state.context())
		o.Metrics.observeTask(task.Capability, err, time.Since(taskStart))
		if err != nil {
			res.Err = taskError(task.Capability, err)
			res.CredentialInvalid = IsCredentialError(err)
			o.logger().Error("task failed", "index", i, "capability", task.Capability, "error", err)
			o.emitError(ctx, sink, err, res.CredentialInvalid)
			break
		}
		if err := o.emit(ctx, sink, task, out); err != nil {
			res.Err = err
			o.logger().Error("emit failed", "index", i, "capability", task.Capability, "error", err)
			o.emitError(ctx, sink, err, false)
			break
		}
		res.Completed++
		state = state.next(out)
		if err := o.emitSources(ctx, sink, task, out); err != nil {
			res.Err = err
			o.logger().Error("emit sources failed", "index", i, "capability", task.Capability, "error", err)
			o.emitError(ctx, sink, err, false)
			break
		}
	}
	o.Metrics.observeTurn(res, time.Since(start))
	o.logger().Info("turn finished", "completed", res.Completed, "tasks", len(res.Tasks), "duration", time.Since(start))
	return res
}

// emit hands the output record to sink. If it is not accepted, any media
// handle it references is released.
func (o *Orchestrator) emit(ctx context.Context, sink Sink, task Task, out Output) error {
	if err := ctx.Err(); err != nil {
		o.release(out)
		return err
	}
	rec := Record{
		Kind:       RecordKind(out.Kind),
		Capability: task.Capability,
		Payload:    out.Payload,
		MIMEType:   out.MIMEType,
	}
	if err := sink.Emit(ctx, rec); err != nil {
		o.release(out)
		return fmt.Errorf("studio: emit %s: %w", rec.Kind, err)
	}
	return nil
}

// emitSources hands the citations of out to sink as one sources record.
func (o *Orchestrator) emitSources(ctx context.Context, sink Sink, task Task, out Output) error {
	if len(out.Citations) == 0 {
		return nil
	}
	err := sink.Emit(ctx, Record{
		Kind:       RecordSources,
		Capability: task.Capability,
		Citations:  out.Citations,
	})
	if err != nil {
		return fmt.Errorf("studio: emit sources: %w", err)
	}
	return nil
}

func (o *Orchestrator) emitError(ctx context.Context, sink Sink, err error, credentialInvalid bool) {
	if emitErr := sink.Emit(ctx, errorRecord(err, credentialInvalid)); emitErr != nil {
		o.logger().Error("emit error record", "error", emitErr)
	}
}

func (o *Orchestrator) release(out Output) {
	if o.Media == nil || !out.Owned() {
		return
	}
	// The turn context may already be done.
	if err := o.Media.Release(context.Background(), out.Payload); err != nil {
		o.logger().Warn("release media", "uri", out.Payload, "error", err)
	}
}

// ErrorMessage is the text of the error record for err.
func ErrorMessage(err error, credentialInvalid bool) string {
	if credentialInvalid {
		return "Your API key appears to be invalid or missing. Please select a valid key and try again."
	}
	if e, ok := AsError(err); ok {
		err = e.Err
	}
	if errors.Is(err, context.Canceled) {
		return "The request was canceled."
	}
	return "An error occurred: " + err.Error()
}

func errorRecord(err error, credentialInvalid bool) Record {
	return Record{
		Kind:       RecordError,
		Capability: Chat,
		Payload:    ErrorMessage(err, credentialInvalid),
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
