package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	_ "embed"
)

var (
	//go:embed dispatch_prompt.gotmpl
	dispatchPromptTplContent string

	dispatchPromptTpl = template.Must(template.New("dispatchPrompt").Parse(dispatchPromptTplContent))
)

// errMalformed marks classifier output that could not be used.
var errMalformed = errors.New("studio: malformed classification")

// Dispatch is the outcome of classifying a user request.
type Dispatch struct {
	Tasks []Task

	// Degraded is true when the classifier could not be used and Tasks is
	// the single Chat fallback.
	Degraded bool

	// Reason is why classification degraded. Nil when Degraded is false.
	Reason error
}

// Dispatcher classifies user requests into tasks with a remote model.
type Dispatcher struct {
	Text  TextGenerator
	Model string

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Classify returns the ordered tasks for userText. It never fails: when the
// classifier errors or answers with something other than a JSON object
// holding a "tasks" array, the result is [{Chat, userText}] with Degraded
// set.
func (d *Dispatcher) Classify(ctx context.Context, userText string, hasImage bool) Dispatch {
	tasks, err := d.classify(ctx, userText, hasImage)
	if err != nil {
		d.logger().Warn("dispatch degraded to chat", "error", err)
		return Dispatch{
			Tasks:    []Task{{Capability: Chat, Instruction: userText}},
			Degraded: true,
			Reason:   err,
		}
	}
	d.logger().Debug("dispatch", "tasks", len(tasks))
	return Dispatch{Tasks: tasks}
}

func (d *Dispatcher) classify(ctx context.Context, userText string, hasImage bool) ([]Task, error) {
	if d.Text == nil {
		return nil, errors.New("studio: dispatcher has no text generator")
	}
	prompt, err := DispatchPrompt(userText, hasImage)
	if err != nil {
		return nil, err
	}
	model := d.Model
	if model == "" {
		model = DefaultModels().Dispatcher
	}
	resp, err := d.Text.GenerateText(ctx, &TextRequest{
		Model:  model,
		Prompt: prompt,
		Schema: DispatchSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("studio: classify: %w", err)
	}
	return ParseTasks(resp.Text)
}

// DispatchPrompt renders the classification prompt.
func DispatchPrompt(userText string, hasImage bool) (string, error) {
	var sb strings.Builder
	err := dispatchPromptTpl.Execute(&sb, map[string]any{
		"Capabilities":   Capabilities(),
		"HasImage":       hasImage,
		"Text":           userText,
		"PreviousResult": PreviousResult,
	})
	if err != nil {
		return "", fmt.Errorf("studio: render dispatch prompt: %w", err)
	}
	return sb.String(), nil
}

// DispatchSchema is the response schema requested from the classifier.
func DispatchSchema() *jsonschema.Schema {
	features := make([]any, 0, len(Capabilities()))
	for _, c := range Capabilities() {
		features = append(features, string(c))
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"tasks": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"feature": {Type: "string", Enum: features},
						"prompt":  {Type: "string"},
					},
					Required: []string{"feature", "prompt"},
				},
			},
		},
		Required: []string{"tasks"},
	}
}

// ParseTasks decodes a classifier response. The body must be a JSON object
// whose "tasks" field is an array. Slightly broken JSON is repaired first.
//
// Items are not validated. An item that is not an object with string
// "feature" and "prompt" fields becomes a task whose capability is the raw
// item text, so it fails when executed and earlier tasks still run.
func ParseTasks(body string) ([]Task, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", errMalformed)
	}
	var resp struct {
		Tasks json.RawMessage `json:"tasks"`
	}
	if err := unmarshalJSON([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(resp.Tasks, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: tasks array not found", errMalformed)
	}
	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, parseTask(item))
	}
	return tasks, nil
}

func parseTask(item json.RawMessage) Task {
	var t Task
	if err := json.Unmarshal(item, &t); err != nil {
		var buf bytes.Buffer
		if json.Compact(&buf, item) != nil {
			buf.Reset()
			buf.Write(item)
		}
		return Task{Capability: Capability(buf.String())}
	}
	return t
}

// unmarshalJSON unmarshals data into v, repairing malformed JSON on syntax
// errors.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
