package studio

import (
	"context"
	"log/slog"
	"time"
)

// Engine is the set of components bound to one API credential.
type Engine struct {
	Orchestrator *Orchestrator
	Text         TextGenerator
	Models       Models
}

// EngineFactory builds an Engine for an API key.
type EngineFactory func(ctx context.Context, apiKey string) (*Engine, error)

// OpenAIConfig selects an OpenAI-compatible endpoint for chat,
// classification, titles and prompt improvement.
type OpenAIConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
}

// EngineConfig describes how to assemble a Gemini-backed Engine.
type EngineConfig struct {
	BaseURL          string
	Models           Models
	Voice            string
	PollInterval     time.Duration
	MaxPollAttempts  int
	OutputSampleRate int

	// OpenAI, when set, replaces Gemini for plain text generation. Search
	// and media stay on Gemini.
	OpenAI *OpenAIConfig

	Media    MediaPutter
	Releaser MediaReleaser
	Metrics  *Metrics
	Progress func(index int, task Task)
	Logger   *slog.Logger
}

// Factory returns an EngineFactory for c.
func (c EngineConfig) Factory() EngineFactory {
	return func(ctx context.Context, apiKey string) (*Engine, error) {
		svc, err := NewGeminiService(ctx, apiKey, c.BaseURL)
		if err != nil {
			return nil, err
		}
		return c.Build(svc), nil
	}
}

// Build wires an Engine around svc.
func (c EngineConfig) Build(svc Service) *Engine {
	models := c.Models.WithDefaults()
	var text TextGenerator = svc
	if c.OpenAI != nil {
		text = NewOpenAIText(c.OpenAI.APIKey, c.OpenAI.BaseURL, c.OpenAI.Model)
	}
	exec := NewExecutor(svc, c.Media)
	exec.Text = text
	exec.Search = svc
	exec.Models = models
	exec.Voice = c.Voice
	exec.PollInterval = c.PollInterval
	exec.MaxPollAttempts = c.MaxPollAttempts
	exec.OutputSampleRate = c.OutputSampleRate
	exec.Logger = c.Logger
	return &Engine{
		Orchestrator: &Orchestrator{
			Classifier: &Dispatcher{Text: text, Model: models.Dispatcher, Logger: c.Logger},
			Executor:   exec,
			Media:      c.Releaser,
			Progress:   c.Progress,
			Metrics:    c.Metrics,
			Logger:     c.Logger,
		},
		Text:   text,
		Models: models,
	}
}
