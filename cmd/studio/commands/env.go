package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haivivi/studio/pkg/cli"
	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/mediastore"
	"github.com/haivivi/studio/pkg/studio"
)

// apiKeyEnv supplies the Gemini key when the context has none.
const apiKeyEnv = "GEMINI_API_KEY"

// testServiceOverride replaces the Gemini service in tests.
var testServiceOverride studio.Service

// env is everything a command needs to run turns for one context.
type env struct {
	name      string
	ctx       *cli.Context
	dataDir   string
	logger    *slog.Logger
	store     conversation.Store
	media     *mediastore.Store
	registry  *prometheus.Registry
	assistant *studio.Assistant
}

// openEnv opens the session store and media backend of the selected
// context. The assistant is ready only if an API key is available.
func openEnv(ctx context.Context) (*env, error) {
	cctx, err := getContext()
	if err != nil {
		return nil, err
	}
	paths, err := getPaths()
	if err != nil {
		return nil, err
	}
	dataDir, err := paths.EnsureDataDir(cctx.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &env{
		name:     cctx.Name,
		ctx:      cctx,
		dataDir:  dataDir,
		logger:   newLogger(),
		registry: prometheus.NewRegistry(),
	}

	backend, err := cctx.MediaBackend(dataDir)
	if err != nil {
		return nil, err
	}
	e.media = mediastore.New(backend, mediastore.WithLogger(e.logger))

	storeDir := cctx.StoreDir(dataDir)
	printVerbose("Opening sessions at %s", storeDir)
	store, err := conversation.NewBadger(conversation.BadgerOptions{Dir: storeDir, Logger: e.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	e.store = store

	ec := cctx.EngineConfig()
	ec.Media = e.media
	ec.Releaser = e.media
	ec.Metrics = studio.NewMetrics(e.registry)
	ec.Logger = e.logger
	e.assistant = studio.NewAssistant(store, engineFactory(ec),
		studio.WithMediaReleaser(e.media),
		studio.WithAssistantLogger(e.logger),
	)

	if key := e.apiKey(); key != "" {
		if err := e.assistant.SetAPIKey(ctx, key); err != nil {
			store.Close()
			return nil, err
		}
	}
	return e, nil
}

func engineFactory(ec studio.EngineConfig) studio.EngineFactory {
	if testServiceOverride != nil {
		svc := testServiceOverride
		return func(context.Context, string) (*studio.Engine, error) {
			return ec.Build(svc), nil
		}
	}
	return ec.Factory()
}

func (e *env) apiKey() string {
	if e.ctx.APIKey != "" {
		return e.ctx.APIKey
	}
	return os.Getenv(apiKeyEnv)
}

// requireReady fails with a hint when no usable API key is configured.
func (e *env) requireReady() error {
	if e.assistant.Ready() {
		return nil
	}
	return fmt.Errorf("%w: set api_key on context %q or export %s", studio.ErrCredentialRequired, e.name, apiKeyEnv)
}

// turnContext applies the context's turn timeout.
func (e *env) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	if d := e.ctx.TurnTimeout(); d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

// session returns id, or a new session when id is empty.
func (e *env) session(ctx context.Context, id string) (*conversation.Session, error) {
	if id == "" {
		return e.store.CreateSession(ctx, "")
	}
	sess, err := e.store.GetSession(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return sess, err
}

func (e *env) Close() error {
	return e.store.Close()
}
