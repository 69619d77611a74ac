package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/encoding"
)

// Assistant runs turns against persisted conversations.
//
// It allows one turn per session at a time and stops accepting turns once a
// turn reports an invalid credential, until SetAPIKey succeeds.
type Assistant struct {
	store   conversation.Store
	factory EngineFactory
	media   MediaReleaser
	logger  *slog.Logger

	mu                sync.Mutex
	engine            *Engine
	credentialInvalid bool
	running           map[string]struct{}
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithMediaReleaser releases media referenced by deleted sessions.
func WithMediaReleaser(m MediaReleaser) AssistantOption {
	return func(a *Assistant) {
		a.media = m
	}
}

// WithAssistantLogger sets the logger. If not set, slog.Default() is used.
func WithAssistantLogger(l *slog.Logger) AssistantOption {
	return func(a *Assistant) {
		a.logger = l
	}
}

// WithEngine installs an already built engine, skipping SetAPIKey.
func WithEngine(e *Engine) AssistantOption {
	return func(a *Assistant) {
		a.engine = e
	}
}

// NewAssistant creates an Assistant. Until SetAPIKey succeeds (or WithEngine
// is given) every turn fails with ErrCredentialRequired.
func NewAssistant(store conversation.Store, factory EngineFactory, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		store:   store,
		factory: factory,
		running: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// SetAPIKey builds a new engine for apiKey and re-arms the credential gate.
func (a *Assistant) SetAPIKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w: empty api key", ErrCredentialRequired)
	}
	if a.factory == nil {
		return errors.New("studio: assistant has no engine factory")
	}
	e, err := a.factory(ctx, apiKey)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.engine = e
	a.credentialInvalid = false
	a.mu.Unlock()
	a.logger.Info("api key updated")
	return nil
}

// Ready reports whether turns can run.
func (a *Assistant) Ready() bool {
	_, err := a.currentEngine()
	return err == nil
}

func (a *Assistant) currentEngine() (*Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine == nil || a.credentialInvalid {
		return nil, ErrCredentialRequired
	}
	return a.engine, nil
}

func (a *Assistant) acquire(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.running[sessionID]; ok {
		return false
	}
	a.running[sessionID] = struct{}{}
	return true
}

func (a *Assistant) releaseSession(sessionID string) {
	a.mu.Lock()
	delete(a.running, sessionID)
	a.mu.Unlock()
}

// Submit stores the user message, runs the turn and stores every emitted
// record. observe, if non-nil, sees each stored record in order, starting
// with the user record.
//
// A turn with empty text and no attachment is ignored. The first message of
// a session also retitles it, concurrently with the turn.
func (a *Assistant) Submit(ctx context.Context, sessionID string, turn Turn, observe func(*conversation.Record)) (TurnResult, error) {
	engine, err := a.currentEngine()
	if err != nil {
		return TurnResult{}, err
	}
	turn.Text = strings.TrimSpace(turn.Text)
	if turn.Text == "" && turn.Attachment == nil {
		return TurnResult{}, nil
	}
	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	if !a.acquire(sessionID) {
		return TurnResult{}, ErrTurnInFlight
	}
	defer a.releaseSession(sessionID)

	user := &conversation.Record{Kind: conversation.KindUser, Data: turn.Text}
	if att := turn.Attachment; att != nil {
		user.UserImage = encoding.DataURI(att.MIMEType, att.Data)
	}
	if err := a.store.Append(ctx, sessionID, user); err != nil {
		return TurnResult{}, fmt.Errorf("studio: store user record: %w", err)
	}
	if observe != nil {
		observe(user)
	}

	var titled chan struct{}
	if sess.Records == 0 && turn.Text != "" {
		titled = make(chan struct{})
		go func() {
			defer close(titled)
			a.autoTitle(ctx, engine, sessionID, turn.Text)
		}()
	}

	sink := SinkFunc(func(ctx context.Context, rec Record) error {
		r := conversationRecord(rec)
		if err := a.store.Append(ctx, sessionID, r); err != nil {
			return err
		}
		if observe != nil {
			observe(r)
		}
		return nil
	})
	res := engine.Orchestrator.RunTurn(ctx, turn, sink)
	if res.CredentialInvalid {
		a.mu.Lock()
		if a.engine == engine {
			a.credentialInvalid = true
		}
		a.mu.Unlock()
		a.logger.Warn("api key rejected, waiting for a new one")
	}
	if titled != nil {
		<-titled
	}
	return res, nil
}

func (a *Assistant) autoTitle(ctx context.Context, engine *Engine, sessionID, text string) {
	title, err := GenerateTitle(ctx, engine.Text, engine.Models.Title, text)
	if err != nil {
		a.logger.Warn("generate title", "session", sessionID, "error", err)
		return
	}
	if title == "" {
		return
	}
	if err := a.store.RenameSession(ctx, sessionID, title); err != nil {
		a.logger.Warn("rename session", "session", sessionID, "error", err)
	}
}

// ImprovePrompt rewrites text into a more detailed prompt.
func (a *Assistant) ImprovePrompt(ctx context.Context, text string) (string, error) {
	engine, err := a.currentEngine()
	if err != nil {
		return "", err
	}
	return ImprovePrompt(ctx, engine.Text, engine.Models.Chat, text)
}

// DeleteSession removes a session and releases the media its records
// reference.
func (a *Assistant) DeleteSession(ctx context.Context, sessionID string) error {
	if a.media != nil {
		recs, err := a.store.Records(ctx, sessionID)
		if err != nil && !errors.Is(err, conversation.ErrNotFound) {
			return err
		}
		for _, r := range recs {
			out := Output{Kind: OutputKind(r.Kind), Payload: r.Data}
			if !out.Owned() {
				continue
			}
			if err := a.media.Release(ctx, r.Data); err != nil {
				a.logger.Warn("release media", "uri", r.Data, "error", err)
			}
		}
	}
	return a.store.DeleteSession(ctx, sessionID)
}

// Store returns the conversation store.
func (a *Assistant) Store() conversation.Store {
	return a.store
}

func conversationRecord(rec Record) *conversation.Record {
	r := &conversation.Record{
		Kind:       conversation.Kind(rec.Kind),
		Capability: string(rec.Capability),
		Data:       rec.Payload,
	}
	for _, c := range rec.Citations {
		r.Citations = append(r.Citations, conversation.Citation{URI: c.URI, Title: c.Title})
	}
	return r
}

// AttachmentFromRecord returns the image held by an image record or the
// image attached to a user record, so it can be edited in a later turn.
func AttachmentFromRecord(r *conversation.Record) (*Attachment, error) {
	var uri string
	switch r.Kind {
	case conversation.KindImage:
		uri = r.Data
	case conversation.KindUser:
		uri = r.UserImage
	}
	if !encoding.IsDataURI(uri) {
		return nil, fmt.Errorf("%w: record %s holds no image", ErrMissingInput, r.ID)
	}
	mime, data, err := encoding.ParseDataURI(uri)
	if err != nil {
		return nil, err
	}
	return &Attachment{MIMEType: mime, Data: data}, nil
}
