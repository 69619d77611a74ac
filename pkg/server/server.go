// Package server exposes the assistant over HTTP.
//
// A websocket at /ws runs turns against one session and streams every stored
// record back as JSON. Generated media is served from /media/{id} and
// Prometheus metrics from /metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/mediastore"
	"github.com/haivivi/studio/pkg/studio"
)

const (
	// DefaultRate is the sustained turn rate allowed per client.
	DefaultRate = rate.Limit(0.5)

	// DefaultBurst is the number of turns a client may send back to back.
	DefaultBurst = 3

	visitorTTL    = 10 * time.Minute
	sweepInterval = time.Minute
)

// Assistant is the part of studio.Assistant the server drives.
type Assistant interface {
	Submit(ctx context.Context, sessionID string, turn studio.Turn, observe func(*conversation.Record)) (studio.TurnResult, error)
	SetAPIKey(ctx context.Context, apiKey string) error
	Store() conversation.Store
}

// MediaOpener resolves media:// URIs.
type MediaOpener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, string, error)
}

// Config configures a Server.
type Config struct {
	Assistant Assistant

	// Media serves /media/{id}. If nil, the route answers 404.
	Media MediaOpener

	// Gatherer serves /metrics. If nil, prometheus.DefaultGatherer is used.
	Gatherer prometheus.Gatherer

	// Rate and Burst bound turn submissions per client address.
	// Zero values use DefaultRate and DefaultBurst.
	Rate  rate.Limit
	Burst int

	// TurnTimeout bounds a single turn. Zero means no timeout.
	TurnTimeout time.Duration

	// CheckOrigin is passed to the websocket upgrader. If nil, only
	// same-origin requests are accepted.
	CheckOrigin func(r *http.Request) bool

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Server serves the assistant over HTTP.
type Server struct {
	cfg      Config
	limiter  *limiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		limiter: newLimiter(cfg.Rate, cfg.Burst, visitorTTL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /media/{id}", s.handleMedia)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.sweepLoop(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.sweep()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	store := s.cfg.Assistant.Store()
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sess, err := store.CreateSession(r.Context(), "")
		if err != nil {
			s.logger.Error("create session", "error", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
		sessionID = sess.ID
	} else if _, err := store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		s.logger.Error("get session", "session", sessionID, "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}

	c := &conn{
		srv:     s,
		ws:      ws,
		session: sessionID,
		client:  clientKey(r),
		logger:  s.logger.With("session", sessionID, "remote", r.RemoteAddr),
	}
	c.logger.Info("client connected")
	c.serve(r.Context())
	c.logger.Info("client disconnected")
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Media == nil {
		http.NotFound(w, r)
		return
	}
	uri := mediastore.Scheme + r.PathValue("id")
	rc, mime, err := s.cfg.Media.Open(r.Context(), uri)
	if err != nil {
		if errors.Is(err, mediastore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("open media", "uri", uri, "error", err)
		http.Error(w, "failed to open media", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream media", "uri", uri, "error", err)
	}
}

// clientKey identifies a client for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var (
	_ Assistant   = (*studio.Assistant)(nil)
	_ MediaOpener = (*mediastore.Store)(nil)
)
