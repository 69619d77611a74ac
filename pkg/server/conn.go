package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/studio"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Turns may carry an image.
	maxMessageSize = 16 << 20
)

// conn is one websocket client bound to a session.
type conn struct {
	srv     *Server
	ws      *websocket.Conn
	session string
	client  string
	logger  *slog.Logger

	wmu   sync.Mutex
	turns sync.WaitGroup
}

// serve reads client messages until the connection fails. Turns run in
// their own goroutines so a second submission can be answered while the
// first is still running.
func (c *conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.turns.Wait()
		c.ws.Close()
	}()

	if err := c.write(Status{Type: TypeSession, Session: c.session}); err != nil {
		return
	}

	go c.ping(ctx)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read", "error", err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.write(Status{Type: TypeFailed, Message: "invalid message: " + err.Error()})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *conn) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "", TypeTurn:
		if !c.srv.limiter.Allow(c.client) {
			c.write(Status{Type: TypeRateLimited})
			return
		}
		turn := studio.Turn{Text: msg.Text}
		if !msg.Image.Empty() {
			mimeType := msg.Image.MIMEType
			if mimeType == "" {
				mimeType = http.DetectContentType(msg.Image.Data)
			}
			turn.Attachment = &studio.Attachment{MIMEType: mimeType, Data: msg.Image.Data}
		}
		c.turns.Add(1)
		go func() {
			defer c.turns.Done()
			c.runTurn(ctx, turn)
		}()
	case TypeAPIKey:
		if err := c.srv.cfg.Assistant.SetAPIKey(ctx, msg.APIKey); err != nil {
			c.write(Status{Type: TypeFailed, Message: err.Error()})
			return
		}
		c.write(Status{Type: TypeReady})
	default:
		c.write(Status{Type: TypeFailed, Message: "unknown message type " + msg.Type})
	}
}

func (c *conn) runTurn(ctx context.Context, turn studio.Turn) {
	if d := c.srv.cfg.TurnTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	turn.Progress = func(i int, task studio.Task) {
		c.write(Status{
			Type:       TypeProgress,
			Step:       i + 1,
			Capability: string(task.Capability),
			Message:    task.Capability.Progress(),
		})
	}

	res, err := c.srv.cfg.Assistant.Submit(ctx, c.session, turn, func(r *conversation.Record) {
		c.write(r)
	})
	switch {
	case errors.Is(err, studio.ErrTurnInFlight):
		c.write(Status{Type: TypeBusy})
	case errors.Is(err, studio.ErrCredentialRequired):
		c.write(Status{Type: TypeCredentialRequired})
	case err != nil:
		c.logger.Error("turn failed", "error", err)
		c.write(Status{Type: TypeFailed, Message: err.Error()})
	default:
		c.write(Status{
			Type:              TypeDone,
			Completed:         res.Completed,
			Degraded:          res.Degraded,
			CredentialInvalid: res.CredentialInvalid,
		})
	}
}

func (c *conn) ping(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// write sends v as one JSON text message. Failures are logged; the read
// loop notices a dead connection on its own.
func (c *conn) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(v); err != nil {
		c.logger.Debug("websocket write", "error", err)
		return err
	}
	return nil
}
