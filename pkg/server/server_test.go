package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/haivivi/studio/pkg/conversation"
	"github.com/haivivi/studio/pkg/mediastore"
	"github.com/haivivi/studio/pkg/studio"
)

type fakeAssistant struct {
	store  conversation.Store
	submit func(ctx context.Context, sessionID string, turn studio.Turn, observe func(*conversation.Record)) (studio.TurnResult, error)

	mu    sync.Mutex
	keys  []string
	turns []studio.Turn
}

func (a *fakeAssistant) Submit(ctx context.Context, sessionID string, turn studio.Turn, observe func(*conversation.Record)) (studio.TurnResult, error) {
	a.mu.Lock()
	a.turns = append(a.turns, turn)
	a.mu.Unlock()
	if a.submit == nil {
		return studio.TurnResult{}, nil
	}
	return a.submit(ctx, sessionID, turn, observe)
}

func (a *fakeAssistant) SetAPIKey(_ context.Context, key string) error {
	if key == "" {
		return studio.ErrCredentialRequired
	}
	a.mu.Lock()
	a.keys = append(a.keys, key)
	a.mu.Unlock()
	return nil
}

func (a *fakeAssistant) Store() conversation.Store { return a.store }

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *fakeAssistant) {
	t.Helper()
	fa, ok := cfg.Assistant.(*fakeAssistant)
	if !ok {
		fa = &fakeAssistant{}
		cfg.Assistant = fa
	}
	if fa.store == nil {
		fa.store = conversation.NewMemory()
	}
	ts := httptest.NewServer(New(cfg))
	t.Cleanup(ts.Close)
	return ts, fa
}

func dial(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if session != "" {
		url += "?session=" + session
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMsg(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m map[string]any
	if err := ws.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func createSession(t *testing.T, fa *fakeAssistant) string {
	t.Helper()
	sess, err := fa.store.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	return sess.ID
}

func TestWebSocketTurnStreamsRecordsThenDone(t *testing.T) {
	fa := &fakeAssistant{store: conversation.NewMemory()}
	fa.submit = func(_ context.Context, _ string, turn studio.Turn, observe func(*conversation.Record)) (studio.TurnResult, error) {
		observe(&conversation.Record{Kind: conversation.KindUser, Data: turn.Text})
		turn.Progress(0, studio.Task{Capability: studio.Chat, Instruction: turn.Text})
		observe(&conversation.Record{Kind: conversation.KindText, Capability: "CHAT", Data: "hello back"})
		return studio.TurnResult{Completed: 1, Degraded: true}, nil
	}
	ts, _ := newTestServer(t, Config{Assistant: fa})
	id := createSession(t, fa)
	ws := dial(t, ts, id)

	if m := readMsg(t, ws); m["type"] != TypeSession || m["session"] != id {
		t.Fatalf("first message = %v, want session %s", m, id)
	}
	if err := ws.WriteJSON(ClientMessage{Text: "hi"}); err != nil {
		t.Fatal(err)
	}

	var types []string
	var last map[string]any
	for len(types) < 4 {
		last = readMsg(t, ws)
		types = append(types, last["type"].(string))
	}
	want := []string{"user", TypeProgress, "text", TypeDone}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("message types = %v, want %v", types, want)
		}
	}
	if last["degraded"] != true || last["completed"] != float64(1) {
		t.Errorf("done = %v, want degraded and completed 1", last)
	}
}

func TestWebSocketCreatesSession(t *testing.T) {
	ts, fa := newTestServer(t, Config{})
	ws := dial(t, ts, "")

	m := readMsg(t, ws)
	id, _ := m["session"].(string)
	if m["type"] != TypeSession || id == "" {
		t.Fatalf("first message = %v, want a new session", m)
	}
	if _, err := fa.store.GetSession(context.Background(), id); err != nil {
		t.Errorf("session %s not stored: %v", id, err)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("resp = %v, want 404", resp)
	}
}

func TestWebSocketTurnErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"busy", studio.ErrTurnInFlight, TypeBusy},
		{"credential", studio.ErrCredentialRequired, TypeCredentialRequired},
		{"other", conversation.ErrNotFound, TypeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAssistant{store: conversation.NewMemory()}
			fa.submit = func(context.Context, string, studio.Turn, func(*conversation.Record)) (studio.TurnResult, error) {
				return studio.TurnResult{}, tt.err
			}
			ts, _ := newTestServer(t, Config{Assistant: fa})
			ws := dial(t, ts, createSession(t, fa))
			readMsg(t, ws)

			if err := ws.WriteJSON(ClientMessage{Type: TypeTurn, Text: "x"}); err != nil {
				t.Fatal(err)
			}
			if m := readMsg(t, ws); m["type"] != tt.want {
				t.Errorf("message = %v, want type %s", m, tt.want)
			}
		})
	}
}

func TestWebSocketImageAttachment(t *testing.T) {
	ts, fa := newTestServer(t, Config{})
	ws := dial(t, ts, createSession(t, fa))
	readMsg(t, ws)

	raw := `{"text":"make it blue","image":{"mime":"image/png","data":"iVBORw=="}}`
	if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatal(err)
	}
	if m := readMsg(t, ws); m["type"] != TypeDone {
		t.Fatalf("message = %v, want done", m)
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(fa.turns))
	}
	att := fa.turns[0].Attachment
	if att == nil || att.MIMEType != "image/png" || !bytes.Equal(att.Data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("attachment = %+v", att)
	}
}

func TestWebSocketImageDataURI(t *testing.T) {
	ts, fa := newTestServer(t, Config{})
	ws := dial(t, ts, createSession(t, fa))
	readMsg(t, ws)

	for _, image := range []string{`"data:image/png;base64,iVBORw0KGgo="`, `"iVBORw0KGgo="`} {
		raw := `{"text":"describe","image":` + image + `}`
		if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
		if m := readMsg(t, ws); m["type"] != TypeDone {
			t.Fatalf("message = %v, want done", m)
		}
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(fa.turns))
	}
	for i, turn := range fa.turns {
		if turn.Attachment == nil || turn.Attachment.MIMEType != "image/png" {
			t.Errorf("turn %d attachment = %+v, want image/png", i, turn.Attachment)
		}
	}
}

func TestWebSocketAPIKey(t *testing.T) {
	ts, fa := newTestServer(t, Config{})
	ws := dial(t, ts, createSession(t, fa))
	readMsg(t, ws)

	ws.WriteJSON(ClientMessage{Type: TypeAPIKey, APIKey: "new-key"})
	if m := readMsg(t, ws); m["type"] != TypeReady {
		t.Errorf("message = %v, want ready", m)
	}
	ws.WriteJSON(ClientMessage{Type: TypeAPIKey})
	if m := readMsg(t, ws); m["type"] != TypeFailed {
		t.Errorf("message = %v, want failed", m)
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.keys) != 1 || fa.keys[0] != "new-key" {
		t.Errorf("keys = %v", fa.keys)
	}
}

func TestWebSocketInvalidMessages(t *testing.T) {
	ts, fa := newTestServer(t, Config{})
	ws := dial(t, ts, createSession(t, fa))
	readMsg(t, ws)

	ws.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if m := readMsg(t, ws); m["type"] != TypeFailed {
		t.Errorf("message = %v, want failed", m)
	}
	ws.WriteJSON(ClientMessage{Type: "dance"})
	if m := readMsg(t, ws); m["type"] != TypeFailed {
		t.Errorf("message = %v, want failed", m)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	ts, fa := newTestServer(t, Config{Rate: rate.Every(time.Hour), Burst: 1})
	ws := dial(t, ts, createSession(t, fa))
	readMsg(t, ws)

	ws.WriteJSON(ClientMessage{Text: "one"})
	ws.WriteJSON(ClientMessage{Text: "two"})

	seen := map[string]bool{}
	for range 2 {
		seen[readMsg(t, ws)["type"].(string)] = true
	}
	if !seen[TypeDone] || !seen[TypeRateLimited] {
		t.Errorf("seen = %v, want done and rate_limited", seen)
	}
}

func TestMediaRoute(t *testing.T) {
	media := mediastore.New(mediastore.NewMemory())
	h, err := media.Put(context.Background(), "video/mp4", []byte("movie"))
	if err != nil {
		t.Fatal(err)
	}
	ts, _ := newTestServer(t, Config{Media: media})

	resp, err := http.Get(ts.URL + "/media/" + h.ID)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", ct)
	}
	if string(body) != "movie" {
		t.Errorf("body = %q", body)
	}

	resp, err = http.Get(ts.URL + "/media/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", resp.StatusCode)
	}
}

func TestMediaRouteWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/media/any")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "studio_test_total", Help: "test"}).Inc()
	ts, _ := newTestServer(t, Config{Gatherer: reg})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "studio_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}

func TestClientMessageJSON(t *testing.T) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(`{"text":"hi"}`), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "" || msg.Text != "hi" || msg.Image != nil {
		t.Errorf("msg = %+v", msg)
	}
}
