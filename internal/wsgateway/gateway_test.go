package wsgateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hattiebot/hattiebot/internal/wireproto"
)

func newTestServer(t *testing.T, authMode, token string) (*Gateway, *httptest.Server) {
	t.Helper()
	g := New(Config{
		AuthMode:  authMode,
		AuthToken: token,
		Features:  []string{"chat", "terminal"},
		Log:       zerolog.Nop(),
	})
	srv := httptest.NewServer(g.Router(HTTPConfig{}))
	t.Cleanup(srv.Close)
	return g, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) wireproto.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := wireproto.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func sendReq(t *testing.T, ws *websocket.Conn, id, method string, params interface{}) {
	t.Helper()
	raw, _ := json.Marshal(params)
	frame, err := wireproto.EncodeRequest(wireproto.Request{ID: id, Method: method, Params: raw})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// TestHandshakeThenPing exercises scenario E1 from spec.md §8.
func TestHandshakeThenPing(t *testing.T) {
	_, srv := newTestServer(t, "token", "T")
	ws := dial(t, srv)

	challenge := readEnvelope(t, ws)
	if challenge.Type != wireproto.KindEvent {
		t.Fatalf("expected challenge event, got %+v", challenge)
	}
	name, _ := challenge.AsEvent()
	if name != "connect.challenge" {
		t.Fatalf("expected connect.challenge, got %s", name)
	}

	sendReq(t, ws, "r1", "connect", map[string]interface{}{"auth": map[string]string{"mode": "token", "token": "T"}})
	res := readEnvelope(t, ws)
	if res.Type != wireproto.KindResponse || res.ID != "r1" || res.OK == nil || !*res.OK {
		t.Fatalf("expected successful connect response, got %+v", res)
	}

	sendReq(t, ws, "r2", "ping", nil)
	res2 := readEnvelope(t, ws)
	if res2.Type != wireproto.KindResponse || res2.ID != "r2" || res2.OK == nil || !*res2.OK {
		t.Fatalf("expected pong response, got %+v", res2)
	}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	_, srv := newTestServer(t, "token", "T")
	ws := dial(t, srv)
	readEnvelope(t, ws) // challenge

	sendReq(t, ws, "r1", "connect", map[string]interface{}{"auth": map[string]string{"mode": "token", "token": "wrong"}})
	res := readEnvelope(t, ws)
	if res.OK == nil || *res.OK {
		t.Fatalf("expected auth failure, got %+v", res)
	}
}

func TestUnknownMethodAfterConnect(t *testing.T) {
	_, srv := newTestServer(t, "none", "")
	ws := dial(t, srv)
	readEnvelope(t, ws)

	sendReq(t, ws, "r1", "connect", map[string]interface{}{"auth": map[string]string{"mode": "none"}})
	readEnvelope(t, ws)

	sendReq(t, ws, "r2", "does.not.exist", nil)
	res := readEnvelope(t, ws)
	if res.Error == nil || res.Error.Code != "UNKNOWN_METHOD" {
		t.Fatalf("expected UNKNOWN_METHOD, got %+v", res)
	}
}

type fakePipeline struct{}

func (fakePipeline) Handle(ctx context.Context, sessionKey, channel, text string, deltas func(kind, text string)) (PipelineResult, error) {
	if deltas != nil {
		deltas("text", "hi")
	}
	return PipelineResult{Content: "hi", Model: "fake", StopReason: "end_turn"}, nil
}

// TestConcurrentChatSend exercises scenario E2: two chat.send requests on
// one connection complete independently and each result is tagged with
// its own request id.
func TestConcurrentChatSend(t *testing.T) {
	g := New(Config{AuthMode: "none", Log: zerolog.Nop(), Backend: Backend{Pipeline: fakePipeline{}}})
	srv := httptest.NewServer(g.Router(HTTPConfig{}))
	t.Cleanup(srv.Close)
	ws := dial(t, srv)
	readEnvelope(t, ws)
	sendReq(t, ws, "r0", "connect", map[string]interface{}{"auth": map[string]string{"mode": "none"}})
	readEnvelope(t, ws)

	sendReq(t, ws, "r3", "chat.send", map[string]string{"text": "hi"})
	sendReq(t, ws, "r4", "chat.send", map[string]string{"text": "hi"})

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		env := readEnvelope(t, ws)
		if env.Type == wireproto.KindResponse {
			seen[env.ID] = true
		}
	}
	if !seen["r3"] || !seen["r4"] {
		t.Fatalf("expected responses for both r3 and r4, got %+v", seen)
	}
}
