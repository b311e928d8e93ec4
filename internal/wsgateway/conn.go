// Package wsgateway implements the framed WebSocket gateway described in
// spec.md §4.1: handshake, heartbeat, per-connection dispatch, and the
// mutex-guarded output sink shared by concurrently in-flight requests.
package wsgateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hattiebot/hattiebot/internal/wireproto"
)

// HandshakeState is the connection's position in the state machine from
// spec.md §4.1.
type HandshakeState int

const (
	StateAwaitingConnect HandshakeState = iota
	StateAuthenticated
	StateClosing
)

const (
	handshakeTimeout   = 10 * time.Second
	heartbeatInterval  = 30 * time.Second
	slowConsumerLimit  = 1 << 20 // 1 MiB
)

// Conn is one live WebSocket session. Its outbound sink is guarded by
// sinkMu so that many concurrently spawned per-request tasks may write
// frames without interleaving bytes on the wire.
type Conn struct {
	ID string

	ws  *websocket.Conn
	log zerolog.Logger

	mu    sync.Mutex // guards state and lastHeartbeat
	state HandshakeState

	sinkMu      sync.Mutex // exclusive mutex over the outbound sink (§3 Connection)
	bufferedLen int64      // approximate buffered-byte count for backpressure

	seq uint64 // monotonic per-connection event sequence counter

	lastHeartbeat time.Time

	authFn func(AuthParams) bool

	cancel context.CancelFunc
}

// NewConn wraps an accepted *websocket.Conn in the handshake state machine.
func NewConn(ws *websocket.Conn, log zerolog.Logger, authFn func(AuthParams) bool) *Conn {
	id := newConnID()
	return &Conn{
		ID:            id,
		ws:            ws,
		log:           log.With().Str("conn", id).Logger(),
		state:         StateAwaitingConnect,
		lastHeartbeat: time.Now(),
		authFn:        authFn,
	}
}

func newConnID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// State returns the connection's current handshake state.
func (c *Conn) State() HandshakeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s HandshakeState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// nextSeq returns the next monotonically increasing sequence number for
// events sent on this connection.
func (c *Conn) nextSeq() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

// WriteFrame sends a single already-encoded frame under the exclusive
// output-sink mutex. It enforces the slow-consumer backpressure limit.
func (c *Conn) WriteFrame(raw []byte) error {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	if atomic.LoadInt64(&c.bufferedLen) > slowConsumerLimit {
		return errSlowConsumer
	}
	atomic.AddInt64(&c.bufferedLen, int64(len(raw)))
	defer atomic.AddInt64(&c.bufferedLen, -int64(len(raw)))

	return c.ws.WriteMessage(websocket.TextMessage, raw)
}

// SendEvent encodes and writes an event frame, assigning it the next
// sequence number for this connection.
func (c *Conn) SendEvent(name string, payload interface{}) error {
	raw, err := wireproto.EncodeEvent(wireproto.Event{Name: name, Payload: payload, Seq: c.nextSeq()})
	if err != nil {
		return err
	}
	return c.WriteFrame(raw)
}

// SendResponse encodes and writes a response frame for a request id.
func (c *Conn) SendResponse(id string, ok bool, payload interface{}, errPayload *wireproto.ErrorPayload) error {
	raw, err := wireproto.EncodeResponse(wireproto.Response{ID: id, OK: ok, Payload: payload, Error: errPayload})
	if err != nil {
		return err
	}
	return c.WriteFrame(raw)
}

// AuthParams is the parsed body of a connect request's "auth" field.
type AuthParams struct {
	Mode     string `json:"mode"`
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}
