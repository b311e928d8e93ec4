package wsgateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hattiebot/hattiebot/internal/wireproto"
)

var errSlowConsumer = errors.New("wsgateway: slow consumer, closing")

// HandlerFunc handles a single dispatched request. Implementations that
// do long-running work (chat.send) MUST NOT block the caller of Serve;
// Gateway spawns chat.send in its own goroutine (see dispatchMethod).
type HandlerFunc func(ctx context.Context, c *Conn, req wireproto.Request) (payload interface{}, errCode, errMsg string)

// longRunningMethods are handed to an independently scheduled goroutine
// so the read loop never blocks on them (spec.md §4.1 dispatch rule).
var longRunningMethods = map[string]bool{
	"chat.send": true,
}

// Serve runs the connection's read loop until the socket closes or the
// context is canceled. It performs the handshake, then dispatches every
// subsequent request frame by method name.
func (g *Gateway) Serve(ctx context.Context, c *Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()
	defer c.ws.Close()

	if err := c.SendEvent("connect.challenge", map[string]string{"nonce": newConnID()}); err != nil {
		return err
	}

	if err := g.awaitHandshake(ctx, c); err != nil {
		c.setState(StateClosing)
		return err
	}
	c.setState(StateAuthenticated)

	go g.heartbeatLoop(ctx, c)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		env, err := wireproto.Decode(raw)
		if err != nil {
			_ = c.SendResponse("", false, nil, &wireproto.ErrorPayload{Code: "PROTOCOL_ERROR", Message: err.Error()})
			return err
		}
		if env.Type != wireproto.KindRequest {
			continue
		}
		req := wireproto.Request{ID: env.ID, Method: env.Method, Params: env.Params}

		if req.Method == "connect" {
			// A second connect on an authenticated connection is rejected.
			_ = c.SendResponse(req.ID, false, nil, &wireproto.ErrorPayload{Code: "ALREADY_AUTHENTICATED", Message: "connect already completed"})
			continue
		}

		g.dispatchMethod(ctx, c, req)
	}
}

// awaitHandshake blocks until a valid connect request arrives or the
// handshake timeout elapses.
func (g *Gateway) awaitHandshake(ctx context.Context, c *Conn) error {
	deadline := time.Now().Add(handshakeTimeout)
	_ = c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("wsgateway: handshake read: %w", err)
		}
		env, err := wireproto.Decode(raw)
		if err != nil {
			return err
		}
		if env.Type != wireproto.KindRequest || env.Method != "connect" {
			// Non-handshake methods are rejected before connect succeeds.
			continue
		}

		var params struct {
			Auth AuthParams `json:"auth"`
		}
		_ = json.Unmarshal(env.Params, &params)

		if !g.checkAuth(params.Auth) {
			_ = c.SendResponse(env.ID, false, nil, &wireproto.ErrorPayload{Code: "AUTH_FAILED", Message: "invalid credentials"})
			return errors.New("wsgateway: handshake auth failed")
		}

		return c.SendResponse(env.ID, true, map[string]interface{}{
			"protocol": wireproto.ProtocolVersion,
			"features": g.features,
		}, nil)
	}
}

// checkAuth validates a connect request's auth block against the
// gateway's configured mode. Token comparison is constant-time.
func (g *Gateway) checkAuth(a AuthParams) bool {
	switch g.authMode {
	case "none":
		return true
	case "token":
		if a.Mode != "token" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(a.Token), []byte(g.authToken)) == 1
	case "password":
		if a.Mode != "password" || a.Password == "" || g.authPasswordHash == "" {
			return false
		}
		err := bcrypt.CompareHashAndPassword([]byte(g.authPasswordHash), []byte(a.Password))
		return err == nil
	default:
		return false
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.lastHeartbeat = time.Now()
			c.mu.Unlock()
			if err := c.SendEvent("heartbeat", map[string]int64{"ts": time.Now().Unix()}); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// dispatchMethod looks up the handler for req.Method and either runs it
// inline (short methods) or spawns it as an independent task (chat.send),
// per the non-blocking read-loop contract in spec.md §4.1 and §5.
func (g *Gateway) dispatchMethod(ctx context.Context, c *Conn, req wireproto.Request) {
	h, ok := g.methods[req.Method]
	if !ok {
		_ = c.SendResponse(req.ID, false, nil, &wireproto.ErrorPayload{Code: "UNKNOWN_METHOD", Message: req.Method})
		return
	}

	run := func() {
		payload, code, msg := h(ctx, c, req)
		if code != "" {
			_ = c.SendResponse(req.ID, false, nil, &wireproto.ErrorPayload{Code: code, Message: msg})
			return
		}
		_ = c.SendResponse(req.ID, true, payload, nil)
	}

	if longRunningMethods[req.Method] {
		go run()
		return
	}
	run()
}

// SendReqEvent sends an event frame tagged with the originating request id,
// used by chat.send's streaming deltas so clients can demultiplex events
// from concurrent in-flight requests on the same connection.
func (c *Conn) SendReqEvent(reqID, name string, payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["req_id"] = reqID
	return c.SendEvent(name, payload)
}
