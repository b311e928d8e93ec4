package wireproto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	want := Request{ID: "r1", Method: "ping", Params: json.RawMessage(`{"a":1}`)}
	raw, err := EncodeRequest(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != KindRequest || env.ID != want.ID || env.Method != want.Method {
		t.Fatalf("round trip mismatch: %+v", env)
	}
	if string(env.Params) != string(want.Params) {
		t.Fatalf("params mismatch: %s", env.Params)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	want := Response{ID: "r2", OK: true, Payload: map[string]int{"pong": 1}}
	raw, err := EncodeResponse(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != KindResponse || env.ID != want.ID || env.OK == nil || !*env.OK {
		t.Fatalf("round trip mismatch: %+v", env)
	}
}

func TestEventRoundTrip(t *testing.T) {
	want := Event{Name: "connect.challenge", Payload: map[string]string{"nonce": "abc"}, Seq: 1}
	raw, err := EncodeEvent(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	name, err := env.AsEvent()
	if err != nil {
		t.Fatalf("as event: %v", err)
	}
	if env.Type != KindEvent || name != want.Name || env.Seq != want.Seq {
		t.Fatalf("round trip mismatch: %+v", env)
	}
}

func TestOversizeFrameRejected(t *testing.T) {
	big := strings.Repeat("x", MaxFramePayload+1)
	_, err := EncodeRequest(Request{ID: "r3", Method: "chat.send", Params: json.RawMessage(`"` + big + `"`)})
	if err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	rawBig := []byte(strings.Repeat("y", MaxFramePayload+1))
	if _, err := Decode(rawBig); err != ErrFrameTooLarge {
		t.Fatalf("decode: expected ErrFrameTooLarge, got %v", err)
	}
}

func TestUnknownFrameTypeRejected(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"bogus"}`)); err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}
