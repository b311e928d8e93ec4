package wsgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hattiebot/hattiebot/internal/wireproto"
)

// WebhookSource describes one configured inbound webhook source.
type WebhookSource struct {
	Auth   string // "hmac-sha256" | "bearer-token" | "none"
	Secret string
}

// HTTPConfig configures the coexisting HTTP surface (spec.md §4.1, §6).
type HTTPConfig struct {
	BearerToken string
	Webhooks    map[string]WebhookSource
	// OnWebhook receives the validated body for source; it decides
	// (per spec.md Open Question iii) whether to inject into the
	// pipeline directly or only emit a hook event. HattieBot's core
	// takes the hook-only-emit path: it never blocks the HTTP response
	// on a full agent turn.
	OnWebhook func(source string, body []byte, headers http.Header)
}

// Router builds the chi router serving /health, /ws, the OpenAI-shaped
// completions endpoint, the one-shot /chat endpoint, and /webhooks/{source}.
func (g *Gateway) Router(hc HTTPConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/health", g.handleHealth)
	r.Get("/ws", g.ServeWS)
	r.Post("/v1/chat/completions", g.handleOpenAICompletions)
	r.With(bearerAuth(hc.BearerToken)).Post("/chat", g.handleOneShotChat)
	r.Post("/webhooks/{source}", g.handleWebhook(hc))

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"version":   g.backend.Version.Version,
		"git_sha":   g.backend.Version.GitSHA,
		"protocol":  wireproto.ProtocolVersion,
		"ws_clients": g.ConnCount(),
	}
	if g.backend.Providers != nil {
		resp["providers"] = g.backend.Providers.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// openAIChatRequest is the subset of the OpenAI chat-completions request
// shape the adapter accepts.
type openAIChatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func (g *Gateway) handleOpenAICompletions(w http.ResponseWriter, r *http.Request) {
	if g.backend.Pipeline == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "pipeline not configured")
		return
	}
	var req openAIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	var lastUser string
	for _, m := range req.Messages {
		if m.Role == "user" {
			lastUser = m.Content
		}
	}
	sessionKey := fmt.Sprintf("user:http:%s:default", r.RemoteAddr)

	if req.Stream {
		g.streamOpenAICompletion(w, r, sessionKey, lastUser, req.Model)
		return
	}

	result, err := g.backend.Pipeline.Handle(r.Context(), sessionKey, "http", lastUser, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "LLM_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, openAICompletionEnvelope(result, req.Model))
}

func (g *Gateway) streamOpenAICompletion(w http.ResponseWriter, r *http.Request, sessionKey, text, model string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	deltas := func(kind, chunk string) {
		if kind != "text" {
			return
		}
		frame := map[string]interface{}{
			"choices": []map[string]interface{}{{"delta": map[string]string{"content": chunk}}},
		}
		raw, _ := json.Marshal(frame)
		fmt.Fprintf(w, "data: %s\n\n", raw)
		flusher.Flush()
	}

	_, err := g.backend.Pipeline.Handle(r.Context(), sessionKey, "http", text, deltas)
	if err != nil {
		fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"error": err.Error()}))
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func openAICompletionEnvelope(res PipelineResult, model string) map[string]interface{} {
	if model == "" {
		model = res.Model
	}
	return map[string]interface{}{
		"object": "chat.completion",
		"model":  model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": res.StopReason,
				"message":       map[string]string{"role": "assistant", "content": res.Content},
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     res.TokensIn,
			"completion_tokens": res.TokensOut,
			"total_tokens":      res.TokensIn + res.TokensOut,
		},
	}
}

func (g *Gateway) handleOneShotChat(w http.ResponseWriter, r *http.Request) {
	if g.backend.Pipeline == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "pipeline not configured")
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	sessionKey := fmt.Sprintf("user:http:%s:default", r.RemoteAddr)
	result, err := g.backend.Pipeline.Handle(r.Context(), sessionKey, "http", body.Message, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "LLM_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply":      result.Content,
		"model":      result.Model,
		"tokens_in":  result.TokensIn,
		"tokens_out": result.TokensOut,
	})
}

// handleWebhook validates the inbound webhook per its configured auth
// policy and hands the raw body to hc.OnWebhook. The core does not
// inject webhook bodies into the pipeline directly (Open Question iii,
// resolved as hook-only-emit in SPEC_FULL.md).
func (g *Gateway) handleWebhook(hc HTTPConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		src, ok := hc.Webhooks[source]
		if !ok {
			writeJSONError(w, http.StatusNotFound, "UNKNOWN_SOURCE", source)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}

		switch src.Auth {
		case "hmac-sha256":
			sig := r.Header.Get("X-Hub-Signature-256")
			if !validHMAC(src.Secret, body, sig) {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bad signature")
				return
			}
		case "bearer-token":
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(src.Secret)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bad token")
				return
			}
		case "none":
		default:
			writeJSONError(w, http.StatusInternalServerError, "CONFIG_ERROR", "unknown auth policy")
			return
		}

		if hc.OnWebhook != nil {
			hc.OnWebhook(source, body, r.Header)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func validHMAC(secret string, body []byte, sigHeader string) bool {
	sigHeader = strings.TrimPrefix(sigHeader, "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sigHeader))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": map[string]string{"code": code, "message": msg}})
}

func mustJSON(v interface{}) []byte {
	raw, _ := json.Marshal(v)
	return raw
}
