package llmrouter

import (
	"context"
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// refreshBuffer is how far ahead of expiry a credential is refreshed.
const refreshBuffer = 120 * time.Second

// OAuthCredentials is the on-disk shape for a device-flow OAuth provider
// (spec.md §4.2 "OAuth with refresh token", grounded on Qwen-style
// device-flow clients used across the pack's coding-agent repos).
type OAuthCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// OAuthAuth manages a file-persisted OAuth credential with refresh.
type OAuthAuth struct {
	Path       string
	TokenURL   string
	ClientID   string
	httpClient *http.Client

	mu    sync.Mutex
	creds OAuthCredentials
}

// NewOAuthAuth loads credentials from path if present.
func NewOAuthAuth(path, tokenURL, clientID string) (*OAuthAuth, error) {
	a := &OAuthAuth{Path: path, TokenURL: tokenURL, ClientID: clientID, httpClient: http.DefaultClient}
	raw, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(raw, &a.creds)
	}
	return a, nil
}

func (a *OAuthAuth) TokenInfo() TokenInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return TokenInfo{Kind: "oauth", ExpiresAt: a.creds.ExpiresAt, Refreshable: a.creds.RefreshToken != ""}
}

// RefreshAuth re-exchanges the refresh token when the access token is
// within refreshBuffer of expiry.
func (a *OAuthAuth) RefreshAuth(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Until(a.creds.ExpiresAt) > refreshBuffer {
		return nil
	}
	if a.creds.RefreshToken == "" {
		return fmt.Errorf("llmrouter: oauth provider has no refresh token")
	}

	form := strings.NewReader(fmt.Sprintf("grant_type=refresh_token&refresh_token=%s&client_id=%s", a.creds.RefreshToken, a.ClientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, form)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llmrouter: oauth refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llmrouter: oauth refresh: status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	a.creds.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		a.creds.RefreshToken = out.RefreshToken
	}
	a.creds.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)

	raw, _ := json.Marshal(a.creds)
	return os.WriteFile(a.Path, raw, 0o600)
}

func (a *OAuthAuth) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds.AccessToken
}

// TokenExchangeAuth swaps a long-lived token for a short-lived key,
// caching the exchanged key (spec.md §4.2 "Token exchange", GitHub
// Copilot-style).
type TokenExchangeAuth struct {
	LongLivedToken string
	ExchangeURL    string
	TTL            time.Duration
	httpClient     *http.Client

	mu        sync.Mutex
	shortKey  string
	expiresAt time.Time
}

func NewTokenExchangeAuth(longLived, exchangeURL string) *TokenExchangeAuth {
	return &TokenExchangeAuth{LongLivedToken: longLived, ExchangeURL: exchangeURL, TTL: 30 * time.Minute, httpClient: http.DefaultClient}
}

func (t *TokenExchangeAuth) TokenInfo() TokenInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TokenInfo{Kind: "exchange", ExpiresAt: t.expiresAt, Refreshable: true}
}

func (t *TokenExchangeAuth) RefreshAuth(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Until(t.expiresAt) > refreshBuffer {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.ExchangeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+t.LongLivedToken)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llmrouter: token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llmrouter: token exchange: status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	t.shortKey = out.Token
	t.expiresAt = time.Now().Add(t.TTL)
	return nil
}

func (t *TokenExchangeAuth) ShortLivedKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shortKey
}

// SigV4Signer signs a request from a static credential chain: environment
// variables first, then a file-based profile. No AWS SDK appears anywhere
// in the example pack, so the signer is a minimal from-scratch
// implementation of the SigV4 canonical-request algorithm rather than a
// fabricated dependency (see DESIGN.md).
type SigV4Signer struct {
	Region      string
	Service     string
	AccessKeyID string
	SecretKey   string
}

// NewSigV4Signer resolves credentials from env vars, falling back to a
// "[profile]\naws_access_key_id=...\naws_secret_access_key=..." file.
func NewSigV4Signer(region, service, profilePath string) (*SigV4Signer, error) {
	s := &SigV4Signer{
		Region:      region,
		Service:     service,
		AccessKeyID: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if s.AccessKeyID != "" && s.SecretKey != "" {
		return s, nil
	}
	raw, err := os.ReadFile(profilePath)
	if err != nil {
		return nil, fmt.Errorf("llmrouter: no SigV4 credentials in env or %s: %w", profilePath, err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "aws_access_key_id"):
			s.AccessKeyID = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
		case strings.HasPrefix(line, "aws_secret_access_key"):
			s.SecretKey = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
		}
	}
	return s, nil
}

// Sign computes the SigV4 Authorization header value for one request.
func (s *SigV4Signer) Sign(method, path string, headers map[string]string, body []byte, now time.Time) string {
	amzDate := now.UTC().Format("20060102T150405Z")
	dateStamp := now.UTC().Format("20060102")

	headerNames := make([]string, 0, len(headers))
	for k := range headers {
		headerNames = append(headerNames, strings.ToLower(k))
	}
	signedHeaders := strings.Join(headerNames, ";")

	canonicalHeaders := ""
	for _, k := range headerNames {
		canonicalHeaders += k + ":" + headers[k] + "\n"
	}

	payloadHash := sha256Hex(body)
	canonicalRequest := strings.Join([]string{method, path, "", canonicalHeaders, signedHeaders, payloadHash}, "\n")

	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, s.Region, s.Service)
	stringToSign := strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, sha256Hex([]byte(canonicalRequest))}, "\n")

	signingKey := hmacSHA256(hmacSHA256(hmacSHA256(hmacSHA256([]byte("AWS4"+s.SecretKey), dateStamp), s.Region), s.Service), "aws4_request")
	signature := hex.EncodeToString(hmacRaw(signingKey, stringToSign))

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s", s.AccessKeyID, scope, signedHeaders, signature)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacRaw(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hmacSHA256(key []byte, data string) []byte {
	return hmacRaw(key, data)
}

// JWTServiceAuth signs an RS256 JWT from a private key file, exchanges it
// for an access token, and caches the result with a refresh buffer
// (spec.md §4.2 "JWT-signed access token", service-account style).
type JWTServiceAuth struct {
	KeyPath     string
	ClientEmail string
	TokenURL    string
	httpClient  *http.Client

	mu        sync.Mutex
	key       *rsa.PrivateKey
	access    string
	expiresAt time.Time
}

func NewJWTServiceAuth(keyPath, clientEmail, tokenURL string) (*JWTServiceAuth, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("llmrouter: read service key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("llmrouter: invalid PEM in %s", keyPath)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		keyIface, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("llmrouter: parse service key: %w", err)
		}
		var ok bool
		key, ok = keyIface.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("llmrouter: service key is not RSA")
		}
	}
	return &JWTServiceAuth{KeyPath: keyPath, ClientEmail: clientEmail, TokenURL: tokenURL, httpClient: http.DefaultClient, key: key}, nil
}

func (j *JWTServiceAuth) TokenInfo() TokenInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return TokenInfo{Kind: "jwt", ExpiresAt: j.expiresAt, Refreshable: true}
}

func (j *JWTServiceAuth) RefreshAuth(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if time.Until(j.expiresAt) > refreshBuffer {
		return nil
	}

	now := time.Now()
	header := base64URL([]byte(`{"alg":"RS256","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]interface{}{
		"iss": j.ClientEmail,
		"aud": j.TokenURL,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	signingInput := header + "." + base64URL(claims)

	hashed := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, j.key, crypto.SHA256, hashed[:])
	if err != nil {
		return fmt.Errorf("llmrouter: sign service jwt: %w", err)
	}
	assertion := signingInput + "." + base64URL(sig)

	form := strings.NewReader("grant_type=urn:ietf:params:oauth:grant-type:jwt-bearer&assertion=" + assertion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.TokenURL, form)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llmrouter: exchange service jwt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llmrouter: exchange service jwt: status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	j.access = out.AccessToken
	j.expiresAt = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	return nil
}

func (j *JWTServiceAuth) AccessToken() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.access
}

func base64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// AuthMonitor polls every 5 minutes and refreshes any provider whose
// TokenInfo is within 15 minutes of expiry (spec.md §4.2 background
// monitor). Refresh errors are logged by the caller-supplied onError,
// never propagated.
type AuthMonitor struct {
	Providers []Refreshable
	OnError   func(err error)
}

func (m *AuthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *AuthMonitor) tick(ctx context.Context) {
	for _, p := range m.Providers {
		info := p.TokenInfo()
		if !info.Refreshable {
			continue
		}
		if time.Until(info.ExpiresAt) > 15*time.Minute {
			continue
		}
		if err := p.RefreshAuth(ctx); err != nil && m.OnError != nil {
			m.OnError(err)
		}
	}
}
