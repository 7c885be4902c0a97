// Package recaptcha implements the legacy reCAPTCHA v1 image protocol: the
// two-step challenge handshake, the image download, and answer verification.
package recaptcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// DefaultEndpoint is the legacy reCAPTCHA API host. The protocol predates
// the TLS rollout; plaintext HTTP is what the endpoints speak.
const DefaultEndpoint = "http://www.google.com"

// remoteIP is the placeholder the legacy widget always sent on verification.
const remoteIP = "127.0.0.1"

const (
	challengePath = "/recaptcha/api/challenge"
	reloadPath    = "/recaptcha/api/reload"
	imagePath     = "/recaptcha/api/image"
	verifyPath    = "/recaptcha/api/verify"
)

// ChallengeSession is the outcome of a successful challenge fetch. It is
// held in memory only, consumed by VerifyAnswer, and replaced wholesale by
// the next fetch on the same client.
type ChallengeSession struct {
	ChallengeID string
	ImageToken  string
	ImageBytes  []byte
	ImageFormat string
	Width       int
	Height      int
}

// Client speaks the legacy protocol against a single endpoint. All calls on
// one client are serialized; the image token of the most recent fetch is the
// only one a verification may use.
type Client struct {
	endpoint     string
	languageCode string
	httpClient   HTTP

	mu      sync.Mutex
	current string
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h HTTP) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithEndpoint overrides the API host, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithLanguageCode asks the image endpoint to render in a specific language.
// The server auto-detects when unset.
func WithLanguageCode(code string) Option {
	return func(c *Client) {
		c.languageCode = code
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchChallenge runs the three-step handshake: challenge id, image token,
// image bytes. The previous session, if any, is invalidated whether or not
// the fetch succeeds.
func (c *Client) FetchChallenge(ctx context.Context, publicKey string) (*ChallengeSession, error) {
	if publicKey == "" {
		return nil, &ValidationError{Field: "publicKey", Reason: "cannot be empty"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = ""

	challenge, err := c.fetchChallengeID(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	token, err := c.fetchImageToken(ctx, challenge, publicKey)
	if err != nil {
		return nil, err
	}

	body, cfg, format, err := c.fetchImage(ctx, token)
	if err != nil {
		return nil, err
	}

	c.current = token
	return &ChallengeSession{
		ChallengeID: challenge,
		ImageToken:  token,
		ImageBytes:  body,
		ImageFormat: format,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// VerifyAnswer submits the user's answer for the given session. The session
// must be the one produced by this client's most recent FetchChallenge and
// is consumed by the call: the next verification needs a fresh challenge,
// whatever the outcome.
//
// The legacy endpoint reports success as a body beginning with the literal
// "true". A non-2xx status or any other body is false without an error;
// that permissive contract is preserved deliberately.
func (c *Client) VerifyAnswer(ctx context.Context, privateKey, answer string, session *ChallengeSession) (bool, error) {
	if privateKey == "" {
		return false, &ValidationError{Field: "privateKey", Reason: "cannot be empty"}
	}
	if answer == "" {
		return false, &ValidationError{Field: "answer", Reason: "cannot be empty"}
	}
	if session == nil || session.ImageToken == "" {
		return false, &ValidationError{Field: "session", Reason: "no challenge has been fetched"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if session.ImageToken != c.current {
		return false, &ValidationError{Field: "session", Reason: "stale challenge; fetch a new one"}
	}
	c.current = ""

	form := url.Values{
		"privatekey": {privateKey},
		"remoteip":   {remoteIP},
		"challenge":  {session.ImageToken},
		"response":   {answer},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+verifyPath, strings.NewReader(form.Encode()))
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &NetworkError{Err: fmt.Errorf("reading verify response: %w", err)}
	}

	return strings.HasPrefix(string(body), "true"), nil
}

func (c *Client) fetchChallengeID(ctx context.Context, publicKey string) (string, error) {
	body, err := c.get(ctx, challengePath, url.Values{"k": {publicKey}})
	if err != nil {
		return "", err
	}

	// The challenge page assigns a JS object literal; the scrape cuts it at
	// the first closing brace and re-appends the brace before parsing.
	fragment, ok := ExtractBetween(string(body), "RecaptchaState = ", "}")
	if !ok {
		return "", &ProtocolError{Step: "challenge", Reason: "RecaptchaState not found in response"}
	}

	var state struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal([]byte(fragment+"}"), &state); err != nil {
		return "", &ProtocolError{Step: "challenge", Reason: fmt.Sprintf("unparseable state: %v", err)}
	}
	if state.Challenge == "" {
		return "", &ProtocolError{Step: "challenge", Reason: "challenge field missing"}
	}

	return state.Challenge, nil
}

func (c *Client) fetchImageToken(ctx context.Context, challenge, publicKey string) (string, error) {
	q := url.Values{"c": {challenge}, "k": {publicKey}, "type": {"image"}}
	body, err := c.get(ctx, reloadPath, q)
	if err != nil {
		return "", err
	}

	token, ok := ExtractBetween(string(body), "('", "',")
	if !ok {
		return "", &ProtocolError{Step: "reload", Reason: "image token not found in response"}
	}

	return token, nil
}

func (c *Client) fetchImage(ctx context.Context, token string) ([]byte, image.Config, string, error) {
	q := url.Values{"c": {token}}
	if c.languageCode != "" {
		q.Set("hl", c.languageCode)
	}

	body, err := c.get(ctx, imagePath, q)
	if err != nil {
		return nil, image.Config{}, "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, image.Config{}, "", &ProtocolError{Step: "image", Reason: "response is not a decodable image"}
	}

	return body, cfg, format, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	return body, nil
}
