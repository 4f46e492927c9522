// Package api talks to the speech service's plain HTTP endpoints: token
// issue, speech synthesis and query history removal.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/parley/internal/token"
)

const (
	DefaultServer = "https://api.greynir.is"

	TokenEndpoint        = "/rat/v1/token"
	SocketEndpoint       = "/rat/v1/short_asr"
	SynthesisEndpoint    = "/rat/v2/tts"
	ClearHistoryEndpoint = "/rat/v1/clear_history"

	RequestTimeout = 10 * time.Second
	TokenTimeout   = 5 * time.Second
)

// ErrNoAudio indicates speech synthesis returned no playable audio.
var ErrNoAudio = errors.New("speech synthesis returned no audio")

// Doer is the subset of *http.Client the API needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// SpeechOptions tunes one synthesis request.
type SpeechOptions struct {
	Voice       string  `json:"voice,omitempty"`
	Speed       float64 `json:"speed"`
	TextFormat  string  `json:"text_format,omitempty"`
	AudioFormat string  `json:"audio_format,omitempty"`
}

// Client issues requests against one server with one API key.
type Client struct {
	server string
	apiKey string
	http   Doer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for every request.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// NewClient builds a client rooted at server (DefaultServer when empty).
func NewClient(server, apiKey string, opts ...Option) *Client {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = DefaultServer
	}
	c := &Client{
		server: server,
		apiKey: apiKey,
		http:   &http.Client{Timeout: RequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchToken requests a fresh session token. ctx without a deadline gets
// TokenTimeout.
func (c *Client) FetchToken(ctx context.Context) (token.Token, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, TokenTimeout)
		defer cancel()
	}
	return FetchToken(ctx, c.http, c.server+TokenEndpoint, c.apiKey)
}

// FetchToken performs GET url with the X-API-Key header and decodes the
// token body. ctx bounds the request. Non-200 responses and empty tokens
// are errors.
func FetchToken(ctx context.Context, doer Doer, url, apiKey string) (token.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return token.Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := doer.Do(req)
	if err != nil {
		return token.Token{}, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return token.Token{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return token.Token{}, fmt.Errorf("fetch token: unexpected status %d", resp.StatusCode)
	}

	tok := token.FromJSON(body)
	if tok.Value == "" {
		return token.Token{}, errors.New("fetch token: response carried no token")
	}
	return tok, nil
}

type synthesizeRequest struct {
	Text       string        `json:"text"`
	Transcribe bool          `json:"transcribe"`
	TTSOptions SpeechOptions `json:"tts_options"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
	Text     string `json:"text"`
}

// Synthesize requests speech for text and returns the audio URL.
func (c *Client) Synthesize(ctx context.Context, text string, opts SpeechOptions) (string, error) {
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}
	var out synthesizeResponse
	err := c.post(ctx, SynthesisEndpoint, synthesizeRequest{
		Text:       text,
		Transcribe: true,
		TTSOptions: opts,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	if strings.TrimSpace(out.AudioURL) == "" {
		return "", ErrNoAudio
	}
	return out.AudioURL, nil
}

type clearHistoryRequest struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
}

// ClearUserData asks the server to drop query history for clientID, or all
// client data when all is set.
func (c *Client) ClearUserData(ctx context.Context, clientID string, all bool) error {
	if strings.TrimSpace(clientID) == "" {
		return errors.New("client id is required")
	}
	action := "clear"
	if all {
		action = "clear_all"
	}
	if err := c.post(ctx, ClearHistoryEndpoint, clearHistoryRequest{Action: action, ClientID: clientID}, nil); err != nil {
		return fmt.Errorf("clear user data: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
