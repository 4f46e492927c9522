package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/parley/internal/api"
	"github.com/rbright/parley/internal/channel"
	"github.com/rbright/parley/internal/protocol"
	"github.com/rbright/parley/internal/token"
	"github.com/rbright/parley/internal/version"
)

const (
	DefaultQueryServer = "https://greynir.is"
	DefaultVoiceID     = "Guðrún"
	DefaultVoiceSpeed  = 1.0
)

// LocationFunc returns [latitude, longitude]. Any other length means the
// location is unknown.
type LocationFunc func() []float64

// TokenSource replaces the default HTTP token fetch. A nil token or an error
// clears the cached token.
type TokenSource func(context.Context) (*token.Token, error)

// Handlers are optional lifecycle callbacks. They run one at a time on
// whichever goroutine is driving the session and may call Stop or Cancel.
type Handlers struct {
	OnStartStreaming      func()
	OnSpeechTextReceived  func(transcript string, isFinal bool, result protocol.ASRResult)
	OnStartQuerying       func()
	OnQueryAnswerReceived func(answer protocol.QueryData)
	OnStartAnswering      func()
	OnDone                func()
	OnError               func(message string)
}

// Config is the per-session configuration plus the token cache shared by
// every session created from it.
type Config struct {
	APIKey        string
	Engine        string
	VoiceID       string
	VoiceSpeed    float64
	PrivateMode   bool
	ClientID      string
	ClientType    string
	ClientVersion string
	Query         bool
	TTS           bool
	QueryServer   string
	// Audio enables UI sounds (start, confirm, cancel, error cues).
	Audio       bool
	Location    LocationFunc
	Handlers    Handlers
	TokenSource TokenSource

	server       string
	tokenURL     string
	socketURL    string
	tokens       *token.Cache
	http         api.Doer
	tokenTimeout time.Duration
	observer     Observer
}

// ConfigOption customizes NewConfig.
type ConfigOption func(*Config)

// WithTokenCache shares a token cache between configs.
func WithTokenCache(cache *token.Cache) ConfigOption {
	return func(c *Config) {
		if cache != nil {
			c.tokens = cache
		}
	}
}

func WithHTTPClient(doer api.Doer) ConfigOption {
	return func(c *Config) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithTokenTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		if timeout > 0 {
			c.tokenTimeout = timeout
		}
	}
}

// WithConfigObserver reports token fetch outcomes.
func WithConfigObserver(observer Observer) ConfigOption {
	return func(c *Config) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// NewConfig derives endpoint URLs from server and fills defaults.
func NewConfig(server string, opts ...ConfigOption) *Config {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = api.DefaultServer
	}

	cfg := &Config{
		VoiceID:       DefaultVoiceID,
		VoiceSpeed:    DefaultVoiceSpeed,
		ClientVersion: version.Version,
		Query:         true,
		TTS:           true,
		QueryServer:   DefaultQueryServer,
		Audio:         true,

		server:       server,
		tokenURL:     server + api.TokenEndpoint,
		socketURL:    channel.SocketURL(server, api.SocketEndpoint),
		tokens:       token.NewCache(),
		http:         http.DefaultClient,
		tokenTimeout: api.TokenTimeout,
		observer:     noopObserver{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) Server() string    { return c.server }
func (c *Config) TokenURL() string  { return c.tokenURL }
func (c *Config) SocketURL() string { return c.socketURL }

// QueryURL is the query endpoint the server forwards transcripts to.
func (c *Config) QueryURL() string {
	return strings.TrimRight(c.QueryServer, "/") + "/query.api"
}

// HasValidToken reports whether a non-expired token is cached.
func (c *Config) HasValidToken() bool {
	return c.tokens.Valid()
}

// Token returns the cached token string, or "" when none is cached.
func (c *Config) Token() string {
	tok, ok := c.tokens.Load()
	if !ok {
		return ""
	}
	return tok.Value
}

func (c *Config) ResetToken() {
	c.tokens.Clear()
}

// FetchToken refreshes the cached token unless a valid one is present.
// Failures clear the cache; the returned error only describes why.
func (c *Config) FetchToken(ctx context.Context) error {
	if c.HasValidToken() {
		c.observer.ObserveTokenFetch(TokenCached)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.tokenTimeout)
	defer cancel()

	tok, err := c.fetch(ctx)
	if err != nil {
		c.tokens.Clear()
		c.observer.ObserveTokenFetch(TokenFailed)
		return err
	}
	c.tokens.Store(tok)
	c.observer.ObserveTokenFetch(TokenFetched)
	return nil
}

func (c *Config) fetch(ctx context.Context) (*token.Token, error) {
	if c.TokenSource != nil {
		tok, err := c.TokenSource(ctx)
		if err != nil {
			return nil, fmt.Errorf("token source: %w", err)
		}
		if tok == nil {
			return nil, errors.New("token source returned no token")
		}
		return tok, nil
	}

	tok, err := api.FetchToken(ctx, c.http, c.tokenURL, c.APIKey)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (h Handlers) startStreaming() {
	if h.OnStartStreaming != nil {
		h.OnStartStreaming()
	}
}

func (h Handlers) speechText(transcript string, isFinal bool, result protocol.ASRResult) {
	if h.OnSpeechTextReceived != nil {
		h.OnSpeechTextReceived(transcript, isFinal, result)
	}
}

func (h Handlers) startQuerying() {
	if h.OnStartQuerying != nil {
		h.OnStartQuerying()
	}
}

func (h Handlers) answer(data protocol.QueryData) {
	if h.OnQueryAnswerReceived != nil {
		h.OnQueryAnswerReceived(data)
	}
}

func (h Handlers) startAnswering() {
	if h.OnStartAnswering != nil {
		h.OnStartAnswering()
	}
}

func (h Handlers) done() {
	if h.OnDone != nil {
		h.OnDone()
	}
}

func (h Handlers) fail(message string) {
	if h.OnError != nil {
		h.OnError(message)
	}
}
