// Package token models the short-lived authentication token that opens a
// speech session, and the cache that shares it between sessions.
package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ExpiryMargin is how far ahead of its deadline a token is treated as expired.
const ExpiryMargin = 30 * time.Second

// zone-less layouts are interpreted in local time.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Token is an opaque server credential with an expiry instant.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type wireToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// FromJSON decodes {"token": ..., "expires_at": ...}. It never fails:
// malformed input yields an empty token expiring now.
func FromJSON(data []byte) Token {
	var wire wireToken
	if err := json.Unmarshal(data, &wire); err != nil {
		return Token{ExpiresAt: time.Now()}
	}

	expiresAt, ok := parseExpiry(wire.ExpiresAt)
	if !ok {
		return Token{ExpiresAt: time.Now()}
	}
	return Token{Value: wire.Token, ExpiresAt: expiresAt}
}

func parseExpiry(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// IsExpired reports whether the token is unusable right now.
func (t Token) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the token is empty or expires within
// ExpiryMargin of now.
func (t Token) IsExpiredAt(now time.Time) bool {
	if t.Value == "" {
		return true
	}
	return t.ExpiresAt.Before(now.Add(ExpiryMargin))
}

func (t Token) String() string {
	return fmt.Sprintf("AuthToken: %s (expires at %s)", t.Value, t.ExpiresAt.Format(time.RFC3339))
}

// Cache holds the most recently fetched token. The last write wins.
type Cache struct {
	mu  sync.RWMutex
	tok *Token
}

func NewCache() *Cache {
	return &Cache{}
}

// Load returns the cached token, if any.
func (c *Cache) Load() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tok == nil {
		return Token{}, false
	}
	return *c.tok, true
}

// Valid reports whether a cached token exists and has not expired.
func (c *Cache) Valid() bool {
	tok, ok := c.Load()
	return ok && !tok.IsExpired()
}

// Store replaces the cached token. A nil token clears the cache.
func (c *Cache) Store(tok *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok == nil {
		c.tok = nil
		return
	}
	cp := *tok
	c.tok = &cp
}

func (c *Cache) Clear() {
	c.Store(nil)
}
