// Package client is a Go wrapper around the Farm Market REST API. Every
// request goes through one path that attaches the stored bearer token and
// turns a 401 into a forced re-authentication.
package client

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
)

// ErrReauthRequired is returned after a 401: the stored token was cleared and
// the user has to log in again.
var ErrReauthRequired = errors.New("client: authentication required")

// credentialPaths answer 401 for bad credentials, not for a stale token
var credentialPaths = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// APIError is a non-2xx answer other than a 401 for a stale token
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Status, e.Message)
}

// Client calls the REST API
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	cache   *TTLCache
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache serves repeated product GETs from a TTL cache
func WithCache(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewTTLCache(ttl) }
}

// New returns a client for the API at baseURL
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the client's token store
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// do sends one JSON request and decodes the JSON answer into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

// cachedGet is do for GETs that may be answered from the TTL cache
func (c *Client) cachedGet(ctx context.Context, path string, out interface{}) error {
	if c.cache == nil {
		return c.do(ctx, http.MethodGet, path, nil, out)
	}
	if raw, ok := c.cache.Get(path); ok {
		return decode(raw, out)
	}
	raw, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	c.cache.Set(path, raw)
	return decode(raw, out)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("client: read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !credentialPaths[path] {
		if err := c.tokens.Clear(); err != nil {
			return nil, fmt.Errorf("client: clear token: %w", err)
		}
		if c.cache != nil {
			c.cache.Clear()
		}
		return nil, ErrReauthRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &body) == nil && body.Message != "" {
			msg = body.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return raw, nil
}

func decode(raw []byte, out interface{}) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
