package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client is the request/response half of the remote store: a thin typed
// wrapper over the hosted service's relational data API. All row shapes
// are decoded into internal/model types at this boundary; malformed rows
// become RemoteError rather than propagating as untyped data.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token *Token
}

// NewClient creates a data-API client for the given backend coordinates.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SetToken installs the session token used for authenticated calls.
// A nil token reverts the client to anonymous access.
func (c *Client) SetToken(t *Token) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// Token returns the current session token, or nil.
func (c *Client) Token() *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Select fetches rows from table matching q, decoding into dest.
func (c *Client) Select(ctx context.Context, table string, q *Query, dest any) error {
	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, q.Values(), nil, dest, "")
}

// Insert inserts payload into table, discarding the created row.
func (c *Client) Insert(ctx context.Context, table string, payload any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, payload, nil, "")
}

// InsertReturning inserts payload into table and decodes the created
// row(s) into dest.
func (c *Client) InsertReturning(ctx context.Context, table string, payload, dest any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, payload, dest, "return=representation")
}

// Upsert inserts payload, merging with an existing row on conflict.
func (c *Client) Upsert(ctx context.Context, table string, payload any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, payload, nil, "resolution=merge-duplicates")
}

// Update applies fields to every row of table matching q.
func (c *Client) Update(ctx context.Context, table string, q *Query, fields any) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table, q.Values(), fields, nil, "")
}

// Delete removes every row of table matching q.
func (c *Client) Delete(ctx context.Context, table string, q *Query) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table, q.Values(), nil, nil, "")
}

// RPC invokes a server-side aggregate procedure, decoding the result into
// dest. These exist because the equivalent client-side join would be
// prohibitively chatty.
func (c *Client) RPC(ctx context.Context, fn string, args, dest any) error {
	if args == nil {
		args = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, args, dest, "")
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, dest any, prefer string) error {
	op := method + " " + path

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return remoteErr(op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if t := c.Token(); t != nil {
		req.Header.Set("Authorization", "Bearer "+t.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return remoteErr(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.logger != nil {
			c.logger.Warn("remote call failed",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode))
		}
		return classify(op, resp.StatusCode)
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return remoteErr(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
