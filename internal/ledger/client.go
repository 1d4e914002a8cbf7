// Package ledger is the HTTP client for the remote ledger API.
package ledger

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

	"fintrack/internal/log"
)

const defaultTimeout = 15 * time.Second

// Credentials supplies the bearer credential read on every call.
type Credentials interface {
	Credential() (string, bool)
}

type Options struct {
	Timeout     time.Duration
	HTTPClient  *http.Client
	Credentials Credentials
	Logger      *log.Logger
}

// Client talks to the ledger. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	logger  *log.Logger
}

func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		creds:   opts.Credentials,
		logger:  logger.WithComponent(log.ComponentLedger),
	}
}

// do sends one request. When auth is set the bearer credential is attached
// and its absence fails before any network traffic.
func (c *Client) do(ctx context.Context, op, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, ok := "", false
		if c.creds != nil {
			token, ok = c.creds.Credential()
		}
		if !ok {
			return &AuthError{}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &NetworkError{Op: op, Err: ctxErr}
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.DebugContext(ctx, "Ledger call",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Status: resp.StatusCode, Message: messageFrom(resp.StatusCode, raw)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ServerError{Status: resp.StatusCode, Message: messageFrom(resp.StatusCode, raw)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

var errNoCredential = errors.New("login response carried no credential")
