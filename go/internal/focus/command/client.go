// Package command translates user intents into backend calls: idempotent HTTP
// requests with a definite outcome, and fire-and-forget socket emits.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client performs request/response calls against the backend REST API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// envelope is the uniform response wrapper. Error responses from FastAPI's own
// validation use "detail" instead of "message".
type envelope struct {
	Success   *bool           `json:"success"`
	Error     bool            `json:"error"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Detail    json.RawMessage `json:"detail"`
	Data      json.RawMessage `json:"data"`
}

func (e envelope) failed() bool {
	return e.Error || (e.Success != nil && !*e.Success)
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	return string(e.Detail)
}

// do sends the request and decodes the envelope. When out is non-nil, the envelope's
// data field is decoded into it. The raw body is returned for endpoints that answer
// outside the envelope.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, &RequestError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(&RequestError{Op: op, Err: fmt.Errorf("failed to make request: %w", err)})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)})
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &RequestError{Op: op, Status: resp.StatusCode}
		if decodeErr == nil {
			reqErr.Code = env.ErrorCode
			reqErr.Message = env.text()
		} else {
			reqErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, c.fail(reqErr)
	}
	if decodeErr != nil {
		return nil, c.fail(&RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)})
	}
	if env.failed() {
		return nil, c.fail(&RequestError{
			Op:      op,
			Status:  resp.StatusCode,
			Code:    env.ErrorCode,
			Message: env.text(),
			Err:     ErrLogicalFailure,
		})
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, c.fail(&RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)})
		}
	}

	log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Msg("backend request succeeded")
	return raw, nil
}

func (c *Client) fail(err *RequestError) error {
	log.Error().
		Str("op", err.Op).
		Int("status", err.Status).
		Str("error_code", err.Code).
		Err(err).
		Msg("backend request failed")
	return err
}
