// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client is the Go consumer for the support-chat API: the streaming
// SSE endpoint, the non-streaming fallback, and the best-effort side
// channels (transcripts, participants, telemetry).
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

	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/sse"
	"github.com/vodacare/support-chat/internal/storage"
)

// ErrStreamTruncated indicates the stream ended before a done event arrived.
var ErrStreamTruncated = errors.New("client: stream ended without done event")

// Handlers receives stream callbacks. Any handler may be nil. The invocation
// order for a well-formed stream is OnInit once, OnToken zero or more times,
// OnDone once. OnError is terminal and excludes OnDone.
type Handlers struct {
	OnInit  func(sse.InitPayload)
	OnToken func(text string)
	OnDone  func(finalReply string)
	OnError func(err error)
}

// Client talks to a support-chat server.
type Client struct {
	baseURL string

	// httpClient carries no global timeout: streams are open-ended and
	// bounded by the caller's context instead.
	httpClient *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8090".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream posts a chat request and dispatches events until the stream ends.
// Token text accumulates locally, but the done event's reply field is
// authoritative and overrides the accumulation. A transport failure, non-OK
// status, or truncated stream goes to OnError and is returned.
func (c *Client) Stream(ctx context.Context, req model.ChatRequest, h Handlers) error {
	fail := func(err error) error {
		if h.OnError != nil {
			h.OnError(err)
		}
		return err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat/stream", req)
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fail(fmt.Errorf("client: stream request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fail(fmt.Errorf("client: stream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var accum strings.Builder
	done := false

	err = sse.ReadAll(ctx, resp.Body, func(ev sse.Event) error {
		switch ev.Type {
		case sse.EventInit:
			var init sse.InitPayload
			if err := json.Unmarshal([]byte(ev.Data), &init); err != nil {
				// Malformed payloads skip the event, not the stream.
				return nil
			}
			if h.OnInit != nil {
				h.OnInit(init)
			}
		case sse.EventToken:
			accum.WriteString(ev.Data)
			if h.OnToken != nil {
				h.OnToken(ev.Data)
			}
		case sse.EventDone:
			var payload sse.DonePayload
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				return nil
			}
			done = true
			if h.OnDone != nil {
				// The server's accumulation wins over ours.
				h.OnDone(payload.Reply)
			}
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}
	if !done {
		return fail(ErrStreamTruncated)
	}
	return nil
}

// =============================================================================
// NON-STREAMING CHAT
// =============================================================================

// Chat calls the non-streaming endpoint.
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	var resp model.ChatResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/chat", req, &resp)
	return resp, err
}

// Scenarios fetches the study scenario catalog.
func (c *Client) Scenarios(ctx context.Context) ([]model.Scenario, error) {
	var wrapper struct {
		Scenarios []model.Scenario `json:"scenarios"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/scenarios", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Scenarios, nil
}

// =============================================================================
// BEST-EFFORT SIDE CHANNELS
// =============================================================================

// PostMessage persists one transcript row. Callers treating this as
// fire-and-forget should run it on its own goroutine with a short timeout.
func (c *Client) PostMessage(ctx context.Context, row storage.MessageRow) error {
	return c.doJSON(ctx, http.MethodPost, "/api/messages", row, nil)
}

// UpsertParticipant enrolls or updates a participant.
func (c *Client) UpsertParticipant(ctx context.Context, p storage.Participant) error {
	return c.doJSON(ctx, http.MethodPost, "/api/participants", p, nil)
}

// PostInteraction ships a batch of telemetry events.
func (c *Client) PostInteraction(ctx context.Context, events []map[string]any) error {
	body := map[string]any{"events": events}
	return c.doJSON(ctx, http.MethodPost, "/api/interaction", body, nil)
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("client: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON issues a request with a bounded timeout and decodes the response.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("client: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
