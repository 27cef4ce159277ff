// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Delta is one increment of a streaming completion. A terminal failure is
// delivered as the final Delta with Err set; the channel then closes.
type Delta struct {
	Content string
	Err     error
}

// StreamError wraps a mid-stream failure, preserving whatever content
// arrived before it.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("llm: stream error after %d chars: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("llm: stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// streamChunk is the wire shape of one streamed completion frame.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// content returns the first choice's delta text.
func (c *streamChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// done reports whether the frame carries a finish reason.
func (c *streamChunk) done() bool {
	return len(c.Choices) > 0 && c.Choices[0].FinishReason != ""
}

// StreamChat starts a streaming completion and returns a channel of deltas.
// An error before any byte is received is returned directly; errors during
// the stream arrive as the final Delta. The channel closes when the upstream
// stream ends, errors, or ctx is canceled.
func (c *Client) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan Delta, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	resp, err := c.send(ctx, c.streamClient, messages, opts, true)
	if err != nil {
		return nil, err
	}

	deltas := make(chan Delta, 64)
	go func() {
		defer close(deltas)
		defer resp.Body.Close()

		var partial strings.Builder
		reader := bufio.NewReader(resp.Body)

		emit := func(d Delta) bool {
			select {
			case deltas <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				emit(Delta{Err: &StreamError{Partial: partial.String(), Err: ctx.Err()}})
				return
			default:
			}

			line, err := reader.ReadString('\n')
			if err == io.EOF {
				return
			}
			if err != nil {
				emit(Delta{Err: &StreamError{Partial: partial.String(), Err: err}})
				return
			}

			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip malformed frames rather than abort the stream.
				continue
			}
			if content := chunk.content(); content != "" {
				partial.WriteString(content)
				if !emit(Delta{Content: content}) {
					return
				}
			}
			if chunk.done() {
				return
			}
		}
	}()

	return deltas, nil
}
