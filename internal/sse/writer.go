// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// ErrStreamingUnsupported is returned when the underlying ResponseWriter
// cannot flush, which SSE requires.
var ErrStreamingUnsupported = errors.New("sse: response writer does not support streaming")

// Writer emits server-sent events over an http.ResponseWriter, flushing
// after every event so tokens reach the client as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for event streaming and sets the SSE headers.
// It must be called before anything is written to the response.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes one event record and flushes it. Multi-line payloads
// repeat the data field per source line, per SSE convention.
func (sw *Writer) WriteEvent(event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(sw.w, b.String()); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteJSON marshals payload and writes it as one event.
func (sw *Writer) WriteJSON(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return sw.WriteEvent(event, string(data))
}
