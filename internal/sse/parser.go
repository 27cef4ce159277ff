// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Parser reassembles complete server-sent events from a byte stream that may
// arrive in arbitrary fragments. Bytes are buffered until a record separator
// (two consecutive newlines) completes an event, so multi-byte characters
// and event boundaries split across reads are handled correctly.
type Parser struct {
	buf []byte
}

// Feed appends raw bytes to the buffer and returns every event completed by
// them, in order. Incomplete trailing bytes stay buffered for the next call.
func (p *Parser) Feed(data []byte) []Event {
	p.buf = append(p.buf, data...)

	var events []Event
	for {
		i := bytes.Index(p.buf, []byte("\n\n"))
		if i < 0 {
			break
		}
		raw := string(p.buf[:i])
		p.buf = p.buf[i+2:]
		if ev, ok := parseEvent(raw); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Pending reports whether undelivered bytes remain in the buffer. At stream
// end a pending fragment is a dangling partial event, which is discarded
// rather than parsed speculatively.
func (p *Parser) Pending() bool {
	return len(p.buf) > 0
}

// parseEvent interprets one raw record. Lines are classified as event: or
// data:; anything else (comments, ids, retry hints) is ignored. Multiple
// data lines are joined with \n. At most one leading space after the colon
// is stripped.
func parseEvent(raw string) (Event, bool) {
	var (
		eventType string
		dataLines []string
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = stripLeadingSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, stripLeadingSpace(line[len("data:"):]))
		}
	}

	if eventType == "" && len(dataLines) == 0 {
		return Event{}, false
	}
	return Event{Type: eventType, Data: strings.Join(dataLines, "\n")}, true
}

// stripLeadingSpace removes at most one leading space, not all whitespace.
// A payload that deliberately begins with spaces keeps all but the first.
func stripLeadingSpace(s string) string {
	if strings.HasPrefix(s, " ") {
		return s[1:]
	}
	return s
}

// ReadAll consumes r until EOF, invoking fn for each complete event. A
// trailing fragment without its terminating blank line is discarded. Context
// cancellation aborts between reads; fn returning an error stops the scan.
func ReadAll(ctx context.Context, r io.Reader, fn func(Event) error) error {
	p := &Parser{}
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range p.Feed(buf[:n]) {
				if err := fn(ev); err != nil {
					return err
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
