// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse implements the server-sent-event framing used by the chat
// stream: the writer side emits init/token/done records over an HTTP
// response, and the parser side reassembles complete events from an
// arbitrarily fragmented byte stream.
package sse

// Event types carried on the chat stream. Exactly one init first, zero or
// more token, exactly one done last.
const (
	EventInit  = "init"
	EventToken = "token"
	EventDone  = "done"
)

// Event is one parsed server-sent event. Data holds the raw payload text:
// JSON for init/done, literal chunk text for token.
type Event struct {
	Type string
	Data string
}

// InitPayload is the JSON body of the init event. Engine is decided before
// the live model call is attempted, so it may claim "model" for a stream
// that later falls back to canned text.
type InitPayload struct {
	SessionID   string   `json:"session_id"`
	Suggestions []string `json:"suggestions"`
	Topic       string   `json:"topic"`
	Escalate    bool     `json:"escalate"`
	Engine      string   `json:"engine"`
}

// DonePayload is the JSON body of the done event. Reply is the server's own
// accumulation of every emitted token payload and overrides whatever the
// client reassembled.
type DonePayload struct {
	Reply string `json:"reply"`
}
