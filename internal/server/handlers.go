// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vodacare/support-chat/internal/chunk"
	"github.com/vodacare/support-chat/internal/knowledge"
	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/sse"
	"github.com/vodacare/support-chat/internal/storage"
)

// streamFallbackNotice is appended (chunked) when the live model fails after
// tokens were already emitted, so the stream still ends with a coherent
// reply and a done event.
const streamFallbackNotice = "There’s a problem — the chat service isn’t working right now. Please try again later."

// =============================================================================
// STREAMING CHAT
// =============================================================================

// handleChatStream serves POST /api/chat/stream: exactly one init event,
// zero or more token events, exactly one done event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Fail fast: an empty message never opens a stream.
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sid := s.agent.EnsureSession(req.SessionID)
	s.sessions.Append(sid, model.RoleUser, req.Message)
	topic := knowledge.DetectTopic(req.Message)

	init := sse.InitPayload{
		SessionID:   sid,
		Suggestions: s.agent.Suggestions(topic),
		Topic:       topic.String(),
		Escalate:    knowledge.ShouldEscalate(topic, req.Message),
		Engine:      s.agent.Engine(),
	}
	if err := sw.WriteJSON(sse.EventInit, init); err != nil {
		// Client is gone; nothing to salvage.
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.agent.LiveTimeout())
	defer cancel()

	// The emitter tracks its own accumulation: done.reply must equal the
	// concatenation of emitted token payloads exactly.
	var reply strings.Builder
	tokens := 0
	emit := func(text string) {
		if text == "" {
			return
		}
		reply.WriteString(text)
		tokens++
		_ = sw.WriteEvent(sse.EventToken, text)
	}
	emitChunked := func(text string) {
		for _, part := range chunk.Split(text, chunk.DefaultMaxLen) {
			emit(part)
		}
	}

	src := s.agent.SelectReply(ctx, topic, sid)
	if src.Live != nil {
		var streamErr error
		for delta := range src.Live {
			if delta.Err != nil {
				streamErr = delta.Err
				break
			}
			emit(delta.Content)
		}
		if streamErr != nil {
			log.Printf("STREAM_ERROR | session=%s topic=%s tokens=%d error=%v", sid, topic, tokens, streamErr)
			if reply.Len() == 0 {
				// Failed before any token: fall back to canned text,
				// indistinguishable from a rule-based stream.
				emitChunked(s.agent.CannedReply(topic))
			} else {
				emitChunked(" " + streamFallbackNotice)
			}
		} else if reply.Len() == 0 {
			// Upstream ended without producing anything.
			emitChunked(s.agent.CannedReply(topic))
		}
	} else {
		emitChunked(src.Canned)
	}

	final := reply.String()
	_ = sw.WriteJSON(sse.EventDone, sse.DonePayload{Reply: final})
	s.sessions.Append(sid, model.RoleAssistant, final)

	log.Printf("CHAT_STREAM | session=%s topic=%s engine=%s escalate=%t tokens=%d bytes=%d",
		sid, topic, init.Engine, init.Escalate, tokens, len(final))
}

// =============================================================================
// NON-STREAMING CHAT
// =============================================================================

// handleChat serves POST /api/chat, the collapsed form of the streaming
// path: same selector, same reply text for identical inputs.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := s.agent.Chat(r.Context(), req.Message, req.SessionID)
	log.Printf("CHAT | session=%s topic=%s engine=%s escalate=%t", resp.SessionID, resp.Topic, resp.Engine, resp.Escalate)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// MESSAGE PERSISTENCE
// =============================================================================

// handlePostMessage stores one transcript row.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var row storage.MessageRow
	if err := decodeJSON(w, r, &row); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if row.SessionID == "" || row.Role == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0})
		return
	}
	if err := s.store.InsertMessage(r.Context(), row); err != nil {
		log.Printf("PERSIST_FAILED | table=messages session=%s error=%v", row.SessionID, err)
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stored": 1})
}

// handleGetMessages returns a session transcript.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []storage.MessageRow{}})
		return
	}
	msgs, err := s.store.Messages(r.Context(), sessionID, limit)
	if err != nil {
		log.Printf("QUERY_FAILED | table=messages session=%s error=%v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []storage.MessageRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// handleParticipants upserts a participant. A body carrying only
// participant_id and session_id patches the session on the existing row.
func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	var p storage.Participant
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if p.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participant_id is required")
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0})
		return
	}
	if err := s.store.UpsertParticipant(r.Context(), p); err != nil {
		log.Printf("PERSIST_FAILED | table=participants id=%s error=%v", p.ParticipantID, err)
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "stored": 1})
}

// =============================================================================
// INTERACTION TELEMETRY
// =============================================================================

// interactionEvent is the loose wire shape of one telemetry event. client_ts
// may be an epoch (seconds or milliseconds) or an ISO string.
type interactionEvent struct {
	SessionID        string `json:"session_id"`
	ParticipantID    string `json:"participant_id"`
	ParticipantGroup string `json:"participant_group"`
	Event            string `json:"event"`
	Component        string `json:"component"`
	Label            string `json:"label"`
	Value            string `json:"value"`
	DurationMs       int64  `json:"duration_ms"`
	ClientTS         any    `json:"client_ts"`
	PageURL          string `json:"page_url"`
	UserAgent        string `json:"user_agent"`
	Meta             string `json:"meta"`
}

// handleInteraction stores a batch of telemetry events. Telemetry is
// best-effort by contract: invalid events are skipped and storage failures
// are acknowledged, never surfaced as caller errors.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events []interactionEvent `json:"events"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(body.Events) == 0 {
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0, "skipped": 0})
		return
	}

	events := make([]storage.InteractionEvent, 0, len(body.Events))
	skipped := 0
	for _, e := range body.Events {
		if e.SessionID == "" {
			skipped++
			continue
		}
		name := e.Event
		if name == "" {
			name = "unknown"
		}
		if len(name) > 64 {
			name = name[:64]
		}
		events = append(events, storage.InteractionEvent{
			SessionID:        e.SessionID,
			ParticipantID:    e.ParticipantID,
			ParticipantGroup: e.ParticipantGroup,
			Event:            name,
			Component:        e.Component,
			Label:            e.Label,
			Value:            e.Value,
			DurationMs:       e.DurationMs,
			ClientTS:         normalizeClientTS(e.ClientTS),
			PageURL:          e.PageURL,
			UserAgent:        e.UserAgent,
			Meta:             e.Meta,
		})
	}

	if len(events) == 0 || s.store == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "stored": 0, "skipped": skipped})
		return
	}

	stored, err := s.store.InsertInteractions(r.Context(), events)
	if err != nil {
		log.Printf("PERSIST_FAILED | table=interaction_events error=%v", err)
	}
	status := http.StatusOK
	if stored == 0 {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"ok": true, "stored": stored, "skipped": skipped})
}

// normalizeClientTS converts an epoch (seconds or milliseconds) or ISO
// string into RFC 3339 UTC; anything unparseable becomes empty.
func normalizeClientTS(v any) string {
	switch ts := v.(type) {
	case float64:
		// Epoch milliseconds when implausibly large as seconds.
		if ts > 1e12 {
			ts = ts / 1000.0
		}
		return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	case string:
		if ts == "" {
			return ""
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			return parsed.UTC().Format(time.RFC3339)
		}
		return ""
	default:
		return ""
	}
}
