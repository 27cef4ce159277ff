// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat server,
// the HTTP client, and the terminal UI.
package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "VodaCare"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine identifies which reply engine produced (or is expected to produce)
// an assistant turn. The value is decided at init time, before the live call
// is attempted, so it can be optimistic.
const (
	EngineModel     = "model"
	EngineRuleBased = "rule-based"
)

// =============================================================================
// TURNS
// =============================================================================

// Turn is one utterance in a session history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

// ChatRequest is the body of POST /api/chat and POST /api/chat/stream.
// Participant fields identify study participants and ride along for the
// persistence side channel; the chat pipeline itself ignores them.
type ChatRequest struct {
	Message          string `json:"message"`
	SessionID        string `json:"session_id,omitempty"`
	ParticipantID    string `json:"participant_id,omitempty"`
	ParticipantGroup string `json:"participant_group,omitempty"`
}

// ChatResponse is the body of the non-streaming POST /api/chat reply.
type ChatResponse struct {
	Reply       string   `json:"reply"`
	Suggestions []string `json:"suggestions"`
	Topic       string   `json:"topic"`
	Escalate    bool     `json:"escalate"`
	SessionID   string   `json:"session_id"`
	Engine      string   `json:"engine"`
}

// Scenario is one entry of the study scenario catalog.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Context     string `json:"context"`
}
