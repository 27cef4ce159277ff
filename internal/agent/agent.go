// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent selects the reply source for each turn: a live model stream
// when credentials are configured, a deterministic canned reply otherwise.
// Live-call failures never propagate; the fallback is silent at the protocol
// level and logged here.
package agent

import (
	"context"
	"log"
	"time"

	"github.com/vodacare/support-chat/internal/knowledge"
	"github.com/vodacare/support-chat/internal/llm"
	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/session"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// maxReplyTokens caps live completions so streams stay bounded.
	maxReplyTokens = 220

	// historyWindow is how many trailing turns accompany a live call.
	historyWindow = 6

	// Temperature by assistant mode.
	openTemperature   = 0.5
	strictTemperature = 0.3

	// DefaultLiveTimeout bounds a live call, streaming included.
	DefaultLiveTimeout = 45 * time.Second
)

// Mode selects how broadly the assistant engages.
type Mode string

const (
	// ModeOpen lets the assistant chat beyond telecom topics.
	ModeOpen Mode = "open"

	// ModeStrict keeps the assistant on support topics only.
	ModeStrict Mode = "strict"
)

// =============================================================================
// LLM INTERFACE
// =============================================================================

// CompletionClient is the slice of the llm client the agent needs. Nil or
// unconfigured clients put the agent in rule-based mode.
type CompletionClient interface {
	IsConfigured() bool
	Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error)
	StreamChat(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Delta, error)
}

// =============================================================================
// AGENT
// =============================================================================

// Agent resolves topics, builds prompts, and picks between live and canned
// replies. Safe for concurrent use; all mutable state lives in the session
// store.
type Agent struct {
	provider string
	mode     Mode
	client   CompletionClient
	sessions session.Store
	timeout  time.Duration
}

// Config assembles an Agent.
type Config struct {
	// Provider is the brand name surfaced in prompts and greetings.
	Provider string

	// Mode is open or strict; anything else is treated as strict.
	Mode Mode

	// Client may be nil for pure rule-based operation.
	Client CompletionClient

	// Sessions is required.
	Sessions session.Store

	// LiveTimeout bounds live calls; zero means DefaultLiveTimeout.
	LiveTimeout time.Duration
}

// New creates an Agent.
func New(cfg Config) *Agent {
	mode := cfg.Mode
	if mode != ModeOpen {
		mode = ModeStrict
	}
	timeout := cfg.LiveTimeout
	if timeout <= 0 {
		timeout = DefaultLiveTimeout
	}
	return &Agent{
		provider: cfg.Provider,
		mode:     mode,
		client:   cfg.Client,
		sessions: cfg.Sessions,
		timeout:  timeout,
	}
}

// Provider returns the configured brand name.
func (a *Agent) Provider() string {
	return a.provider
}

// LiveTimeout returns the upper bound for live calls.
func (a *Agent) LiveTimeout() time.Duration {
	return a.timeout
}

// EnsureSession returns the given id, or a fresh one when empty.
func (a *Agent) EnsureSession(id string) string {
	if id == "" {
		return session.NewID()
	}
	return id
}

// liveConfigured reports whether a live model call can be attempted.
func (a *Agent) liveConfigured() bool {
	return a.client != nil && a.client.IsConfigured()
}

// Engine reports which engine the init event should claim. Decided before
// the live call is attempted, so it may say "model" for a stream that later
// falls back to canned text; correcting that would mean delaying init.
func (a *Agent) Engine() string {
	if a.liveConfigured() {
		return model.EngineModel
	}
	return model.EngineRuleBased
}

// Suggestions returns the chip set for a topic under the configured mode.
func (a *Agent) Suggestions(topic knowledge.Topic) []string {
	return knowledge.Suggestions(topic, a.mode == ModeOpen)
}

// CannedReply returns the deterministic rule-based reply for a topic.
func (a *Agent) CannedReply(topic knowledge.Topic) string {
	if topic == knowledge.TopicUnknown {
		return knowledge.Greeting(a.provider, a.mode == ModeOpen)
	}
	return knowledge.Reply(topic)
}

// =============================================================================
// PROMPT BUILDING
// =============================================================================

func (a *Agent) systemPrompt() string {
	if a.mode == ModeOpen {
		return "You are a helpful support agent for " + a.provider + ". Keep replies concise. " +
			"You can chat broadly, and for telecom topics (plans, upgrades, data/balance, billing, " +
			"roaming, network/coverage, devices/SIM) give clear, practical guidance. " +
			"Ask brief follow‑ups when needed. Don't guess."
	}
	return "You are a helpful mobile network support agent for " + a.provider + ". Keep replies concise. " +
		"Focus on telecom topics like plans, upgrades, data/balance, billing, roaming, " +
		"network/coverage and devices/SIM. " +
		"Ask brief follow‑ups when needed. Don't guess."
}

func (a *Agent) temperature() float64 {
	if a.mode == ModeOpen {
		return openTemperature
	}
	return strictTemperature
}

// buildMessages assembles the live-call prompt: system instruction plus the
// trailing history window. The history already ends with the current user
// turn, recorded before the selector runs.
func (a *Agent) buildMessages(sessionID string) []llm.Message {
	history := a.sessions.Get(sessionID)
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: string(model.RoleSystem), Content: a.systemPrompt()})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// =============================================================================
// REPLY SELECTION
// =============================================================================

// ReplySource is either a live token stream or canned full text. Exactly one
// of the two is set.
type ReplySource struct {
	// Live streams model deltas; nil when the reply is canned.
	Live <-chan llm.Delta

	// Canned holds the full fallback text when Live is nil.
	Canned string
}

// SelectReply decides between live and canned for one turn. Any failure
// starting the live call falls back to canned; the caller handles failures
// that surface mid-stream. The ctx must outlive consumption of Live.
func (a *Agent) SelectReply(ctx context.Context, topic knowledge.Topic, sessionID string) ReplySource {
	if !a.liveConfigured() {
		return ReplySource{Canned: a.CannedReply(topic)}
	}

	deltas, err := a.client.StreamChat(ctx, a.buildMessages(sessionID), llm.Options{
		Temperature: a.temperature(),
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		log.Printf("LLM_FALLBACK | session=%s topic=%s error=%v", sessionID, topic, err)
		return ReplySource{Canned: a.CannedReply(topic)}
	}
	return ReplySource{Live: deltas}
}

// Reply produces the full reply for the non-streaming path. It must match
// what the streaming path would produce for identical input and identical
// model behavior.
func (a *Agent) Reply(ctx context.Context, topic knowledge.Topic, sessionID string) string {
	if a.liveConfigured() {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		text, err := a.client.Chat(callCtx, a.buildMessages(sessionID), llm.Options{
			Temperature: a.temperature(),
			MaxTokens:   maxReplyTokens,
		})
		if err == nil && text != "" {
			return text
		}
		log.Printf("LLM_FALLBACK | session=%s topic=%s error=%v", sessionID, topic, err)
	}
	return a.CannedReply(topic)
}

// Chat handles one complete non-streaming turn: session resolution, history
// bookkeeping, topic detection, and reply selection.
func (a *Agent) Chat(ctx context.Context, message, sessionID string) model.ChatResponse {
	sid := a.EnsureSession(sessionID)
	a.sessions.Append(sid, model.RoleUser, message)

	topic := knowledge.DetectTopic(message)
	reply := a.Reply(ctx, topic, sid)
	a.sessions.Append(sid, model.RoleAssistant, reply)

	return model.ChatResponse{
		Reply:       reply,
		Suggestions: a.Suggestions(topic),
		Topic:       topic.String(),
		Escalate:    knowledge.ShouldEscalate(topic, message),
		SessionID:   sid,
		Engine:      a.Engine(),
	}
}
