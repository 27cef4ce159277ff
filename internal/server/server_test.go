// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vodacare/support-chat/internal/agent"
	"github.com/vodacare/support-chat/internal/config"
	"github.com/vodacare/support-chat/internal/knowledge"
	"github.com/vodacare/support-chat/internal/llm"
	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/session"
	"github.com/vodacare/support-chat/internal/sse"
	"github.com/vodacare/support-chat/internal/storage"
)

// scriptedLLM drives the reply selector in tests.
type scriptedLLM struct {
	tokens   []string
	startErr error
	midErr   error
}

func (f *scriptedLLM) IsConfigured() bool { return true }

func (f *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return strings.Join(f.tokens, ""), nil
}

func (f *scriptedLLM) StreamChat(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Delta, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan llm.Delta, len(f.tokens)+1)
	for _, tok := range f.tokens {
		ch <- llm.Delta{Content: tok}
	}
	if f.midErr != nil {
		ch <- llm.Delta{Err: f.midErr}
	}
	close(ch)
	return ch, nil
}

// newTestServer builds a server around an optional scripted LLM and an
// optional SQLite store.
func newTestServer(t *testing.T, client agent.CompletionClient, withStore bool) (*httptest.Server, *Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Mode = "strict"

	sessions := session.NewMemoryStore(time.Hour)
	ag := agent.New(agent.Config{
		Provider: cfg.Provider,
		Mode:     agent.Mode(cfg.Mode),
		Client:   client,
		Sessions: sessions,
	})

	var store *storage.Store
	if withStore {
		var err error
		store, err = storage.Open(filepath.Join(t.TempDir(), "chat.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
	}

	srv := New(cfg, ag, sessions, store)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// collectStream posts a chat request and gathers the full event sequence.
func collectStream(t *testing.T, baseURL, message string) []sse.Event {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/chat/stream", model.ChatRequest{Message: message})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var events []sse.Event
	if err := sse.ReadAll(context.Background(), resp.Body, func(ev sse.Event) error {
		events = append(events, ev)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return events
}

// =============================================================================
// STREAMING
// =============================================================================

func TestStreamBalanceFixture(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	events := collectStream(t, ts.URL, "How do I check my data balance?")

	if len(events) < 3 {
		t.Fatalf("got %d events, want init + tokens + done: %#v", len(events), events)
	}
	if events[0].Type != sse.EventInit {
		t.Fatalf("first event = %q, want init", events[0].Type)
	}
	if events[len(events)-1].Type != sse.EventDone {
		t.Fatalf("last event = %q, want done", events[len(events)-1].Type)
	}

	var init sse.InitPayload
	if err := json.Unmarshal([]byte(events[0].Data), &init); err != nil {
		t.Fatalf("init payload: %v", err)
	}
	if init.Topic != "balance" {
		t.Errorf("init.topic = %q, want balance", init.Topic)
	}
	if init.Escalate {
		t.Error("init.escalate = true, want false")
	}
	if init.Engine != model.EngineRuleBased {
		t.Errorf("init.engine = %q, want rule-based", init.Engine)
	}
	if init.SessionID == "" {
		t.Error("init.session_id must be resolved before the first event")
	}

	var accum strings.Builder
	doneCount := 0
	for _, ev := range events[1:] {
		switch ev.Type {
		case sse.EventToken:
			if doneCount > 0 {
				t.Error("token after done")
			}
			accum.WriteString(ev.Data)
		case sse.EventDone:
			doneCount++
		}
	}
	if doneCount != 1 {
		t.Fatalf("done count = %d, want exactly 1", doneCount)
	}

	var done sse.DonePayload
	if err := json.Unmarshal([]byte(events[len(events)-1].Data), &done); err != nil {
		t.Fatalf("done payload: %v", err)
	}
	want := knowledge.Reply(knowledge.TopicBalance)
	if done.Reply != want {
		t.Errorf("done.reply = %q, want canned balance reply %q", done.Reply, want)
	}
	if accum.String() != done.Reply {
		t.Errorf("token concatenation %q != done.reply %q", accum.String(), done.Reply)
	}
}

func TestStreamEscalation(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	events := collectStream(t, ts.URL, "I want to talk to a human")

	var init sse.InitPayload
	if err := json.Unmarshal([]byte(events[0].Data), &init); err != nil {
		t.Fatal(err)
	}
	if !init.Escalate {
		t.Error("escalation word must set init.escalate")
	}
}

func TestStreamEmptyMessageFailsFast(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)

	for _, message := range []string{"", "   "} {
		resp := postJSON(t, ts.URL+"/api/chat/stream", model.ChatRequest{Message: message})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("message %q: status = %d, want 400", message, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("message %q: Content-Type = %q, no stream may open", message, ct)
		}
		resp.Body.Close()
	}
}

func TestStreamLiveTokens(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedLLM{tokens: []string{"Your ", "plan ", "rocks."}}, false)
	events := collectStream(t, ts.URL, "tell me about my plan")

	var init sse.InitPayload
	json.Unmarshal([]byte(events[0].Data), &init)
	if init.Engine != model.EngineModel {
		t.Errorf("engine = %q, want model", init.Engine)
	}

	var done sse.DonePayload
	json.Unmarshal([]byte(events[len(events)-1].Data), &done)
	if done.Reply != "Your plan rocks." {
		t.Errorf("done.reply = %q", done.Reply)
	}
}

// A live call that always fails must still end in exactly one done event
// with a non-empty reply.
func TestStreamFallbackTransparency(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedLLM{startErr: errors.New("auth failed")}, false)
	events := collectStream(t, ts.URL, "How do I check my data balance?")

	last := events[len(events)-1]
	if last.Type != sse.EventDone {
		t.Fatalf("last event = %q, want done", last.Type)
	}
	var done sse.DonePayload
	if err := json.Unmarshal([]byte(last.Data), &done); err != nil {
		t.Fatal(err)
	}
	if done.Reply == "" {
		t.Fatal("done.reply must be non-empty when the live call fails")
	}
	if done.Reply != knowledge.Reply(knowledge.TopicBalance) {
		t.Errorf("done.reply = %q, want transparent canned fallback", done.Reply)
	}
}

func TestStreamMidStreamFailureAppendsNotice(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedLLM{
		tokens: []string{"Let me check ", "that for you"},
		midErr: errors.New("connection reset"),
	}, false)
	events := collectStream(t, ts.URL, "why is my bill high")

	last := events[len(events)-1]
	if last.Type != sse.EventDone {
		t.Fatalf("last event = %q, want done", last.Type)
	}
	var done sse.DonePayload
	if err := json.Unmarshal([]byte(last.Data), &done); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(done.Reply, "Let me check that for you") {
		t.Errorf("partial content lost: %q", done.Reply)
	}
	if !strings.Contains(done.Reply, "try again later") {
		t.Errorf("fallback notice missing: %q", done.Reply)
	}

	// Server accumulation stays authoritative under failure.
	var accum strings.Builder
	for _, ev := range events {
		if ev.Type == sse.EventToken {
			accum.WriteString(ev.Data)
		}
	}
	if accum.String() != done.Reply {
		t.Errorf("token concatenation %q != done.reply %q", accum.String(), done.Reply)
	}
}

// =============================================================================
// NON-STREAMING
// =============================================================================

func TestChatEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)

	resp := postJSON(t, ts.URL+"/api/chat", model.ChatRequest{Message: "How do I check my data balance?"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body model.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Topic != "balance" || body.Escalate {
		t.Errorf("response = %+v", body)
	}
	if body.Reply != knowledge.Reply(knowledge.TopicBalance) {
		t.Errorf("reply = %q, must match the streaming path's canned text", body.Reply)
	}
	if body.SessionID == "" {
		t.Error("session_id must be generated")
	}
}

func TestChatEmptyMessage(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	resp := postJSON(t, ts.URL+"/api/chat", model.ChatRequest{Message: " "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// =============================================================================
// SUPPORTING ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" || body["provider"] != "VodaCare" {
		t.Errorf("health = %v", body)
	}
}

func TestScenarios(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	resp, err := http.Get(ts.URL + "/api/scenarios")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Scenarios []model.Scenario `json:"scenarios"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Scenarios) != 5 {
		t.Fatalf("scenarios = %d, want 5", len(body.Scenarios))
	}
	if body.Scenarios[0].ID != "scenario_001_esim_setup" {
		t.Errorf("first scenario = %q", body.Scenarios[0].ID)
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, nil, true)

	resp := postJSON(t, ts.URL+"/api/messages", storage.MessageRow{
		SessionID: "s1", Role: "user", Content: "hello", ParticipantID: "p1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post status = %d", resp.StatusCode)
	}

	get, err := http.Get(ts.URL + "/api/messages?session_id=s1")
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()

	var body struct {
		Messages []storage.MessageRow `json:"messages"`
	}
	if err := json.NewDecoder(get.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestMessagesMissingFields(t *testing.T) {
	ts, _ := newTestServer(t, nil, true)
	resp := postJSON(t, ts.URL+"/api/messages", map[string]string{"content": "no session"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestParticipantsUpsert(t *testing.T) {
	ts, _ := newTestServer(t, nil, true)

	resp := postJSON(t, ts.URL+"/api/participants", storage.Participant{
		ParticipantID: "p1", Name: "Sam", Group: "A",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	// Session-only patch.
	resp = postJSON(t, ts.URL+"/api/participants", storage.Participant{
		ParticipantID: "p1", SessionID: "sess-9",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/participants", storage.Participant{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing id: status = %d, want 400", resp.StatusCode)
	}
}

func TestInteractionBatch(t *testing.T) {
	ts, _ := newTestServer(t, nil, true)

	payload := map[string]any{
		"events": []map[string]any{
			{"session_id": "s1", "event": "click", "client_ts": 1756377600000.0},
			{"event": "orphan"},
		},
	}
	resp := postJSON(t, ts.URL+"/api/interaction", payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Stored  int `json:"stored"`
		Skipped int `json:"skipped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Stored != 1 || body.Skipped != 1 {
		t.Errorf("stored=%d skipped=%d, want 1/1", body.Stored, body.Skipped)
	}
}

func TestNormalizeClientTS(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1756377600000.0, "2025-08-28T10:40:00Z"}, // epoch millis
		{1756377600.0, "2025-08-28T10:40:00Z"},    // epoch seconds
		{"2025-08-28T10:40:00Z", "2025-08-28T10:40:00Z"},
		{"not a time", ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := normalizeClientTS(tt.in); got != tt.want {
			t.Errorf("normalizeClientTS(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("burst requests must pass")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third immediate request must be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("limits are per IP")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	resp, err := http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStreamTokenChunksRespectBudget(t *testing.T) {
	ts, _ := newTestServer(t, nil, false)
	events := collectStream(t, ts.URL, "Tell me about roaming abroad")

	for _, ev := range events {
		if ev.Type == sse.EventToken && len(ev.Data) > 41 {
			t.Errorf("token chunk %d bytes exceeds 40+1 budget: %q", len(ev.Data), ev.Data)
		}
	}
}
