// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vodacare/support-chat/internal/client"
	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/sse"
	"github.com/vodacare/support-chat/internal/storage"
)

// persistTimeout bounds fire-and-forget transcript writes.
const persistTimeout = 5 * time.Second

// startStream launches the stream goroutine for one user message and returns
// the command that waits for its first event. Handler callbacks run on the
// goroutine; everything crosses into the Bubble Tea loop through the channel.
func (m *Model) startStream(message string) tea.Cmd {
	events := make(chan streamEvent, 32)
	ctx, cancel := context.WithCancel(context.Background())
	m.events = events
	m.cancel = cancel

	api := m.api
	req := model.ChatRequest{
		Message:          message,
		SessionID:        m.sessionID,
		ParticipantID:    m.participantID,
		ParticipantGroup: m.participantGroup,
	}

	go func() {
		defer close(events)
		_ = api.Stream(ctx, req, client.Handlers{
			OnInit: func(p sse.InitPayload) {
				events <- streamEvent{init: &p}
			},
			OnToken: func(text string) {
				events <- streamEvent{token: text}
			},
			OnDone: func(reply string) {
				events <- streamEvent{done: &reply}
			},
			OnError: func(err error) {
				events <- streamEvent{err: err}
			},
		})
	}()

	return tea.Batch(m.waitForEvent(), m.spinner.Tick)
}

// waitForEvent blocks on the stream channel and converts one receive into a
// Bubble Tea message. Re-issued after every stream event until the channel
// closes.
func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg(ev)
	}
}

// cancelStream aborts the in-flight stream, if any. The goroutine unblocks
// and closes the channel, which settles the state machine.
func (m *Model) cancelStream() {
	if m.cancel != nil {
		m.cancel()
	}
}

// persistTurn writes one transcript row in the background. Persistence is
// best-effort: failures are invisible to the conversation.
func (m *Model) persistTurn(role model.Role, content string) tea.Cmd {
	if m.sessionID == "" || content == "" {
		return nil
	}
	api := m.api
	row := storage.MessageRow{
		SessionID:        m.sessionID,
		Role:             string(role),
		Content:          content,
		ParticipantID:    m.participantID,
		ParticipantGroup: m.participantGroup,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		_ = api.PostMessage(ctx, row)
		return nil
	}
}
