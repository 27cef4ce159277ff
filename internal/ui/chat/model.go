// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vodacare/support-chat/internal/client"
	"github.com/vodacare/support-chat/internal/config"
	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/ui/components"
	"github.com/vodacare/support-chat/internal/ui/styles"
)

// errorTurnText is shown for any failed turn; the real cause goes to the log.
const errorTurnText = "Sorry—something went wrong. Please try again."

// =============================================================================
// STATE
// =============================================================================

// State is the chat view's turn lifecycle.
type State int

const (
	// StateIdle accepts input.
	StateIdle State = iota

	// StateSending has a request in flight, init not yet received.
	StateSending

	// StateStreaming is receiving tokens.
	StateStreaming
)

// turn is one transcript entry.
type turn struct {
	role    model.Role
	content string
	isError bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state State

	// Conversation
	turns       []turn
	sessionID   string
	suggestions []string
	escalate    bool

	// Identity attached to persisted rows.
	participantID    string
	participantGroup string

	// Server connection
	api *client.Client

	// Active stream; nil when settled.
	events   chan streamEvent
	cancel   context.CancelFunc
	doneSeen bool

	// UI components
	header   *components.Header
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool
}

// New creates the chat view connected to the configured server.
func New(cfg *config.Config) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StatusLine

	return &Model{
		state:            StateIdle,
		api:              client.New(cfg.Client.ServerURL),
		participantID:    cfg.Client.ParticipantID,
		participantGroup: cfg.Client.ParticipantGroup,
		header:           components.NewHeader(cfg.Provider),
		input:            input,
		spinner:          sp,
	}
}

// State returns the current lifecycle state, mainly for tests.
func (m *Model) State() State {
	return m.state
}

// SessionID returns the server-assigned session, empty before the first init.
func (m *Model) SessionID() string {
	return m.sessionID
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one Bubble Tea message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancelStream()
			return m, tea.Quit
		case "esc":
			if m.state != StateIdle {
				m.cancelStream()
				return m, nil
			}
		case "enter":
			return m, m.send()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.state == StateIdle {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamEventMsg:
		return m.handleStreamEvent(streamEvent(msg))

	case streamClosedMsg:
		return m.handleStreamClosed()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send submits the input line. A no-op unless the view is idle; one turn is
// in flight at a time.
func (m *Model) send() tea.Cmd {
	if m.state != StateIdle {
		return nil
	}
	message := strings.TrimSpace(m.input.Value())
	if message == "" {
		return nil
	}

	m.input.Reset()
	m.turns = append(m.turns, turn{role: model.RoleUser, content: message})
	m.state = StateSending
	m.doneSeen = false
	m.escalate = false
	m.refreshViewport()

	// The user turn persists once the session id is known; before the first
	// init there is nothing to attach it to.
	return tea.Batch(
		m.startStream(message),
		m.persistTurn(model.RoleUser, message),
	)
}

// handleStreamEvent applies one bridged stream event.
func (m *Model) handleStreamEvent(ev streamEvent) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch {
	case ev.init != nil:
		m.state = StateStreaming
		m.sessionID = ev.init.SessionID
		m.suggestions = ev.init.Suggestions
		m.escalate = ev.init.Escalate
		m.header.Topic = ev.init.Topic
		m.header.Engine = ev.init.Engine
		// Placeholder the tokens will fill.
		m.turns = append(m.turns, turn{role: model.RoleAssistant})

	case ev.token != "":
		m.state = StateStreaming
		if t := m.lastAssistantTurn(); t != nil {
			t.content += ev.token
		} else {
			m.turns = append(m.turns, turn{role: model.RoleAssistant, content: ev.token})
		}

	case ev.done != nil:
		m.doneSeen = true
		if t := m.lastAssistantTurn(); t != nil {
			// The server's reply field overrides local accumulation.
			t.content = *ev.done
		} else {
			m.turns = append(m.turns, turn{role: model.RoleAssistant, content: *ev.done})
		}
		cmds = append(cmds, m.persistTurn(model.RoleAssistant, *ev.done))

	case ev.err != nil:
		m.appendErrorTurn()
	}

	m.refreshViewport()
	cmds = append(cmds, m.waitForEvent())
	return m, tea.Batch(cmds...)
}

// handleStreamClosed settles the turn. Every exit path ends idle so the next
// send is accepted.
func (m *Model) handleStreamClosed() (tea.Model, tea.Cmd) {
	if !m.doneSeen && !m.hasErrorTurn() {
		// Truncated stream: the goroutine exited without done or error.
		m.appendErrorTurn()
	}
	m.events = nil
	m.cancel = nil
	m.state = StateIdle
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// TRANSCRIPT HELPERS
// =============================================================================

// lastAssistantTurn returns the trailing assistant turn when it is the
// current reply target.
func (m *Model) lastAssistantTurn() *turn {
	if len(m.turns) == 0 {
		return nil
	}
	t := &m.turns[len(m.turns)-1]
	if t.role == model.RoleAssistant && !t.isError {
		return t
	}
	return nil
}

// appendErrorTurn replaces an empty placeholder with the generic error turn,
// or appends one.
func (m *Model) appendErrorTurn() {
	if t := m.lastAssistantTurn(); t != nil && t.content == "" {
		t.content = errorTurnText
		t.isError = true
		return
	}
	m.turns = append(m.turns, turn{role: model.RoleAssistant, content: errorTurnText, isError: true})
}

func (m *Model) hasErrorTurn() bool {
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].isError {
			return true
		}
		if m.turns[i].role == model.RoleUser {
			break
		}
	}
	return false
}
