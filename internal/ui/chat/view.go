// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/vodacare/support-chat/internal/model"
	"github.com/vodacare/support-chat/internal/ui/components"
	"github.com/vodacare/support-chat/internal/ui/styles"
)

// Fixed chrome rows around the viewport: header box (3), chips (up to 4),
// input (1), status (1).
const chromeHeight = 9

// resize lays the view out for a new terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.header.SetWidth(width)
	m.input.Width = width - 4

	vpHeight := height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refreshViewport()
}

// refreshViewport re-renders the transcript and keeps the tail visible.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// renderTranscript renders all turns as labeled blocks.
func (m *Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return styles.StatusLine.Render("Ask about plans, billing, roaming, network, or your device.")
	}

	width := m.width
	if width < 20 {
		width = 80
	}
	body := styles.MessageBody.Width(width - 2)

	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := styles.AssistantLabel.Render(model.RoleAssistant.DisplayName())
		if t.role == model.RoleUser {
			label = styles.UserLabel.Render(model.RoleUser.DisplayName())
		}
		content := t.content
		if content == "" {
			content = m.spinner.View()
		}
		if t.isError {
			b.WriteString(label + "\n" + styles.ErrorText.Width(width-2).Render(content))
			continue
		}
		b.WriteString(label + "\n" + body.Render(content))
	}
	return b.String()
}

// View renders the full chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	sections := []string{
		m.header.View(),
		m.viewport.View(),
	}

	if m.escalate {
		sections = append(sections, styles.EscalateBadge.Render("An agent handoff is available for this topic."))
	}
	if m.state == StateIdle && len(m.suggestions) > 0 {
		sections = append(sections, components.ChipRow(m.suggestions, m.width))
	}

	sections = append(sections, m.input.View(), m.statusLine())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// statusLine renders the footer hint for the current state.
func (m *Model) statusLine() string {
	switch m.state {
	case StateSending:
		return styles.StatusLine.Render(m.spinner.View() + " sending...")
	case StateStreaming:
		return styles.StatusLine.Render(m.spinner.View() + " replying... (esc to stop)")
	default:
		return styles.StatusLine.Render("enter to send | ctrl+c to quit")
	}
}
