// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the support-chat
// TUI: the branded header bar and the suggestion chip row.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vodacare/support-chat/internal/ui/styles"
)

// =============================================================================
// HEADER
// =============================================================================

// Header is the title bar: provider brand, current topic, and engine badge.
type Header struct {
	Provider string
	Topic    string
	Engine   string
	Width    int
}

// NewHeader creates a header for the given provider brand.
func NewHeader(provider string) *Header {
	return &Header{Provider: provider, Width: 80}
}

// SetWidth updates the available width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header bar.
func (h *Header) View() string {
	width := h.Width
	if width < 40 {
		width = 40
	}

	brand := lipgloss.NewStyle().Bold(true).Foreground(styles.Brand).
		Render(h.Provider + " Support")

	parts := []string{brand}
	if h.Topic != "" && h.Topic != "unknown" {
		parts = append(parts, lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("topic: "+h.Topic))
	}
	if h.Engine != "" {
		parts = append(parts, styles.EngineBadge(h.Engine).Render("["+h.Engine+"]"))
	}

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	return styles.TitleBar.Width(width - 2).Render(strings.Join(parts, sep))
}
