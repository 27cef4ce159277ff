// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the support-chat TUI.
// All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// PALETTE
// =============================================================================

// Brand is the VodaCare red used for the title bar and accents.
var Brand = lipgloss.AdaptiveColor{Light: "#E60000", Dark: "#FF4D4D"}

// Cyan highlights interactive elements like suggestion chips.
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald marks success and the live-model engine badge.
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Amber marks the rule-based engine badge and escalation notices.
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Rose marks error turns.
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Surface and text tones.
var (
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
)

// =============================================================================
// MESSAGE STYLES
// =============================================================================

// UserLabel styles the "You" speaker label.
var UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)

// AssistantLabel styles the provider speaker label.
var AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Brand)

// ErrorText styles error turns in the transcript.
var ErrorText = lipgloss.NewStyle().Foreground(Rose)

// MessageBody styles regular turn content.
var MessageBody = lipgloss.NewStyle().Foreground(TextPrimary)

// =============================================================================
// CHROME STYLES
// =============================================================================

// TitleBar styles the header box.
var TitleBar = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(Brand).
	Padding(0, 1)

// Chip styles one suggestion chip.
var Chip = lipgloss.NewStyle().
	Foreground(Cyan).
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(Overlay).
	Padding(0, 1)

// StatusLine styles the footer hint line.
var StatusLine = lipgloss.NewStyle().Foreground(TextMuted)

// EscalateBadge styles the human-handoff notice.
var EscalateBadge = lipgloss.NewStyle().
	Bold(true).
	Foreground(Amber)

// EngineBadge returns the badge style for an engine name.
func EngineBadge(engine string) lipgloss.Style {
	if engine == "model" {
		return lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(Amber)
}
