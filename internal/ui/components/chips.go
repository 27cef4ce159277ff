// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vodacare/support-chat/internal/ui/styles"
)

// =============================================================================
// SUGGESTION CHIPS
// =============================================================================

// ChipRow renders suggestion chips across the available width, wrapping to
// new rows as needed. Chips beyond three rows are dropped.
func ChipRow(suggestions []string, width int) string {
	if len(suggestions) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}

	const maxRows = 3
	var rows []string
	var row []string
	rowWidth := 0

	for _, s := range suggestions {
		chip := renderChip(s)
		w := lipgloss.Width(chip)
		if rowWidth+w > width && len(row) > 0 {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			if len(rows) == maxRows {
				return strings.Join(rows, "\n")
			}
			row = nil
			rowWidth = 0
		}
		row = append(row, chip)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(rows, "\n")
}

func renderChip(label string) string {
	// Keep chips scannable on narrow terminals.
	if r := []rune(label); len(r) > 32 {
		label = string(r[:31]) + "…"
	}
	return styles.Chip.Render(label)
}
