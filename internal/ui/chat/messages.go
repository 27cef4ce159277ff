// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea chat view: a transcript viewport,
// suggestion chips, and an input line wired to the streaming chat client.
package chat

import "github.com/vodacare/support-chat/internal/sse"

// =============================================================================
// STREAM MESSAGES
// =============================================================================

// streamEvent is one event bridged from the client stream goroutine into the
// Bubble Tea loop. Exactly one field is set.
type streamEvent struct {
	init  *sse.InitPayload
	token string
	done  *string
	err   error
}

// streamEventMsg delivers one stream event to Update.
type streamEventMsg streamEvent

// streamClosedMsg signals that the stream goroutine finished and the event
// channel is drained.
type streamClosedMsg struct{}
