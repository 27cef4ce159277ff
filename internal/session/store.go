// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides per-conversation history storage for the chat
// server. Histories are best-effort: the protocol stays correct if they are
// lost on restart or evicted under TTL.
package session

import (
	"context"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vodacare/support-chat/internal/model"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the session history abstraction consumed by the chat handlers.
type Store interface {
	// Get returns a copy of the turns recorded for a session, oldest first.
	Get(sessionID string) []model.Turn

	// Append records one turn and refreshes the session's activity time.
	Append(sessionID string, role model.Role, content string)

	// Evict drops sessions idle longer than the given duration and returns
	// how many were removed.
	Evict(olderThan time.Duration) int
}

// NewID generates a fresh opaque session id (32 hex chars).
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

// DefaultTTL is how long an idle session survives before eviction.
const DefaultTTL = 2 * time.Hour

// maxTurnsPerSession bounds memory for a single runaway conversation.
const maxTurnsPerSession = 200

// MemoryStore keeps histories in process memory with TTL-based eviction.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*record
	ttl      time.Duration
}

type record struct {
	turns    []model.Turn
	lastSeen time.Time
}

// NewMemoryStore creates a store. A zero or negative ttl falls back to
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*record),
		ttl:      ttl,
	}
}

// Get returns a copy of the session's turns, or nil for an unknown session.
func (s *MemoryStore) Get(sessionID string) []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]model.Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}

// Append records one turn, creating the session on first use.
func (s *MemoryStore) Append(sessionID string, role model.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &record{}
		s.sessions[sessionID] = rec
	}
	rec.turns = append(rec.turns, model.Turn{Role: role, Content: content})
	if len(rec.turns) > maxTurnsPerSession {
		rec.turns = rec.turns[len(rec.turns)-maxTurnsPerSession:]
	}
	rec.lastSeen = time.Now()
}

// Evict removes sessions idle longer than olderThan.
func (s *MemoryStore) Evict(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	evicted := 0
	for id, rec := range s.sessions {
		if rec.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor evicts idle sessions on an interval until ctx is canceled.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Evict(s.ttl); n > 0 {
					log.Printf("SESSIONS_EVICTED | count=%d remaining=%d", n, s.Len())
				}
			}
		}
	}()
}
