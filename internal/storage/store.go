// Copyright (c) 2025 VodaCare Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists transcripts, study participants, and interaction
// telemetry in SQLite. Every write here is best-effort from the chat
// pipeline's point of view: persistence failures are logged, never allowed
// to fail a turn.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL,
	role              TEXT NOT NULL,
	content           TEXT NOT NULL,
	participant_id    TEXT NOT NULL DEFAULT '',
	participant_name  TEXT NOT NULL DEFAULT '',
	participant_group TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

CREATE TABLE IF NOT EXISTS participants (
	participant_id    TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	participant_group TEXT NOT NULL DEFAULT '',
	session_id        TEXT NOT NULL DEFAULT '',
	scenario_id       TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS interaction_events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id        TEXT NOT NULL,
	participant_id    TEXT NOT NULL DEFAULT '',
	participant_group TEXT NOT NULL DEFAULT '',
	event             TEXT NOT NULL DEFAULT '',
	component         TEXT NOT NULL DEFAULT '',
	label             TEXT NOT NULL DEFAULT '',
	value             TEXT NOT NULL DEFAULT '',
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	client_ts         TEXT NOT NULL DEFAULT '',
	page_url          TEXT NOT NULL DEFAULT '',
	user_agent        TEXT NOT NULL DEFAULT '',
	meta              TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_interaction_session ON interaction_events(session_id, id);
`

// =============================================================================
// TYPES
// =============================================================================

// MessageRow is one persisted transcript entry.
type MessageRow struct {
	ID               int64  `json:"id,omitempty"`
	SessionID        string `json:"session_id"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	ParticipantID    string `json:"participant_id,omitempty"`
	ParticipantName  string `json:"participant_name,omitempty"`
	ParticipantGroup string `json:"participant_group,omitempty"`
	// CreatedAt is the SQLite timestamp string; left as text to avoid
	// driver-specific time parsing.
	CreatedAt string `json:"created_at,omitempty"`
}

// Participant is one enrolled study participant.
type Participant struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name,omitempty"`
	Group         string `json:"group,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	ScenarioID    string `json:"scenario_id,omitempty"`
}

// InteractionEvent is one client telemetry event. ClientTS is kept as the
// normalized string form; a zero value means the client sent none.
type InteractionEvent struct {
	SessionID        string
	ParticipantID    string
	ParticipantGroup string
	Event            string
	Component        string
	Label            string
	Value            string
	DurationMs       int64
	ClientTS         string
	PageURL          string
	UserAgent        string
	Meta             string
}

// =============================================================================
// STORE
// =============================================================================

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema. The
// parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// Single connection: the pure-Go driver serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// MESSAGES
// =============================================================================

// InsertMessage stores one transcript row.
func (s *Store) InsertMessage(ctx context.Context, m MessageRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, participant_id, participant_name, participant_group)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.Role, m.Content, m.ParticipantID, m.ParticipantName, m.ParticipantGroup)
	if err != nil {
		return fmt.Errorf("storage: insert message: %w", err)
	}
	return nil
}

// Messages returns a session's transcript, oldest first, capped at limit.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]MessageRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, participant_id, participant_name, participant_group, created_at
		 FROM messages WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.ParticipantID, &m.ParticipantName, &m.ParticipantGroup, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

// UpsertParticipant inserts or updates a participant keyed by id. Empty
// incoming fields do not clobber existing values.
func (s *Store) UpsertParticipant(ctx context.Context, p Participant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (participant_id, name, participant_group, session_id, scenario_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(participant_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE participants.name END,
			participant_group = CASE WHEN excluded.participant_group != '' THEN excluded.participant_group ELSE participants.participant_group END,
			session_id = CASE WHEN excluded.session_id != '' THEN excluded.session_id ELSE participants.session_id END,
			scenario_id = CASE WHEN excluded.scenario_id != '' THEN excluded.scenario_id ELSE participants.scenario_id END,
			updated_at = CURRENT_TIMESTAMP`,
		p.ParticipantID, p.Name, p.Group, p.SessionID, p.ScenarioID)
	if err != nil {
		return fmt.Errorf("storage: upsert participant: %w", err)
	}
	return nil
}

// Participant fetches one participant by id.
func (s *Store) Participant(ctx context.Context, id string) (Participant, error) {
	var p Participant
	err := s.db.QueryRowContext(ctx,
		`SELECT participant_id, name, participant_group, session_id, scenario_id
		 FROM participants WHERE participant_id = ?`, id).
		Scan(&p.ParticipantID, &p.Name, &p.Group, &p.SessionID, &p.ScenarioID)
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// =============================================================================
// INTERACTION EVENTS
// =============================================================================

// InsertInteractions stores a batch of telemetry events, skipping any without
// a session id. Returns how many were stored.
func (s *Store) InsertInteractions(ctx context.Context, events []InteractionEvent) (int, error) {
	stored := 0
	for _, ev := range events {
		if ev.SessionID == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO interaction_events
				(session_id, participant_id, participant_group, event, component, label, value,
				 duration_ms, client_ts, page_url, user_agent, meta)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.SessionID, ev.ParticipantID, ev.ParticipantGroup, ev.Event, ev.Component,
			ev.Label, ev.Value, ev.DurationMs, ev.ClientTS, ev.PageURL, ev.UserAgent, ev.Meta)
		if err != nil {
			return stored, fmt.Errorf("storage: insert interaction: %w", err)
		}
		stored++
	}
	return stored, nil
}
