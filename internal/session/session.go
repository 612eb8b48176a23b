// Package session tracks authenticated dashboard sessions. Each session
// carries its own alert evaluator, chat transcript, and optional imported
// event table, so two logged-in analysts never share alert state.
package session

import (
	"sync"
	"time"

	"github.com/seismicguard/seismicguard/internal/domain"
)

// ChatTurn is one entry in a session's conversation log.
type ChatTurn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is the per-login working state. Safe for concurrent use.
type Session struct {
	ID        string
	User      string
	Email     string
	IsAdmin   bool
	CreatedAt time.Time

	mu       sync.Mutex
	alert    *domain.AlertEvaluator
	chat     []ChatTurn
	imported *domain.EventTable
}

// Alert runs fn under the session lock with the session's evaluator.
// Evaluation and any state transition happen atomically per session.
func (s *Session) Alert(fn func(*domain.AlertEvaluator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.alert)
}

// SetImported pins an uploaded table as the session's active data source.
func (s *Session) SetImported(table domain.EventTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported = &table
}

// ClearImported switches the session back to the live feed.
func (s *Session) ClearImported() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported = nil
}

// Imported returns the pinned table, if any. ok is false when the session
// follows the live feed.
func (s *Session) Imported() (domain.EventTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imported == nil {
		return domain.EventTable{}, false
	}
	return *s.imported, true
}

// AppendChat records a turn in the transcript.
func (s *Session) AppendChat(role, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, ChatTurn{Role: role, Text: text, At: at})
}

// Chat returns a copy of the transcript in insertion order.
func (s *Session) Chat() []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatTurn, len(s.chat))
	copy(out, s.chat)
	return out
}
