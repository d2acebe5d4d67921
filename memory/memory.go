// Package memory keeps short per-session conversational history.
package memory

import (
	"sync"

	"caagent/types"
)

// Sessions is the capability the agent needs: read a trailing window
// of a session's history and append finished turns.
type Sessions interface {
	Read(sessionID string) []types.Turn
	Append(sessionID string, turns ...types.Turn)
}

// Store is a mutex-guarded keyed session store. Stored history grows
// without bound for the process lifetime; only the read side windows.
type Store struct {
	mu       sync.RWMutex
	window   int
	sessions map[string][]types.Turn
}

func NewStore(window int) *Store {
	return &Store{
		window:   window,
		sessions: make(map[string][]types.Turn),
	}
}

// Read returns at most the window-most-recent turns of the session, in
// original order. An unknown session id yields an empty slice.
func (s *Store) Read(sessionID string) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}
	out := make([]types.Turn, len(history))
	copy(out, history)
	return out
}

// Append adds turns to the session's history, creating it on first use.
func (s *Store) Append(sessionID string, turns ...types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
}
