// Package chat maintains per-session conversation state and orchestrates the
// message exchange pipeline over the analyzer, crisis policy, and store.
package chat

import "github.com/mindmate-app/mindmate/internal/analysis"

// maxRetainedTurns caps in-memory transcript growth for long-lived sessions.
// The analyzer only ever reads the most recent turns, so older ones can be
// discarded without changing request content.
const maxRetainedTurns = 100

// Transcript is the append-only turn history of one active session. It is not
// safe for concurrent use; the orchestrator serializes access per session.
type Transcript struct {
	turns []analysis.Turn
}

// Append adds a turn to the transcript, discarding the oldest turns beyond
// the retention cap.
func (t *Transcript) Append(role, text string) {
	t.turns = append(t.turns, analysis.Turn{Role: role, Text: text})
	if len(t.turns) > maxRetainedTurns {
		t.turns = t.turns[len(t.turns)-maxRetainedTurns:]
	}
}

// Turns returns a copy of the recorded turns, oldest first.
func (t *Transcript) Turns() []analysis.Turn {
	out := make([]analysis.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of retained turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Reset clears the transcript for a new conversation.
func (t *Transcript) Reset() {
	t.turns = nil
}
