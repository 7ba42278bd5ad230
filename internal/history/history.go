package history

// Turn is one exchange unit in a conversation, immutable once appended.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Log is the bounded per-session conversation history. The first turn is the
// system turn and is never evicted; truncation keeps it plus the most recent
// cap-1 turns. The owning session loop is the only accessor, so there is no
// locking here.
type Log struct {
	cap   int
	turns []Turn
}

// New seeds a history with the system turn.
func New(systemPrompt string, cap int) *Log {
	if cap < 2 {
		cap = 10
	}
	turns := make([]Turn, 1, cap)
	turns[0] = Turn{Role: "system", Content: systemPrompt}
	return &Log{cap: cap, turns: turns}
}

// Append records a completed user or assistant turn.
func (l *Log) Append(role, content string) {
	l.turns = append(l.turns, Turn{Role: role, Content: content})
}

// Truncate enforces the cap. Callers invoke it only after an assistant turn
// completes, never mid-stream.
func (l *Log) Truncate() {
	if len(l.turns) <= l.cap {
		return
	}
	keep := l.cap - 1
	trimmed := make([]Turn, 0, l.cap)
	trimmed = append(trimmed, l.turns[0])
	trimmed = append(trimmed, l.turns[len(l.turns)-keep:]...)
	l.turns = trimmed
}

// Turns returns a copy of the history for an upstream call.
func (l *Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len reports the total turn count including the system turn.
func (l *Log) Len() int { return len(l.turns) }
