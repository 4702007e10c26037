package session

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in the conversation, user- or assistant-authored.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Window is a bounded conversation history. It keeps the most recent
// maxExchanges user/assistant exchanges and evicts the oldest exchange
// first under append pressure.
type Window struct {
	maxExchanges int
	turns        []Turn
}

func NewWindow(maxExchanges int) *Window {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}
	return &Window{maxExchanges: maxExchanges}
}

// AppendExchange records one completed exchange. The user turn always
// precedes the assistant turn; eviction removes both halves of the oldest
// exchange together.
func (w *Window) AppendExchange(userText, assistantText string) {
	w.turns = append(w.turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)
	if overflow := len(w.turns) - 2*w.maxExchanges; overflow > 0 {
		w.turns = append(w.turns[:0:0], w.turns[overflow:]...)
	}
}

// Turns returns the retained history in chronological order.
func (w *Window) Turns() []Turn {
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Window) Len() int { return len(w.turns) }

func (w *Window) Clear() { w.turns = nil }

// Render formats the window as prompt text, one line per turn.
func (w *Window) Render() string {
	if len(w.turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range w.turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch t.Role {
		case RoleUser:
			b.WriteString("Human: ")
		default:
			b.WriteString("AI: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
