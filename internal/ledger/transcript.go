package ledger

import (
	"sync"

	"github.com/erg0nix/samtale/internal/core"
)

// Placeholder is the sentinel content of a pending assistant turn, shown
// between submit and the first streamed token.
const Placeholder = "..."

// Transcript is the user-visible conversation, independent of the ledger: it
// never carries source content, and the ledger never carries its status
// messages.
type Transcript struct {
	mu       sync.Mutex
	messages []core.ChatMessage
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendUser pushes a user message.
func (t *Transcript) AppendUser(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, core.ChatMessage{Role: core.RoleUser, Content: text})
}

// AppendAssistant pushes an assistant message; used for reconcile status
// summaries.
func (t *Transcript) AppendAssistant(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, core.ChatMessage{Role: core.RoleAssistant, Content: text})
}

// AppendPlaceholder pushes the pending-assistant sentinel.
func (t *Transcript) AppendPlaceholder() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = append(t.messages, core.ChatMessage{Role: core.RoleAssistant, Content: Placeholder})
}

// SetLast overwrites the content of the trailing message; each streamed
// increment splices the cumulative text here.
func (t *Transcript) SetLast(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return
	}

	t.messages[len(t.messages)-1].Content = content
}

// Last returns the trailing message.
func (t *Transcript) Last() (core.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return core.ChatMessage{}, false
	}

	return t.messages[len(t.messages)-1], true
}

// LastAssistant returns the content of the most recent finished assistant
// message, skipping a trailing placeholder.
func (t *Transcript) LastAssistant() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		if msg.Role == core.RoleAssistant && msg.Content != Placeholder {
			return msg.Content, true
		}
	}

	return "", false
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []core.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]core.ChatMessage, len(t.messages))
	copy(out, t.messages)

	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.messages)
}

// Restore replaces the transcript wholesale; used when reloading persisted
// state.
func (t *Transcript) Restore(messages []core.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = make([]core.ChatMessage, len(messages))
	copy(t.messages, messages)
}

// Clear drops all messages.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages = nil
}
