package core

import "sync"

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one role-tagged entry in the conversation transcript.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Name       string      `json:"name,omitempty"`         // tool name for tool-result messages
	ToolCallID string      `json:"tool_call_id,omitempty"` // id of the call a tool message answers
}

// History is the ordered message transcript shared by reference between the
// conversation manager and the turn worker. Append-only within a turn.
type History struct {
	mu   sync.Mutex
	msgs []Message
}

func NewHistory(systemPrompt string) *History {
	h := &History{}
	if systemPrompt != "" {
		h.msgs = append(h.msgs, Message{Role: MessageRoleSystem, Content: systemPrompt})
	}
	return h
}

func (h *History) Append(m Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, m)
	h.mu.Unlock()
}

func (h *History) AppendUser(text string) {
	h.Append(Message{Role: MessageRoleUser, Content: text})
}

func (h *History) AppendAssistant(text string) {
	h.Append(Message{Role: MessageRoleAssistant, Content: text})
}

func (h *History) AppendToolResult(callID, name, content string) {
	h.Append(Message{Role: MessageRoleTool, Content: content, Name: name, ToolCallID: callID})
}

// Snapshot returns a copy of the transcript safe to hand to a collaborator.
func (h *History) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
