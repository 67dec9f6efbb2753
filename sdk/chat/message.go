package chat

// Roles represent the different roles that can be used in a chat.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represent a single message in a chat.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage constructs a message with the user role.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage constructs a message with the assistant role.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// =============================================================================

// History is the ordered conversation owned by a single session.
type History struct {
	messages []Message
}

// Add appends a message to the end of the conversation.
func (h *History) Add(msg Message) {
	h.messages = append(h.messages, msg)
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []Message {
	msgs := make([]Message, len(h.messages))
	copy(msgs, h.messages)

	return msgs
}

// Len returns the number of messages in the conversation.
func (h *History) Len() int {
	return len(h.messages)
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}

	return h.messages[len(h.messages)-1], true
}

// RemoveLast drops the most recent message.
func (h *History) RemoveLast() {
	if len(h.messages) == 0 {
		return
	}

	h.messages[len(h.messages)-1] = Message{}
	h.messages = h.messages[:len(h.messages)-1]
}

// KeepLast drops every message between the first head messages and the most
// recent one.
func (h *History) KeepLast(head int) {
	if head < 0 {
		head = 0
	}

	if len(h.messages) <= head+1 {
		return
	}

	last := h.messages[len(h.messages)-1]

	msgs := make([]Message, 0, head+1)
	msgs = append(msgs, h.messages[:head]...)
	h.messages = append(msgs, last)
}

// Reset releases the whole conversation.
func (h *History) Reset() {
	h.messages = nil
}
