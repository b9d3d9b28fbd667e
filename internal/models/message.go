package models

// Message represents a single unit of the conversation. Its ID and Role are stable once
// created; an assistant message's parts may grow while the reply is still streaming, and
// the message is treated as immutable once the stream ends.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one content segment of a message. Part order within a message is render order.
// Only text segments exist today; the Type discriminator leaves room for other kinds.
type Part struct {
	Type PartType `json:"type"`

	// Text would be filled if Type is PartTypeText.
	Text string `json:"text,omitempty"`
}

// Role represents the role of a message participant.
type Role string

// PartType represents the kind of a content segment.
type PartType string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system message.
	RoleSystem Role = "system"

	// PartTypeText represents a plain text segment.
	PartTypeText PartType = "text"
)

// TextMessage builds a message consisting of a single text part.
func TextMessage(id string, role Role, text string) Message {
	return Message{
		ID:   id,
		Role: role,
		Parts: []Part{
			{
				Type: PartTypeText,
				Text: text,
			},
		},
	}
}

// PlainText concatenates the message's text parts in render order.
func (m Message) PlainText() string {
	var out string
	for _, p := range m.Parts {
		if p.Type != PartTypeText {
			continue
		}
		out += p.Text
	}
	return out
}

// CloneMessages deep-copies a transcript so callers can hold a snapshot while the live
// transcript keeps growing.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = msg
		out[i].Parts = make([]Part, len(msg.Parts))
		copy(out[i].Parts, msg.Parts)
	}
	return out
}
