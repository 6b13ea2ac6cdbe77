package client

import (
	"sync"
	"time"
)

// ChatKind distinguishes user chat from server notices.
type ChatKind string

const (
	ChatKindChat   ChatKind = "chat"
	ChatKindSystem ChatKind = "system"
)

// Attachment references an uploaded file shared in chat.
type Attachment struct {
	URL      string
	Filename string
	MimeType string
}

// ChatMessage is one entry in the room's message sequence.
type ChatMessage struct {
	Kind       ChatKind
	Author     string // empty for system notices
	Body       string
	Attachment *Attachment
	Timestamp  time.Time
}

// ChatLog is the append-only ordered message sequence for the active
// room. It is cleared wholesale when the room selection changes.
type ChatLog struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

// NewChatLog creates an empty log.
func NewChatLog() *ChatLog {
	return &ChatLog{}
}

// Append adds a message, stamping it if the caller didn't.
func (l *ChatLog) Append(msg ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// AppendSystem adds a system notice. Used for server welcome text and for
// surfacing application errors (e.g. a failed upload) in the message area.
func (l *ChatLog) AppendSystem(body string) {
	l.Append(ChatMessage{Kind: ChatKindSystem, Body: body})
}

// Messages returns a copy of the log in order.
func (l *ChatLog) Messages() []ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *ChatLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.messages)
}

// Clear empties the log on room change.
func (l *ChatLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
}
