package domain

import "time"

// Message type constants (upstream message_type field)
const (
	MessageTypeDirect       = "direct"
	MessageTypeAnnouncement = "announcement"
	MessageTypeSystem       = "system"
)

// Message is a single message as returned by the Pulse message store.
// Messages are immutable once created; only is_read/read_at move, and
// only ever from unread to read.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"sender_id"`
	RecipientID string       `json:"recipient_id"`
	CompanyID   string       `json:"company_id,omitempty"`
	MessageType string       `json:"message_type,omitempty"`
	ThreadID    string       `json:"thread_id,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      string       `json:"status,omitempty"`
	IsRead      bool         `json:"is_read"`
	SentAt      time.Time    `json:"sent_at"`
	ReadAt      *time.Time   `json:"read_at,omitempty"`
}

// Attachment file metadata carried on a message
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

// CounterpartOf returns the participant on the other side of the message
// relative to userID. ok is false when no counterpart can be determined
// (missing sender or recipient) — such messages are excluded from
// conversation grouping. A self-message counts as its own counterpart.
func (m *Message) CounterpartOf(userID string) (string, bool) {
	if m.SenderID == userID {
		if m.RecipientID == "" {
			return "", false
		}
		return m.RecipientID, true
	}
	if m.SenderID == "" {
		return "", false
	}
	return m.SenderID, true
}

// ThreadKey returns the grouping key for thread derivation: the explicit
// thread id, or the message's own id for a singleton thread.
func (m *Message) ThreadKey() string {
	if m.ThreadID != "" {
		return m.ThreadID
	}
	return m.ID
}

// UnreadFor reports whether the message is an unread message addressed to userID
func (m *Message) UnreadFor(userID string) bool {
	return m.RecipientID == userID && !m.IsRead
}

// SendMessageRequest payload for sending a message through the gateway.
// RecipientID may be empty only for announcement broadcasts.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	MessageType string `json:"message_type,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Content     string `json:"content" binding:"required"`
}

// UnreadCountResponse upstream unread counter payload
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
