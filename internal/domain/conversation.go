package domain

// Conversation is the derived grouping of all messages exchanged between
// the current user and one counterpart. It is never persisted — each
// snapshot recomputation produces a fresh list.
type Conversation struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Messages      []Message `json:"messages"`
	LastMessage   *Message  `json:"last_message"`
	UnreadCount   int       `json:"unread_count"`
}

// Thread is the derived grouping of messages sharing a thread id (or a
// singleton keyed by the message's own id). A thread may span more than
// two participants.
type Thread struct {
	ThreadID     string    `json:"thread_id"`
	Subject      string    `json:"subject"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	LastMessage  *Message  `json:"last_message"`
	UnreadCount  int       `json:"unread_count"`
}
