package service

import (
	"context"
	"fmt"

	"github.com/pulsehq/comms-gateway/internal/aggregate"
	"github.com/pulsehq/comms-gateway/internal/common"
	"github.com/pulsehq/comms-gateway/internal/directory"
	"github.com/pulsehq/comms-gateway/internal/domain"
	"github.com/pulsehq/comms-gateway/internal/session"
)

// Caller is the authenticated identity a request acts for. Token is the
// caller's own bearer token, forwarded to the upstream store so inbox/sent
// stay scoped server-side.
type Caller struct {
	UserID    string
	CompanyID string
	Token     string
}

// MessageSender covers the upstream operations that bypass the snapshot
// (implemented by upstream.Client)
type MessageSender interface {
	SendMessage(ctx context.Context, token string, req *domain.SendMessageRequest) (*domain.Message, error)
	GetUnreadCount(ctx context.Context, token string) (int, error)
}

// CommsService serves derived conversation and thread views
type CommsService interface {
	ListConversations(ctx context.Context, caller Caller, query string) ([]domain.Conversation, *common.Meta, error)
	ListThreads(ctx context.Context, caller Caller, query string) ([]domain.Thread, *common.Meta, error)
	ConversationMessages(ctx context.Context, caller Caller, participantID string) ([]domain.Message, error)
	ThreadMessages(ctx context.Context, caller Caller, threadID string) ([]domain.Message, error)
	MarkConversationRead(ctx context.Context, caller Caller, participantID string) (int, error)
	MarkThreadRead(ctx context.Context, caller Caller, threadID string) (int, error)
	SendMessage(ctx context.Context, caller Caller, req *domain.SendMessageRequest) (*domain.Message, error)
	UnreadCount(ctx context.Context, caller Caller) (int, error)
}

type commsService struct {
	sessions *session.Manager
	resolver *directory.Resolver
	sender   MessageSender
}

// NewCommsService creates a new CommsService
func NewCommsService(sessions *session.Manager, resolver *directory.Resolver, sender MessageSender) CommsService {
	return &commsService{
		sessions: sessions,
		resolver: resolver,
		sender:   sender,
	}
}

// snapshot acquires the caller's polling session and returns its current
// collections. No snapshot means the very first fetch failed and nothing
// cached exists — the one case where a list request surfaces an error.
func (s *commsService) snapshot(caller Caller) (*session.Session, []domain.Message, []domain.Message, *common.Meta, error) {
	sess := s.sessions.Acquire(caller.UserID, caller.Token)
	inbox, sent, fetchedAt, ok := sess.Snapshot()
	if !ok {
		return nil, nil, nil, nil, fmt.Errorf("no message snapshot for user %s: %w",
			caller.UserID, common.ErrUpstreamUnavailable)
	}
	meta := &common.Meta{FetchedAt: &fetchedAt}
	return sess, inbox, sent, meta, nil
}

// ListConversations returns the counterpart-keyed conversation list,
// most recent first, optionally filtered by a search query
func (s *commsService) ListConversations(ctx context.Context, caller Caller, query string) ([]domain.Conversation, *common.Meta, error) {
	_, inbox, sent, meta, err := s.snapshot(caller)
	if err != nil {
		return nil, nil, err
	}

	s.resolver.Ensure(ctx, caller.Token, caller.CompanyID)
	names := s.resolver.Bind(caller.CompanyID)

	conversations := aggregate.BuildConversations(inbox, sent, caller.UserID, names)
	conversations = aggregate.FilterConversations(conversations, query)

	meta.Total = len(conversations)
	meta.Query = query
	for _, c := range conversations {
		meta.Unread += c.UnreadCount
	}
	return conversations, meta, nil
}

// ListThreads returns the thread-keyed list, most recent first
func (s *commsService) ListThreads(ctx context.Context, caller Caller, query string) ([]domain.Thread, *common.Meta, error) {
	_, inbox, sent, meta, err := s.snapshot(caller)
	if err != nil {
		return nil, nil, err
	}

	s.resolver.Ensure(ctx, caller.Token, caller.CompanyID)
	names := s.resolver.Bind(caller.CompanyID)

	threads := aggregate.BuildThreads(inbox, sent, caller.UserID)
	threads = aggregate.FilterThreads(threads, query, names)

	meta.Total = len(threads)
	meta.Query = query
	for _, t := range threads {
		meta.Unread += t.UnreadCount
	}
	return threads, meta, nil
}

// ConversationMessages returns the chronological messages exchanged with one participant
func (s *commsService) ConversationMessages(_ context.Context, caller Caller, participantID string) ([]domain.Message, error) {
	_, inbox, sent, _, err := s.snapshot(caller)
	if err != nil {
		return nil, err
	}

	msgs := aggregate.ConversationMessages(inbox, sent, caller.UserID, participantID)
	if len(msgs) == 0 {
		return nil, common.ErrConversationNotFound
	}
	return msgs, nil
}

// ThreadMessages returns the chronological messages of one thread
func (s *commsService) ThreadMessages(_ context.Context, caller Caller, threadID string) ([]domain.Message, error) {
	_, inbox, sent, _, err := s.snapshot(caller)
	if err != nil {
		return nil, err
	}

	msgs := aggregate.ThreadMessages(inbox, sent, threadID)
	if len(msgs) == 0 {
		return nil, common.ErrThreadNotFound
	}
	return msgs, nil
}

// MarkConversationRead commits a read receipt for every unread message the
// caller received in the conversation. Returns the number of commits issued;
// messages already read in the current snapshot are never re-committed.
func (s *commsService) MarkConversationRead(_ context.Context, caller Caller, participantID string) (int, error) {
	sess, inbox, sent, _, err := s.snapshot(caller)
	if err != nil {
		return 0, err
	}

	msgs := aggregate.ConversationMessages(inbox, sent, caller.UserID, participantID)
	if len(msgs) == 0 {
		return 0, common.ErrConversationNotFound
	}

	return sess.MarkRead(messageIDs(aggregate.UnreadIn(msgs, caller.UserID))), nil
}

// MarkThreadRead commits read receipts for the caller's unread messages in one thread
func (s *commsService) MarkThreadRead(_ context.Context, caller Caller, threadID string) (int, error) {
	sess, inbox, sent, _, err := s.snapshot(caller)
	if err != nil {
		return 0, err
	}

	msgs := aggregate.ThreadMessages(inbox, sent, threadID)
	if len(msgs) == 0 {
		return 0, common.ErrThreadNotFound
	}

	return sess.MarkRead(messageIDs(aggregate.UnreadIn(msgs, caller.UserID))), nil
}

// SendMessage proxies a send to the upstream store and schedules an
// immediate snapshot refresh so the next list read reflects it. Direct
// messages need a recipient; announcements go out without one.
func (s *commsService) SendMessage(ctx context.Context, caller Caller, req *domain.SendMessageRequest) (*domain.Message, error) {
	if req.Content == "" {
		return nil, common.ErrContentRequired
	}
	if req.MessageType == "" {
		req.MessageType = domain.MessageTypeDirect
	}
	if req.RecipientID == "" && req.MessageType != domain.MessageTypeAnnouncement {
		return nil, common.ErrRecipientRequired
	}

	msg, err := s.sender.SendMessage(ctx, caller.Token, req)
	if err != nil {
		return nil, err
	}

	sess := s.sessions.Acquire(caller.UserID, caller.Token)
	sess.InvalidateCache(ctx)
	sess.ForceRefresh()

	return msg, nil
}

// UnreadCount derives the caller's total unread from the current snapshot,
// falling back to the upstream counter when no snapshot exists yet
func (s *commsService) UnreadCount(ctx context.Context, caller Caller) (int, error) {
	sess := s.sessions.Acquire(caller.UserID, caller.Token)
	inbox, _, _, ok := sess.Snapshot()
	if !ok {
		return s.sender.GetUnreadCount(ctx, caller.Token)
	}
	return len(aggregate.UnreadIn(inbox, caller.UserID)), nil
}

func messageIDs(msgs []domain.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}
