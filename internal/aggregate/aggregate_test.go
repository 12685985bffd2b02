package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsehq/comms-gateway/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func msg(id, sender, recipient, content string, minutesAfter int, read bool) domain.Message {
	return domain.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		IsRead:      read,
		SentAt:      baseTime.Add(time.Duration(minutesAfter) * time.Minute),
	}
}

type staticResolver map[string]string

func (r staticResolver) DisplayName(id string) string {
	if name, ok := r[id]; ok {
		return name
	}
	return FallbackName(id)
}

func TestBuildConversationsSingleInboxMessage(t *testing.T) {
	inbox := []domain.Message{msg("m1", "u2", "me", "hi", 0, false)}

	convs := BuildConversations(inbox, nil, "me", nil)

	assert.Len(t, convs, 1)
	assert.Equal(t, "u2", convs[0].ParticipantID)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "m1", convs[0].LastMessage.ID)
}

func TestBuildConversationsDeduplicatesEcho(t *testing.T) {
	m := msg("m1", "u2", "me", "hi", 0, false)
	convs := BuildConversations([]domain.Message{m}, []domain.Message{m}, "me", nil)

	assert.Len(t, convs, 1)
	assert.Len(t, convs[0].Messages, 1)
}

func TestBuildConversationsReadWinsOnDuplicate(t *testing.T) {
	unread := msg("m1", "u2", "me", "hi", 0, false)
	read := msg("m1", "u2", "me", "hi", 0, true)

	// Whichever copy arrives first, the read bit must not revert.
	for _, pair := range [][2][]domain.Message{
		{{unread}, {read}},
		{{read}, {unread}},
	} {
		convs := BuildConversations(pair[0], pair[1], "me", nil)
		assert.Len(t, convs, 1)
		assert.True(t, convs[0].Messages[0].IsRead)
		assert.Equal(t, 0, convs[0].UnreadCount)
	}
}

func TestBuildConversationsGroupsByCounterpart(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "from u2", 0, true),
		msg("m2", "u3", "me", "from u3", 5, false),
	}
	sent := []domain.Message{
		msg("m3", "me", "u2", "to u2", 10, false),
	}

	convs := BuildConversations(inbox, sent, "me", nil)

	assert.Len(t, convs, 2)
	// u2 has the most recent activity, so it sorts first
	assert.Equal(t, "u2", convs[0].ParticipantID)
	assert.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "m3", convs[0].LastMessage.ID)
	// own sent message never counts as unread
	assert.Equal(t, 0, convs[0].UnreadCount)
	assert.Equal(t, 1, convs[1].UnreadCount)
}

func TestBuildConversationsOrderingDescending(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "old", 0, true),
		msg("m2", "u3", "me", "newer", 30, true),
		msg("m3", "u4", "me", "newest", 60, true),
	}

	convs := BuildConversations(inbox, nil, "me", nil)

	assert.Equal(t, []string{"u4", "u3", "u2"}, []string{
		convs[0].ParticipantID, convs[1].ParticipantID, convs[2].ParticipantID,
	})
}

func TestBuildConversationsSelfMessage(t *testing.T) {
	inbox := []domain.Message{msg("m1", "me", "me", "note to self", 0, false)}

	convs := BuildConversations(inbox, nil, "me", nil)

	assert.Len(t, convs, 1)
	assert.Equal(t, "me", convs[0].ParticipantID)
	assert.Len(t, convs[0].Messages, 1)
}

func TestBuildConversationsExcludesMalformed(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "fine", 0, false),
		msg("m2", "", "me", "no sender", 1, false),
	}
	sent := []domain.Message{
		msg("m3", "me", "", "broadcast without recipient", 2, false),
	}

	convs := BuildConversations(inbox, sent, "me", nil)

	assert.Len(t, convs, 1)
	assert.Equal(t, "u2", convs[0].ParticipantID)
	assert.Len(t, convs[0].Messages, 1)
}

func TestBuildConversationsEmptyInputs(t *testing.T) {
	assert.Empty(t, BuildConversations(nil, nil, "me", nil))
	assert.Empty(t, BuildThreads(nil, nil, "me"))
}

func TestBuildConversationsIdempotent(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "a", 0, false),
		msg("m2", "u3", "me", "b", 5, true),
	}
	sent := []domain.Message{
		msg("m3", "me", "u2", "c", 3, false),
	}

	first := BuildConversations(inbox, sent, "me", nil)
	second := BuildConversations(inbox, sent, "me", nil)

	assert.Equal(t, first, second)
}

func TestBuildConversationsResolvesDisplayNames(t *testing.T) {
	inbox := []domain.Message{msg("m1", "employee-u2-long-id", "me", "hi", 0, true)}
	resolver := staticResolver{"employee-u2-long-id": "Sarah Johnson"}

	convs := BuildConversations(inbox, nil, "me", resolver)
	assert.Equal(t, "Sarah Johnson", convs[0].DisplayName)

	// resolver miss falls back to a truncated identifier
	convs = BuildConversations(inbox, nil, "me", staticResolver{})
	assert.Equal(t, "employee", convs[0].DisplayName)
}

func TestBuildThreadsGroupsByThreadID(t *testing.T) {
	m1 := msg("m1", "me", "u2", "ping", 0, true)
	m1.ThreadID = "t1"
	m1.Subject = ""
	m2 := msg("m2", "u2", "me", "pong", 5, false)
	m2.ThreadID = "t1"
	m2.Subject = "Re: hello"

	threads := BuildThreads([]domain.Message{m2}, []domain.Message{m1}, "me")

	assert.Len(t, threads, 1)
	th := threads[0]
	assert.Equal(t, "t1", th.ThreadID)
	assert.Equal(t, "Re: hello", th.Subject)
	assert.ElementsMatch(t, []string{"me", "u2"}, th.Participants)
	assert.Len(t, th.Messages, 2)
	assert.Equal(t, "m2", th.LastMessage.ID)
	assert.Equal(t, 1, th.UnreadCount)
}

func TestBuildThreadsSingletonFallback(t *testing.T) {
	inbox := []domain.Message{msg("m1", "u2", "me", "solo", 0, true)}

	threads := BuildThreads(inbox, nil, "me")

	assert.Len(t, threads, 1)
	assert.Equal(t, "m1", threads[0].ThreadID)
	assert.Equal(t, NoSubjectPlaceholder, threads[0].Subject)
}

func TestBuildThreadsSubjectUsesOriginalOrder(t *testing.T) {
	// m2 is chronologically first but appears later in the array; the
	// subject comes from array order, not time order.
	m1 := msg("m1", "u2", "me", "a", 10, true)
	m1.ThreadID = "t1"
	m1.Subject = "First by array order"
	m2 := msg("m2", "u2", "me", "b", 0, true)
	m2.ThreadID = "t1"
	m2.Subject = "First by time"

	threads := BuildThreads([]domain.Message{m1, m2}, nil, "me")

	assert.Equal(t, "First by array order", threads[0].Subject)
}

func TestConversationMessagesChronological(t *testing.T) {
	inbox := []domain.Message{
		msg("m2", "u2", "me", "second", 5, true),
		msg("m4", "u3", "me", "other conversation", 7, true),
	}
	sent := []domain.Message{
		msg("m1", "me", "u2", "first", 0, true),
		msg("m3", "me", "u2", "third", 10, true),
	}

	msgs := ConversationMessages(inbox, sent, "me", "u2")

	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestThreadMessagesChronological(t *testing.T) {
	m1 := msg("m1", "me", "u2", "first", 0, true)
	m1.ThreadID = "t1"
	m2 := msg("m2", "u2", "me", "second", 5, true)
	m2.ThreadID = "t1"
	other := msg("m3", "u2", "me", "unrelated", 2, true)

	msgs := ThreadMessages([]domain.Message{m2, other}, []domain.Message{m1}, "t1")

	assert.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestFilterConversations(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "quarterly payroll numbers", 0, true),
		msg("m2", "u3", "me", "lunch?", 5, true),
	}
	resolver := staticResolver{"u2": "Sarah Johnson", "u3": "Michael Chen"}
	convs := BuildConversations(inbox, nil, "me", resolver)

	assert.Len(t, FilterConversations(convs, "sarah"), 1)
	assert.Len(t, FilterConversations(convs, "PAYROLL"), 1)
	assert.Len(t, FilterConversations(convs, "nobody"), 0)
	// empty query is a no-op
	assert.Equal(t, convs, FilterConversations(convs, ""))
}

func TestFilterThreads(t *testing.T) {
	m1 := msg("m1", "u2", "me", "budget review", 0, true)
	m1.ThreadID = "t1"
	m1.Subject = "Q3 planning"
	m2 := msg("m2", "u3", "me", "standup notes", 5, true)

	resolver := staticResolver{"u2": "Sarah Johnson", "u3": "Michael Chen"}
	threads := BuildThreads([]domain.Message{m1, m2}, nil, "me")

	assert.Len(t, FilterThreads(threads, "planning", resolver), 1)
	assert.Len(t, FilterThreads(threads, "budget", resolver), 1)
	assert.Len(t, FilterThreads(threads, "michael", resolver), 1)
	assert.Len(t, FilterThreads(threads, "zzz", resolver), 0)
	assert.Equal(t, threads, FilterThreads(threads, "", resolver))
}

func TestUnreadIn(t *testing.T) {
	msgs := []domain.Message{
		msg("m1", "u2", "me", "a", 0, false),
		msg("m2", "u2", "me", "b", 1, true),
		msg("m3", "me", "u2", "c", 2, false), // sent by me, never unread for me
	}

	unread := UnreadIn(msgs, "me")

	assert.Len(t, unread, 1)
	assert.Equal(t, "m1", unread[0].ID)
}

func TestUnreadCountNeverExceedsMessageCount(t *testing.T) {
	inbox := []domain.Message{
		msg("m1", "u2", "me", "a", 0, false),
		msg("m1", "u2", "me", "a", 0, false), // duplicate inside one collection
	}

	convs := BuildConversations(inbox, nil, "me", nil)

	assert.Len(t, convs[0].Messages, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.LessOrEqual(t, convs[0].UnreadCount, len(convs[0].Messages))
}
