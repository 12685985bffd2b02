// Package aggregate derives conversation and thread views from the two flat
// message collections the Pulse backend exposes (inbox and sent). The server
// has no conversation model; everything here is recomputed from scratch on
// every snapshot and holds no state of its own.
package aggregate

import (
	"sort"
	"strings"

	"github.com/pulsehq/comms-gateway/internal/domain"
	"github.com/pulsehq/comms-gateway/pkg/logger"
)

// NoSubjectPlaceholder is used for threads whose members all carry an empty subject
const NoSubjectPlaceholder = "(No subject)"

// NameResolver maps a participant id to a display name. Implementations
// must not fail: a miss degrades to a fallback name, never an error.
type NameResolver interface {
	DisplayName(participantID string) string
}

// FallbackName truncates an identifier for display when no directory entry exists
func FallbackName(id string) string {
	if id == "" {
		return "Unknown"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// mergeByID concatenates inbox and sent preserving original array order and
// de-duplicates by message id. A message present in both collections (echoes,
// self-messages, refetch races) keeps its first occurrence; if any duplicate
// was observed read, the kept copy is read — the read bit never reverts.
func mergeByID(inbox, sent []domain.Message) []domain.Message {
	merged := make([]domain.Message, 0, len(inbox)+len(sent))
	index := make(map[string]int, len(inbox)+len(sent))

	appendAll := func(msgs []domain.Message) {
		for _, m := range msgs {
			if m.ID == "" {
				alog := logger.WithComponent("aggregate")
				alog.Warn().
					Str("sender_id", m.SenderID).
					Str("recipient_id", m.RecipientID).
					Msg("dropping message without id")
				continue
			}
			if at, seen := index[m.ID]; seen {
				if m.IsRead && !merged[at].IsRead {
					merged[at].IsRead = true
					merged[at].ReadAt = m.ReadAt
				}
				continue
			}
			index[m.ID] = len(merged)
			merged = append(merged, m)
		}
	}

	appendAll(inbox)
	appendAll(sent)
	return merged
}

// BuildConversations groups inbox+sent into counterpart-keyed conversations.
// Messages whose counterpart cannot be determined are logged and excluded.
// The result is ordered by most recent activity first; recomputing on the
// same inputs yields the same output.
func BuildConversations(inbox, sent []domain.Message, currentUserID string, resolver NameResolver) []domain.Conversation {
	groups := make(map[string][]domain.Message)
	for _, m := range mergeByID(inbox, sent) {
		pid, ok := m.CounterpartOf(currentUserID)
		if !ok {
			alog := logger.WithComponent("aggregate")
			alog.Warn().
				Str("message_id", m.ID).
				Msg("dropping message without determinable counterpart")
			continue
		}
		groups[pid] = append(groups[pid], m)
	}

	conversations := make([]domain.Conversation, 0, len(groups))
	for pid, msgs := range groups {
		sortChronological(msgs)
		last := msgs[len(msgs)-1]
		conversations = append(conversations, domain.Conversation{
			ParticipantID: pid,
			DisplayName:   resolveName(resolver, pid),
			Messages:      msgs,
			LastMessage:   &last,
			UnreadCount:   countUnread(msgs, currentUserID),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessage.SentAt.Equal(b.LastMessage.SentAt) {
			return a.LastMessage.SentAt.After(b.LastMessage.SentAt)
		}
		return a.ParticipantID < b.ParticipantID
	})
	return conversations
}

// BuildThreads groups inbox+sent by thread id, falling back to the message's
// own id for singleton threads. The subject is the first non-empty subject in
// original array order; participants are the deduplicated union of sender and
// recipient ids across member messages.
func BuildThreads(inbox, sent []domain.Message, currentUserID string) []domain.Thread {
	merged := mergeByID(inbox, sent)

	groups := make(map[string][]domain.Message)
	for _, m := range merged {
		key := m.ThreadKey()
		groups[key] = append(groups[key], m)
	}

	threads := make([]domain.Thread, 0, len(groups))
	for key, msgs := range groups {
		subject := NoSubjectPlaceholder
		for _, m := range msgs { // original order, not chronological
			if m.Subject != "" {
				subject = m.Subject
				break
			}
		}

		participants := participantSet(msgs)
		sortChronological(msgs)
		last := msgs[len(msgs)-1]

		threads = append(threads, domain.Thread{
			ThreadID:     key,
			Subject:      subject,
			Participants: participants,
			Messages:     msgs,
			LastMessage:  &last,
			UnreadCount:  countUnread(msgs, currentUserID),
		})
	}

	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if !a.LastMessage.SentAt.Equal(b.LastMessage.SentAt) {
			return a.LastMessage.SentAt.After(b.LastMessage.SentAt)
		}
		return a.ThreadID < b.ThreadID
	})
	return threads
}

// ConversationMessages returns the chronological message list exchanged
// between the current user and one participant.
func ConversationMessages(inbox, sent []domain.Message, currentUserID, participantID string) []domain.Message {
	var msgs []domain.Message
	for _, m := range mergeByID(inbox, sent) {
		pid, ok := m.CounterpartOf(currentUserID)
		if ok && pid == participantID {
			msgs = append(msgs, m)
		}
	}
	sortChronological(msgs)
	return msgs
}

// ThreadMessages returns the chronological message list of one thread
func ThreadMessages(inbox, sent []domain.Message, threadID string) []domain.Message {
	var msgs []domain.Message
	for _, m := range mergeByID(inbox, sent) {
		if m.ThreadKey() == threadID {
			msgs = append(msgs, m)
		}
	}
	sortChronological(msgs)
	return msgs
}

// FilterConversations returns the conversations whose display name or last
// message content contains the query, case-insensitively. An empty query
// returns the input unchanged.
func FilterConversations(conversations []domain.Conversation, query string) []domain.Conversation {
	if query == "" {
		return conversations
	}
	q := strings.ToLower(query)

	var out []domain.Conversation
	for _, c := range conversations {
		if strings.Contains(strings.ToLower(c.DisplayName), q) {
			out = append(out, c)
			continue
		}
		if c.LastMessage != nil && strings.Contains(strings.ToLower(c.LastMessage.Content), q) {
			out = append(out, c)
		}
	}
	return out
}

// FilterThreads returns the threads whose resolved participant names, or any
// member message's content or subject, contain the query. An empty query
// returns the input unchanged.
func FilterThreads(threads []domain.Thread, query string, resolver NameResolver) []domain.Thread {
	if query == "" {
		return threads
	}
	q := strings.ToLower(query)

	var out []domain.Thread
	for _, t := range threads {
		if threadMatches(t, q, resolver) {
			out = append(out, t)
		}
	}
	return out
}

func threadMatches(t domain.Thread, q string, resolver NameResolver) bool {
	for _, pid := range t.Participants {
		if strings.Contains(strings.ToLower(resolveName(resolver, pid)), q) {
			return true
		}
	}
	for _, m := range t.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) ||
			strings.Contains(strings.ToLower(m.Subject), q) {
			return true
		}
	}
	return false
}

// UnreadIn returns the member messages a read-commit pass must cover: those
// addressed to the current user and not yet read.
func UnreadIn(msgs []domain.Message, currentUserID string) []domain.Message {
	var unread []domain.Message
	for _, m := range msgs {
		if m.UnreadFor(currentUserID) {
			unread = append(unread, m)
		}
	}
	return unread
}

func countUnread(msgs []domain.Message, currentUserID string) int {
	n := 0
	for _, m := range msgs {
		if m.UnreadFor(currentUserID) {
			n++
		}
	}
	return n
}

func sortChronological(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}

func participantSet(msgs []domain.Message) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range msgs {
		for _, id := range []string{m.SenderID, m.RecipientID} {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func resolveName(resolver NameResolver, id string) string {
	if resolver == nil {
		return FallbackName(id)
	}
	return resolver.DisplayName(id)
}
