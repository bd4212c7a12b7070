package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/models"
)

// Hub sort orders.
const (
	SortAlphabetical = "alphabetical"
	SortRecent       = "recent"
	SortUnread       = "unread"
)

const unknownGroupName = "Unknown Group"

// AllMessages flattens every conversation, newest first, annotated with its conversation.
func (s *ConversationStore) AllMessages() ([]dto.AnnotatedMessage, error) {
	if !s.IsPrivileged() {
		return nil, ErrNotPrivileged
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []dto.AnnotatedMessage
	for key, chat := range s.privateChats {
		name := s.privateDisplayNameLocked(chat, " ↔ ")
		for _, msg := range chat.History {
			out = append(out, dto.AnnotatedMessage{
				Message:          msg.Clone(),
				ConversationID:   key,
				ConversationType: models.ConversationPrivate,
				ConversationName: name,
			})
		}
	}
	for id, group := range s.groupChats {
		for _, msg := range group.History {
			out = append(out, dto.AnnotatedMessage{
				Message:          msg.Clone(),
				ConversationID:   id,
				ConversationType: models.ConversationGroup,
				ConversationName: group.Name,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp == out[j].Timestamp {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	if out == nil {
		out = []dto.AnnotatedMessage{}
	}
	return out, nil
}

// MessagesByUser filters AllMessages to one sender.
func (s *ConversationStore) MessagesByUser(userID string) ([]dto.AnnotatedMessage, error) {
	all, err := s.AllMessages()
	if err != nil {
		return nil, err
	}
	out := make([]dto.AnnotatedMessage, 0)
	for _, msg := range all {
		if msg.SenderID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

// MessagesByConversation returns one conversation's history in arrival order.
func (s *ConversationStore) MessagesByConversation(conversationID string, isGroup bool) ([]models.Message, error) {
	if !s.IsPrivileged() {
		return nil, ErrNotPrivileged
	}
	return s.history(conversationID, isGroup), nil
}

func (s *ConversationStore) history(conversationID string, isGroup bool) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return []models.Message{}
	}
	return cloneHistory(*history)
}

// MessagesPaginated slices a history into 1-based pages.
func (s *ConversationStore) MessagesPaginated(conversationID string, isGroup bool, page, pageSize int) dto.MessagePage {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		page = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return dto.MessagePage{Messages: []models.Message{}, CurrentPage: page}
	}

	total := len(*history)
	result := dto.MessagePage{
		Messages:      []models.Message{},
		TotalPages:    int(math.Ceil(float64(total) / float64(pageSize))),
		CurrentPage:   page,
		TotalMessages: total,
	}
	// Bounds are checked before multiplying so huge page numbers cannot overflow.
	if page > result.TotalPages {
		return result
	}
	start := (page - 1) * pageSize
	end := start + min(pageSize, total-start)
	result.Messages = cloneHistory((*history)[start:end])
	return result
}

// SearchMessages matches content and sender name case-insensitively.
func (s *ConversationStore) SearchMessages(conversationID string, isGroup bool, query string) []models.Message {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.historyLocked(conversationID, isGroup)
	out := make([]models.Message, 0)
	if history == nil {
		return out
	}
	for _, msg := range *history {
		if strings.Contains(strings.ToLower(msg.MessageContent), needle) ||
			strings.Contains(strings.ToLower(msg.SenderName), needle) {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// ConversationName is the moderation label of a conversation.
func (s *ConversationStore) ConversationName(conversationID string, isGroup bool) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if isGroup {
		if group, ok := s.groupChats[conversationID]; ok && group.Name != "" {
			return group.Name
		}
		return unknownGroupName
	}
	if chat, ok := s.privateChats[conversationID]; ok {
		return s.privateDisplayNameLocked(chat, " ↔ ")
	}
	return unknownUserName
}

func (s *ConversationStore) privateDisplayNameLocked(chat *models.PrivateChat, sep string) string {
	var a, b string
	if len(chat.Users) > 0 {
		a = chat.Users[0]
	}
	if len(chat.Users) > 1 {
		b = chat.Users[1]
	}
	return s.directory.Name(a) + sep + s.directory.Name(b)
}

// Conversations lists the conversations the local user takes part in, favorites first.
func (s *ConversationStore) Conversations(sortBy string) []dto.ConversationSummary {
	now := s.clock()

	s.mu.RLock()
	out := make([]dto.ConversationSummary, 0, len(s.groupChats)+len(s.privateChats))
	for id, group := range s.groupChats {
		if !group.HasMember(s.userID) {
			continue
		}
		out = append(out, s.summaryLocked(id, models.ConversationGroup, group.Name, group.Members, len(group.History), now))
	}
	for key, chat := range s.privateChats {
		if !chat.HasUser(s.userID) {
			continue
		}
		peer := chat.Peer(s.userID)
		if _, known := s.directory.User(peer); !known {
			continue
		}
		out = append(out, s.summaryLocked(key, models.ConversationPrivate, s.directory.Name(peer), chat.Users, len(chat.History), now))
	}
	s.mu.RUnlock()

	sortSummaries(out, sortBy)
	return out
}

func (s *ConversationStore) summaryLocked(id, kind, name string, members []string, count int, now time.Time) dto.ConversationSummary {
	activity := s.lastActivity[id]
	summary := dto.ConversationSummary{
		ID:           id,
		Type:         kind,
		Name:         name,
		Members:      append([]string{}, members...),
		UnreadCount:  s.unread[id],
		LastActivity: activity,
		IsFavorite:   containsID(s.favorites, id),
		IsMuted:      containsID(s.muted, id),
		MessageCount: count,
	}
	if activity > 0 {
		summary.LastActive = FormatRelativeTime(activity, now)
	}
	return summary
}

func sortSummaries(list []dto.ConversationSummary, sortBy string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsFavorite != b.IsFavorite {
			return a.IsFavorite
		}
		switch sortBy {
		case SortRecent:
			if a.LastActivity != b.LastActivity {
				return a.LastActivity > b.LastActivity
			}
		case SortUnread:
			if a.UnreadCount != b.UnreadCount {
				return a.UnreadCount > b.UnreadCount
			}
			if a.LastActivity != b.LastActivity {
				return a.LastActivity > b.LastActivity
			}
		}
		if !strings.EqualFold(a.Name, b.Name) {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return a.ID < b.ID
	})
}

// FormatRelativeTime renders a millisecond timestamp relative to now ("5m ago", "Yesterday", ...).
func FormatRelativeTime(timestamp int64, now time.Time) string {
	diff := now.Sub(time.UnixMilli(timestamp))
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	}

	days := int(diff / (24 * time.Hour))
	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return time.UnixMilli(timestamp).UTC().Format("2006-01-02")
	}
}

// TypingText renders the typing indicator line, or "" when nobody is typing.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	default:
		return strings.Join(names, ", ") + " are typing..."
	}
}
