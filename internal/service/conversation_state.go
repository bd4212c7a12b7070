package service

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/observability"
)

// SetTyping records or clears userID's typing mark and reports whether the typing state flipped.
func (s *ConversationStore) SetTyping(conversationID, userID string, typing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.typing[conversationID]
	if !ok {
		if !typing {
			return false
		}
		entries = make(map[string]int64)
		s.typing[conversationID] = entries
	}

	_, already := entries[userID]
	if typing {
		entries[userID] = s.nowMillis()
		return !already
	}

	delete(entries, userID)
	if len(entries) == 0 {
		delete(s.typing, conversationID)
	}
	return already
}

// TypingUsers returns display names of users currently typing, pruning stale marks as it reads.
func (s *ConversationStore) TypingUsers(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.typing[conversationID]
	if !ok {
		return []string{}
	}

	now := s.nowMillis()
	stale := s.typingStaleAfter.Milliseconds()
	names := make([]string, 0, len(entries))
	for userID, ts := range entries {
		if now-ts > stale {
			delete(entries, userID)
			continue
		}
		if user, found := s.directory.User(userID); found {
			names = append(names, user.Name)
		}
	}
	if len(entries) == 0 {
		delete(s.typing, conversationID)
	}

	sort.Strings(names)
	return names
}

// MarkAsRead zeroes the unread counter and stamps the read time.
func (s *ConversationStore) MarkAsRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.unread, conversationID)
	s.lastRead[conversationID] = s.nowMillis()
}

// IncrementUnread bumps the unread counter and returns the new value.
func (s *ConversationStore) IncrementUnread(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unread[conversationID]++
	return s.unread[conversationID]
}

// UnreadCount returns the unread counter for a conversation.
func (s *ConversationStore) UnreadCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[conversationID]
}

// TotalUnread sums every tracked counter.
func (s *ConversationStore) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, count := range s.unread {
		total += count
	}
	return total
}

// LastRead returns when the conversation was last marked read, or zero.
func (s *ConversationStore) LastRead(conversationID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRead[conversationID]
}

// LastActivity returns when a message was last stored in the conversation, or zero.
func (s *ConversationStore) LastActivity(conversationID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity[conversationID]
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (s *ConversationStore) ToggleFavorite(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var on bool
	s.favorites, on = toggleID(s.favorites, conversationID)
	return on
}

// IsFavorite reports the favorite flag.
func (s *ConversationStore) IsFavorite(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsID(s.favorites, conversationID)
}

// ToggleMute flips the muted flag and returns the new state.
func (s *ConversationStore) ToggleMute(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var on bool
	s.muted, on = toggleID(s.muted, conversationID)
	return on
}

// IsMuted reports the muted flag.
func (s *ConversationStore) IsMuted(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsID(s.muted, conversationID)
}

// TogglePin flips a message's pin and returns the new state.
func (s *ConversationStore) TogglePin(conversationID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins, on := toggleID(s.pinned[conversationID], messageID)
	s.setPinsLocked(conversationID, pins)
	return on
}

// SetPinned forces a message's pin state and reports whether it changed.
func (s *ConversationStore) SetPinned(conversationID, messageID string, pinned bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pins := s.pinned[conversationID]
	if containsID(pins, messageID) == pinned {
		return false
	}
	pins, _ = toggleID(pins, messageID)
	s.setPinsLocked(conversationID, pins)
	return true
}

func (s *ConversationStore) setPinsLocked(conversationID string, pins []string) {
	if len(pins) == 0 {
		delete(s.pinned, conversationID)
		return
	}
	s.pinned[conversationID] = pins
}

// IsPinned reports whether a message is pinned.
func (s *ConversationStore) IsPinned(conversationID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsID(s.pinned[conversationID], messageID)
}

// PinnedMessages lists pinned message ids in pin order.
func (s *ConversationStore) PinnedMessages(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.pinned[conversationID]...)
}

// AddIntercepted appends a monitor entry, evicting the oldest beyond capacity.
func (s *ConversationStore) AddIntercepted(entry models.InterceptedMessage) models.InterceptedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CapturedAt = s.nowMillis()
	entry.MessageData = entry.MessageData.Clone()

	s.intercepted = append(s.intercepted, entry)
	if overflow := len(s.intercepted) - s.monitorCapacity; overflow > 0 {
		s.intercepted = append([]models.InterceptedMessage(nil), s.intercepted[overflow:]...)
	}
	observability.MonitorBufferSize().Set(float64(len(s.intercepted)))
	return entry
}

// Intercepted returns the monitor buffer, oldest first.
func (s *ConversationStore) Intercepted() []models.InterceptedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.InterceptedMessage, len(s.intercepted))
	for i, entry := range s.intercepted {
		entry.MessageData = entry.MessageData.Clone()
		out[i] = entry
	}
	return out
}

// SetSharedBackground stores a user's shared background. An empty path withdraws it.
func (s *ConversationStore) SetSharedBackground(userID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path == "" {
		delete(s.backgrounds, userID)
		return
	}
	s.backgrounds[userID] = path
}

// SharedBackground returns a user's shared background.
func (s *ConversationStore) SharedBackground(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backgrounds[userID]
}

// SharedBackgrounds returns every shared background by user id.
func (s *ConversationStore) SharedBackgrounds() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.backgrounds))
	for userID, path := range s.backgrounds {
		out[userID] = path
	}
	return out
}

// SetTheme sets the global theme.
func (s *ConversationStore) SetTheme(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
}

// Theme returns the global theme.
func (s *ConversationStore) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

func toggleID(ids []string, id string) ([]string, bool) {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...), false
		}
	}
	return append(ids, id), true
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
