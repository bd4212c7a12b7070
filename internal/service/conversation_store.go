package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/observability"
	"github.com/noah-isme/runar/internal/repository"
)

const (
	defaultMonitorCapacity  = 50
	defaultTypingStaleAfter = 5 * time.Second
	defaultPageSize         = 20
)

// canonicalSettings are only written by privileged sessions.
var canonicalSettings = map[string]struct{}{
	repository.SettingPrivateChats:      {},
	repository.SettingGroupChats:        {},
	repository.SettingSharedBackgrounds: {},
	repository.SettingGlobalTheme:       {},
}

// StoreOptions configure a ConversationStore.
type StoreOptions struct {
	UserID           string
	Role             string
	Directory        *Directory
	Settings         repository.SettingsRepository
	MonitorCapacity  int
	TypingStaleAfter time.Duration
	Clock            func() time.Time
	Logger           zerolog.Logger
}

// ConversationStore holds the session's copy of every conversation and its ancillary state.
type ConversationStore struct {
	mu               sync.RWMutex
	userID           string
	role             string
	directory        *Directory
	settings         repository.SettingsRepository
	logger           zerolog.Logger
	clock            func() time.Time
	typingStaleAfter time.Duration
	monitorCapacity  int

	privateChats map[string]*models.PrivateChat
	groupChats   map[string]*models.GroupChat
	unread       map[string]int
	lastRead     map[string]int64
	lastActivity map[string]int64
	typing       map[string]map[string]int64
	favorites    []string
	muted        []string
	pinned       map[string][]string
	intercepted  []models.InterceptedMessage
	backgrounds  map[string]string
	theme        string
}

// NewConversationStore constructs an empty store for the session user.
func NewConversationStore(opts StoreOptions) *ConversationStore {
	directory := opts.Directory
	if directory == nil {
		directory = NewDirectory(nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	monitorCapacity := opts.MonitorCapacity
	if monitorCapacity <= 0 {
		monitorCapacity = defaultMonitorCapacity
	}
	staleAfter := opts.TypingStaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultTypingStaleAfter
	}

	return &ConversationStore{
		userID:           opts.UserID,
		role:             opts.Role,
		directory:        directory,
		settings:         opts.Settings,
		logger:           opts.Logger.With().Str("component", "conversation_store").Logger(),
		clock:            clock,
		typingStaleAfter: staleAfter,
		monitorCapacity:  monitorCapacity,
		privateChats:     make(map[string]*models.PrivateChat),
		groupChats:       make(map[string]*models.GroupChat),
		unread:           make(map[string]int),
		lastRead:         make(map[string]int64),
		lastActivity:     make(map[string]int64),
		typing:           make(map[string]map[string]int64),
		pinned:           make(map[string][]string),
		backgrounds:      make(map[string]string),
	}
}

// UserID returns the session user.
func (s *ConversationStore) UserID() string { return s.userID }

// Role returns the session role.
func (s *ConversationStore) Role() string { return s.role }

// IsPrivileged reports whether the session carries the gm role.
func (s *ConversationStore) IsPrivileged() bool { return s.role == models.RoleGM }

// Directory returns the roster used to resolve names.
func (s *ConversationStore) Directory() *Directory { return s.directory }

func (s *ConversationStore) nowMillis() int64 {
	return s.clock().UnixMilli()
}

// PrivateChatKey derives the order-independent key for a two-party conversation.
func PrivateChatKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

func newMessageID() string {
	return uuid.NewString()
}

// OpenPrivateChat returns the key of the chat between a and b, creating an empty one if needed.
func (s *ConversationStore) OpenPrivateChat(a, b string) string {
	key := PrivateChatKey(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePrivateLocked(key, a, b)
	return key
}

func (s *ConversationStore) ensurePrivateLocked(key, a, b string) *models.PrivateChat {
	chat, ok := s.privateChats[key]
	if !ok {
		chat = &models.PrivateChat{Users: []string{a, b}, History: []models.Message{}}
		s.privateChats[key] = chat
	}
	return chat
}

// PrivateChat returns a copy of a private conversation.
func (s *ConversationStore) PrivateChat(key string) (models.PrivateChat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.privateChats[key]
	if !ok {
		return models.PrivateChat{}, false
	}
	return models.PrivateChat{Users: append([]string(nil), chat.Users...), History: cloneHistory(chat.History)}, true
}

// AddPrivateMessage appends msg to the chat between a and b, creating the chat when absent.
// It reports the stored message and whether it was inserted.
func (s *ConversationStore) AddPrivateMessage(a, b string, msg models.Message) (models.Message, bool) {
	key := PrivateChatKey(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()

	chat := s.ensurePrivateLocked(key, a, b)
	return s.appendLocked(&chat.History, key, models.ConversationPrivate, msg)
}

// AddGroupMessage appends msg to an existing group. Unknown groups are ignored.
func (s *ConversationStore) AddGroupMessage(groupID string, msg models.Message) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groupChats[groupID]
	if !ok {
		s.logger.Warn().Str("group_id", groupID).Msg("message for unknown group ignored")
		return msg, false
	}
	return s.appendLocked(&group.History, groupID, models.ConversationGroup, msg)
}

// AddMessage appends msg to an existing conversation.
func (s *ConversationStore) AddMessage(conversationID string, isGroup bool, msg models.Message) (models.Message, bool) {
	if isGroup {
		return s.AddGroupMessage(conversationID, msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.privateChats[conversationID]
	if !ok {
		return msg, false
	}
	return s.appendLocked(&chat.History, conversationID, models.ConversationPrivate, msg)
}

func (s *ConversationStore) appendLocked(history *[]models.Message, conversationID, kind string, msg models.Message) (models.Message, bool) {
	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	for _, existing := range *history {
		if existing.ID == msg.ID {
			return existing.Clone(), false
		}
	}

	candidate := make([]models.Message, 0, len(*history)+1)
	candidate = append(candidate, *history...)
	candidate = append(candidate, msg.Clone())
	*history = sanitizeHistory(candidate)

	for _, stored := range *history {
		if stored.ID == msg.ID {
			s.lastActivity[conversationID] = s.nowMillis()
			observability.MessagesStored().WithLabelValues(kind).Inc()
			return stored.Clone(), true
		}
	}
	return msg, false
}

// sanitizeHistory drops blank entries and duplicates by id or by sender, timestamp and content.
// The first occurrence wins and order is preserved.
func sanitizeHistory(history []models.Message) []models.Message {
	seenIDs := make(map[string]struct{}, len(history))
	seenSignatures := make(map[string]struct{}, len(history))
	out := make([]models.Message, 0, len(history))

	for _, msg := range history {
		if isBlankMessage(msg) {
			continue
		}
		if msg.ID == "" {
			msg.ID = newMessageID()
		}
		if _, dup := seenIDs[msg.ID]; dup {
			continue
		}

		signature := ""
		if msg.SenderID != "" && msg.Timestamp != 0 {
			signature = fmt.Sprintf("%s|%d|%s", msg.SenderID, msg.Timestamp, msg.MessageContent)
		}
		if signature != "" {
			if _, dup := seenSignatures[signature]; dup {
				continue
			}
			seenSignatures[signature] = struct{}{}
		}

		seenIDs[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return out
}

func isBlankMessage(msg models.Message) bool {
	return msg.ID == "" && msg.SenderID == "" && msg.Timestamp == 0 && msg.MessageContent == ""
}

func cloneHistory(history []models.Message) []models.Message {
	out := make([]models.Message, len(history))
	for i, msg := range history {
		out[i] = msg.Clone()
	}
	return out
}

func (s *ConversationStore) historyLocked(conversationID string, isGroup bool) *[]models.Message {
	if isGroup {
		if group, ok := s.groupChats[conversationID]; ok {
			return &group.History
		}
		return nil
	}
	if chat, ok := s.privateChats[conversationID]; ok {
		return &chat.History
	}
	return nil
}

func findMessage(history []models.Message, messageID string) int {
	for i := range history {
		if history[i].ID == messageID {
			return i
		}
	}
	return -1
}

// Message returns a copy of a single message.
func (s *ConversationStore) Message(conversationID string, isGroup bool, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return models.Message{}, false
	}
	idx := findMessage(*history, messageID)
	if idx < 0 {
		return models.Message{}, false
	}
	return (*history)[idx].Clone(), true
}

// EditMessage replaces a message's content, marking it edited now. The timestamp is left untouched.
func (s *ConversationStore) EditMessage(conversationID string, isGroup bool, messageID, content string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return models.Message{}, false
	}
	idx := findMessage(*history, messageID)
	if idx < 0 {
		return models.Message{}, false
	}

	msg := &(*history)[idx]
	editedAt := s.nowMillis()
	if editedAt <= msg.EditedAt {
		editedAt = msg.EditedAt + 1
	}
	msg.MessageContent = content
	msg.Edited = true
	msg.EditedAt = editedAt
	msg.Version++
	return msg.Clone(), true
}

// ApplyEdit applies a replicated edit when it is not older than the last edit seen for the message.
// Equal edit times are broken by content so every session converges on the same text.
func (s *ConversationStore) ApplyEdit(conversationID string, isGroup bool, messageID, content string, editedAt int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return false
	}
	idx := findMessage(*history, messageID)
	if idx < 0 {
		return false
	}

	msg := &(*history)[idx]
	if editedAt == 0 {
		editedAt = s.nowMillis()
	}
	if editedAt < msg.EditedAt {
		return false
	}
	if editedAt == msg.EditedAt && msg.Edited && content <= msg.MessageContent {
		return content == msg.MessageContent
	}

	msg.MessageContent = content
	msg.Edited = true
	msg.EditedAt = editedAt
	msg.Version++
	return true
}

// DeleteMessage removes a message by id.
func (s *ConversationStore) DeleteMessage(conversationID string, isGroup bool, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return false
	}
	idx := findMessage(*history, messageID)
	if idx < 0 {
		return false
	}

	next := make([]models.Message, 0, len(*history)-1)
	next = append(next, (*history)[:idx]...)
	next = append(next, (*history)[idx+1:]...)
	*history = next
	return true
}

// ToggleReaction adds userID's emoji reaction, or removes it if already present.
func (s *ConversationStore) ToggleReaction(conversationID string, isGroup bool, messageID, emoji, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return false
	}
	idx := findMessage(*history, messageID)
	if idx < 0 {
		return false
	}

	msg := &(*history)[idx]
	if msg.Reactions == nil {
		msg.Reactions = make(models.Reactions)
	}
	users := msg.Reactions[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(msg.Reactions, emoji)
			} else {
				msg.Reactions[emoji] = users
			}
			if len(msg.Reactions) == 0 {
				msg.Reactions = nil
			}
			return true
		}
	}
	msg.Reactions[emoji] = append(users, userID)
	return true
}

// ClearHistory truncates a conversation to an empty history.
func (s *ConversationStore) ClearHistory(conversationID string, isGroup bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.historyLocked(conversationID, isGroup)
	if history == nil {
		return false
	}
	*history = []models.Message{}
	return true
}

// Load replaces in-memory state with the persisted settings, sanitising every history.
func (s *ConversationStore) Load(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}

	var (
		privateChats map[string]models.PrivateChat
		groupChats   map[string]models.GroupChat
		unreadData   models.UnreadData
		favorites    []string
		muted        []string
		pinned       map[string][]string
		backgrounds  map[string]string
		theme        string
	)

	targets := []struct {
		key string
		out interface{}
	}{
		{repository.SettingPrivateChats, &privateChats},
		{repository.SettingGroupChats, &groupChats},
		{repository.SettingUnreadData, &unreadData},
		{repository.SettingFavorites, &favorites},
		{repository.SettingMuted, &muted},
		{repository.SettingPinnedMessages, &pinned},
		{repository.SettingSharedBackgrounds, &backgrounds},
		{repository.SettingGlobalTheme, &theme},
	}
	for _, target := range targets {
		if _, err := s.settings.Get(ctx, target.key, target.out); err != nil {
			return fmt.Errorf("load %s: %w", target.key, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.privateChats = make(map[string]*models.PrivateChat, len(privateChats))
	for key, chat := range privateChats {
		chat := chat
		chat.History = sanitizeHistory(chat.History)
		s.privateChats[key] = &chat
	}

	s.groupChats = make(map[string]*models.GroupChat, len(groupChats))
	for id, group := range groupChats {
		group := group
		if group.ID == "" {
			group.ID = id
		}
		group.Members = dedupeIDs(group.Members)
		group.History = sanitizeHistory(group.History)
		s.groupChats[id] = &group
	}

	s.unread = make(map[string]int, len(unreadData.Counts))
	for id, count := range unreadData.Counts {
		if count > 0 {
			s.unread[id] = count
		}
	}
	s.lastRead = make(map[string]int64, len(unreadData.LastRead))
	for id, ts := range unreadData.LastRead {
		s.lastRead[id] = ts
	}

	s.favorites = dedupeIDs(favorites)
	s.muted = dedupeIDs(muted)
	s.pinned = make(map[string][]string, len(pinned))
	for id, pins := range pinned {
		if pins = dedupeIDs(pins); len(pins) > 0 {
			s.pinned[id] = pins
		}
	}
	s.backgrounds = make(map[string]string, len(backgrounds))
	for userID, path := range backgrounds {
		if path != "" {
			s.backgrounds[userID] = path
		}
	}
	s.theme = theme

	s.logger.Info().
		Int("private_chats", len(s.privateChats)).
		Int("group_chats", len(s.groupChats)).
		Msg("conversation state loaded")
	return nil
}

// Persist writes the named settings. Canonical settings are skipped unless the session is privileged.
func (s *ConversationStore) Persist(ctx context.Context, keys ...string) error {
	if s.settings == nil {
		return nil
	}

	var errs []error
	for _, key := range dedupeIDs(keys) {
		if _, canonical := canonicalSettings[key]; canonical && !s.IsPrivileged() {
			continue
		}

		value, err := s.snapshot(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.settings.Set(ctx, key, value); err != nil {
			observability.SettingsWrites().WithLabelValues(key, "error").Inc()
			errs = append(errs, fmt.Errorf("persist %s: %w", key, err))
			continue
		}
		observability.SettingsWrites().WithLabelValues(key, "ok").Inc()
	}
	return errors.Join(errs...)
}

func (s *ConversationStore) snapshot(key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch key {
	case repository.SettingPrivateChats:
		out := make(map[string]models.PrivateChat, len(s.privateChats))
		for id, chat := range s.privateChats {
			out[id] = models.PrivateChat{Users: append([]string(nil), chat.Users...), History: cloneHistory(chat.History)}
		}
		return out, nil
	case repository.SettingGroupChats:
		out := make(map[string]models.GroupChat, len(s.groupChats))
		for id, group := range s.groupChats {
			out[id] = cloneGroup(group)
		}
		return out, nil
	case repository.SettingUnreadData:
		data := models.UnreadData{
			Counts:   make(map[string]int, len(s.unread)),
			LastRead: make(map[string]int64, len(s.lastRead)),
		}
		for id, count := range s.unread {
			data.Counts[id] = count
		}
		for id, ts := range s.lastRead {
			data.LastRead[id] = ts
		}
		return data, nil
	case repository.SettingFavorites:
		return append([]string{}, s.favorites...), nil
	case repository.SettingMuted:
		return append([]string{}, s.muted...), nil
	case repository.SettingPinnedMessages:
		out := make(map[string][]string, len(s.pinned))
		for id, pins := range s.pinned {
			out[id] = append([]string(nil), pins...)
		}
		return out, nil
	case repository.SettingSharedBackgrounds:
		out := make(map[string]string, len(s.backgrounds))
		for userID, path := range s.backgrounds {
			out[userID] = path
		}
		return out, nil
	case repository.SettingGlobalTheme:
		return s.theme, nil
	default:
		return nil, fmt.Errorf("unknown setting %q", key)
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
