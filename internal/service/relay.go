package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/events"
	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/observability"
	"github.com/noah-isme/runar/internal/repository"
	"github.com/noah-isme/runar/internal/transport"
)

// Pin replication modes.
const (
	PinsLocal  = "local"
	PinsShared = "shared"
)

const alertBodyLimit = 100

// RelayOptions wire a Relay to its collaborators.
type RelayOptions struct {
	Store             *ConversationStore
	Transport         transport.Transport
	Views             ViewNotifier
	Alerts            AlertSink
	Validator         *validator.Validate
	PinsMode          string
	TypingThrottle    time.Duration
	TypingIdleTimeout time.Duration
	Logger            zerolog.Logger
}

// ViewOptions select the page and optional search shown when a conversation is opened.
type ViewOptions struct {
	Page     int
	PageSize int
	Query    string
}

// Relay applies local actions to the store and fans them out, and applies events received from other sessions.
type Relay struct {
	mu        sync.Mutex
	store     *ConversationStore
	transport transport.Transport
	views     ViewNotifier
	alerts    AlertSink
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	content   *bluemonday.Policy
	plain     *bluemonday.Policy
	pinsMode  string
	typing    *typingThrottle
}

// NewRelay constructs a relay. Start must be called to receive remote events.
func NewRelay(opts RelayOptions) *Relay {
	content := bluemonday.UGCPolicy()
	content.AllowElements("br")

	views := opts.Views
	if views == nil {
		views = nopViews{}
	}
	alerts := opts.Alerts
	if alerts == nil {
		alerts = nopViews{}
	}
	validate := opts.Validator
	if validate == nil {
		validate = validator.New()
	}
	pinsMode := strings.ToLower(strings.TrimSpace(opts.PinsMode))
	if pinsMode != PinsShared {
		pinsMode = PinsLocal
	}

	return &Relay{
		store:     opts.Store,
		transport: opts.Transport,
		views:     views,
		alerts:    alerts,
		validator: validate,
		logger:    opts.Logger.With().Str("component", "relay").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/runar/internal/service/relay"),
		content:   content,
		plain:     bluemonday.StrictPolicy(),
		pinsMode:  pinsMode,
		typing:    newTypingThrottle(opts.TypingThrottle, opts.TypingIdleTimeout),
	}
}

// Start subscribes to the shared channel.
func (r *Relay) Start(ctx context.Context) error {
	if err := r.transport.Subscribe(ctx, r.handle); err != nil {
		return fmt.Errorf("subscribe relay: %w", err)
	}
	r.logger.Info().Str("user_id", r.store.UserID()).Str("role", r.store.Role()).Msg("relay started")
	return nil
}

// Close stops pending typing timers.
func (r *Relay) Close() {
	r.typing.stopAll()
}

// Store exposes the conversation store the relay mutates.
func (r *Relay) Store() *ConversationStore {
	return r.store
}

// PinsMode reports whether pins are replicated.
func (r *Relay) PinsMode() string {
	return r.pinsMode
}

func (r *Relay) emit(ctx context.Context, event events.Event, recipients []string) {
	ctx, span := r.tracer.Start(ctx, "relay.emit", trace.WithAttributes(
		attribute.String("event.type", string(event.EventType())),
		attribute.Int("event.recipients", len(recipients)),
	))
	defer span.End()

	env := events.NewEnvelope(r.store.UserID(), event)
	if err := r.transport.Emit(ctx, env, recipients); err != nil {
		span.RecordError(err)
		r.logger.Warn().Err(err).Str("type", string(env.Type)).Msg("failed to emit relay event")
		return
	}
	observability.EventsEmitted().WithLabelValues(string(env.Type)).Inc()
}

func (r *Relay) persist(ctx context.Context, keys ...string) {
	if err := r.store.Persist(ctx, keys...); err != nil {
		r.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to persist conversation state")
	}
}

func conversationType(isGroup bool) string {
	if isGroup {
		return models.ConversationGroup
	}
	return models.ConversationPrivate
}

func historySetting(isGroup bool) string {
	if isGroup {
		return repository.SettingGroupChats
	}
	return repository.SettingPrivateChats
}

func excluding(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

// participants returns the other users of a conversation the local user may act on.
func (r *Relay) participants(conversationID string, isGroup bool) ([]string, error) {
	me := r.store.UserID()
	if isGroup {
		group, ok := r.store.Group(conversationID)
		if !ok {
			return nil, ErrConversationNotFound
		}
		if !group.HasMember(me) && !r.store.IsPrivileged() {
			return nil, ErrNotMember
		}
		return excluding(group.Members, me), nil
	}

	chat, ok := r.store.PrivateChat(conversationID)
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !chat.HasUser(me) && !r.store.IsPrivileged() {
		return nil, ErrNotMember
	}
	return excluding(chat.Users, me), nil
}

func (r *Relay) buildMessage(req dto.SendMessageRequest) (models.Message, error) {
	content := strings.TrimSpace(r.content.Sanitize(req.Content))
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}

	me := r.store.UserID()
	directory := r.store.Directory()
	name := directory.Name(me)
	var avatar string
	if user, ok := directory.User(me); ok {
		avatar = user.Avatar
	}
	if r.store.IsPrivileged() {
		if speaker := strings.TrimSpace(r.plain.Sanitize(req.SpeakerName)); speaker != "" {
			name = speaker
			avatar = req.SpeakerImg
		}
	}

	return models.Message{
		ID:             newMessageID(),
		SenderID:       me,
		SenderName:     name,
		SenderImg:      avatar,
		MessageContent: content,
		Timestamp:      r.store.nowMillis(),
		ReplyToID:      req.ReplyToID,
		Mentions:       ParseMentions(content, directory),
	}, nil
}

func (r *Relay) alert(conversationID string, isGroup bool, title string, msg models.Message) {
	if r.store.IsMuted(conversationID) {
		return
	}
	body := msg.MessageContent
	if utf8.RuneCountInString(body) > alertBodyLimit {
		body = string([]rune(body)[:alertBodyLimit])
	}
	icon := msg.SenderImg
	if user, ok := r.store.Directory().User(msg.SenderID); ok && user.Avatar != "" {
		icon = user.Avatar
	}
	r.alerts.Alert(conversationID, conversationType(isGroup), dto.Alert{
		Title: title,
		Body:  body,
		Icon:  icon,
		Tag:   conversationID,
	})
}

// SendPrivateMessage stores a direct message and delivers it to the recipient. When neither party is
// privileged, a monitoring copy goes to the active gm.
func (r *Relay) SendPrivateMessage(ctx context.Context, recipientID string, req dto.SendMessageRequest) (models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "relay.SendPrivateMessage")
	defer span.End()

	me := r.store.UserID()
	recipient, ok := r.store.Directory().User(recipientID)
	if !ok || recipientID == me {
		return models.Message{}, fmt.Errorf("%w: %s", ErrUnknownUser, recipientID)
	}
	msg, err := r.buildMessage(req)
	if err != nil {
		return models.Message{}, err
	}

	key := PrivateChatKey(me, recipientID)
	r.StopTyping(ctx, key, false)

	privileged := r.store.IsPrivileged()
	r.mu.Lock()
	stored, _ := r.store.AddPrivateMessage(me, recipientID, msg)
	if privileged {
		r.store.AddIntercepted(models.InterceptedMessage{SenderID: me, RecipientID: recipientID, MessageData: stored})
	}
	r.mu.Unlock()

	r.emit(ctx, &events.PrivateMessage{RecipientID: recipientID, Message: stored}, []string{recipientID})

	if !privileged && !recipient.IsGM() {
		if gm, found := r.store.Directory().ActiveGM(me); found {
			r.emit(ctx, &events.PrivateMessage{
				RecipientID:         gm.ID,
				Message:             stored,
				IsRelay:             true,
				OriginalSenderID:    me,
				OriginalRecipientID: recipientID,
			}, []string{gm.ID})
		}
	}

	if privileged {
		r.persist(ctx, repository.SettingPrivateChats)
		r.views.RefreshMonitor()
	}
	r.views.RefreshConversation(key, models.ConversationPrivate)
	r.views.RefreshHub()
	return stored, nil
}

// SendGroupMessage stores a group message and delivers it to the other members and the active gm.
func (r *Relay) SendGroupMessage(ctx context.Context, groupID string, req dto.SendMessageRequest) (models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "relay.SendGroupMessage")
	defer span.End()

	recipients, err := r.participants(groupID, true)
	if err != nil {
		return models.Message{}, err
	}
	msg, err := r.buildMessage(req)
	if err != nil {
		return models.Message{}, err
	}

	r.StopTyping(ctx, groupID, true)

	privileged := r.store.IsPrivileged()
	r.mu.Lock()
	stored, _ := r.store.AddGroupMessage(groupID, msg)
	if privileged {
		r.store.AddIntercepted(models.InterceptedMessage{
			SenderID:    stored.SenderID,
			GroupID:     groupID,
			GroupName:   r.store.ConversationName(groupID, true),
			MessageData: stored,
		})
	}
	r.mu.Unlock()

	if !privileged {
		if gm, found := r.store.Directory().ActiveGM(r.store.UserID()); found && !containsID(recipients, gm.ID) {
			recipients = append(recipients, gm.ID)
		}
	}
	if len(recipients) > 0 {
		r.emit(ctx, &events.GroupMessage{GroupID: groupID, Message: stored}, recipients)
	}

	if privileged {
		r.persist(ctx, repository.SettingGroupChats)
		r.views.RefreshMonitor()
	}
	r.views.RefreshConversation(groupID, models.ConversationGroup)
	r.views.RefreshHub()
	return stored, nil
}

func (r *Relay) authorOf(conversationID string, isGroup bool, messageID string) error {
	msg, ok := r.store.Message(conversationID, isGroup, messageID)
	if !ok {
		return ErrMessageNotFound
	}
	if msg.SenderID != r.store.UserID() && !r.store.IsPrivileged() {
		return ErrNotAuthor
	}
	return nil
}

// EditMessage replaces the content of one of the local user's messages.
func (r *Relay) EditMessage(ctx context.Context, conversationID string, isGroup bool, messageID, content string) (models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "relay.EditMessage")
	defer span.End()

	recipients, err := r.participants(conversationID, isGroup)
	if err != nil {
		return models.Message{}, err
	}
	if err := r.authorOf(conversationID, isGroup, messageID); err != nil {
		return models.Message{}, err
	}
	content = strings.TrimSpace(r.content.Sanitize(content))
	if content == "" {
		return models.Message{}, ErrEmptyMessage
	}

	r.mu.Lock()
	updated, ok := r.store.EditMessage(conversationID, isGroup, messageID, content)
	r.mu.Unlock()
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}

	r.emit(ctx, &events.EditMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		NewContent:     content,
		EditedAt:       updated.EditedAt,
		IsGroup:        isGroup,
	}, recipients)
	r.persist(ctx, historySetting(isGroup))
	r.views.RefreshConversation(conversationID, conversationType(isGroup))
	return updated, nil
}

// DeleteMessage removes one of the local user's messages everywhere.
func (r *Relay) DeleteMessage(ctx context.Context, conversationID string, isGroup bool, messageID string) error {
	ctx, span := r.tracer.Start(ctx, "relay.DeleteMessage")
	defer span.End()

	recipients, err := r.participants(conversationID, isGroup)
	if err != nil {
		return err
	}
	if err := r.authorOf(conversationID, isGroup, messageID); err != nil {
		return err
	}

	r.mu.Lock()
	ok := r.store.DeleteMessage(conversationID, isGroup, messageID)
	r.mu.Unlock()
	if !ok {
		return ErrMessageNotFound
	}

	r.emit(ctx, &events.DeleteMessage{ConversationID: conversationID, MessageID: messageID, IsGroup: isGroup}, recipients)
	r.persist(ctx, historySetting(isGroup))
	r.views.RefreshConversation(conversationID, conversationType(isGroup))
	return nil
}

// ToggleReaction flips the local user's emoji reaction on a message.
func (r *Relay) ToggleReaction(ctx context.Context, conversationID string, isGroup bool, messageID, emoji string) error {
	ctx, span := r.tracer.Start(ctx, "relay.ToggleReaction")
	defer span.End()

	recipients, err := r.participants(conversationID, isGroup)
	if err != nil {
		return err
	}
	me := r.store.UserID()

	r.mu.Lock()
	ok := r.store.ToggleReaction(conversationID, isGroup, messageID, emoji, me)
	r.mu.Unlock()
	if !ok {
		return ErrMessageNotFound
	}

	r.emit(ctx, &events.AddReaction{
		ConversationID: conversationID,
		MessageID:      messageID,
		Emoji:          emoji,
		UserID:         me,
		IsGroup:        isGroup,
	}, recipients)
	r.persist(ctx, historySetting(isGroup))
	r.views.RefreshConversation(conversationID, conversationType(isGroup))
	return nil
}

// TogglePin flips a message's pin for the local user and announces it to the other participants.
func (r *Relay) TogglePin(ctx context.Context, conversationID string, isGroup bool, messageID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "relay.TogglePin")
	defer span.End()

	recipients, err := r.participants(conversationID, isGroup)
	if err != nil {
		return false, err
	}
	if _, ok := r.store.Message(conversationID, isGroup, messageID); !ok {
		return false, ErrMessageNotFound
	}

	r.mu.Lock()
	pinned := r.store.TogglePin(conversationID, messageID)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingPinnedMessages)
	r.emit(ctx, &events.PinMessage{
		ConversationID: conversationID,
		MessageID:      messageID,
		IsPinned:       pinned,
		IsGroup:        isGroup,
	}, recipients)
	r.views.RefreshConversation(conversationID, conversationType(isGroup))
	return pinned, nil
}

// ToggleFavorite flips the favorite flag of a conversation. It is never broadcast.
func (r *Relay) ToggleFavorite(ctx context.Context, conversationID string) bool {
	r.mu.Lock()
	on := r.store.ToggleFavorite(conversationID)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingFavorites)
	r.views.RefreshHub()
	return on
}

// ToggleMute flips the muted flag of a conversation. It is never broadcast.
func (r *Relay) ToggleMute(ctx context.Context, conversationID string) bool {
	r.mu.Lock()
	on := r.store.ToggleMute(conversationID)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingMuted)
	r.views.RefreshHub()
	return on
}

// CreateGroup creates a group of the local user plus members and announces it to every session.
// An empty name becomes "Group: " followed by the selected members' names.
func (r *Relay) CreateGroup(ctx context.Context, name string, members []string) (models.GroupChat, error) {
	ctx, span := r.tracer.Start(ctx, "relay.CreateGroup")
	defer span.End()

	me := r.store.UserID()
	directory := r.store.Directory()
	selected := excluding(dedupeIDs(members), me)
	if len(selected) == 0 {
		return models.GroupChat{}, fmt.Errorf("%w: at least one other member is required", ErrInvalidGroup)
	}
	names := make([]string, 0, len(selected))
	for _, id := range selected {
		user, ok := directory.User(id)
		if !ok {
			return models.GroupChat{}, fmt.Errorf("%w: %s", ErrUnknownUser, id)
		}
		names = append(names, user.Name)
	}

	name = strings.TrimSpace(r.plain.Sanitize(name))
	if name == "" {
		name = "Group: " + strings.Join(names, ", ")
	}

	r.mu.Lock()
	group := r.store.CreateGroup(name, append([]string{me}, selected...), me)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingGroupChats)
	r.emit(ctx, &events.GroupCreate{Group: group}, nil)
	r.views.RefreshHub()
	return group, nil
}

// RenameGroup renames a group the local user belongs to.
func (r *Relay) RenameGroup(ctx context.Context, groupID, name string) error {
	ctx, span := r.tracer.Start(ctx, "relay.RenameGroup")
	defer span.End()

	if _, err := r.participants(groupID, true); err != nil {
		return err
	}
	name = strings.TrimSpace(r.plain.Sanitize(name))
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}

	r.mu.Lock()
	ok := r.store.RenameGroup(groupID, name)
	r.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}

	r.persist(ctx, repository.SettingGroupChats)
	r.emit(ctx, &events.RenameGroup{GroupID: groupID, NewName: name}, nil)
	r.views.RefreshConversation(groupID, models.ConversationGroup)
	r.views.RefreshHub()
	return nil
}

// AddGroupMember adds a user to a group. The new member also receives the full group.
func (r *Relay) AddGroupMember(ctx context.Context, groupID, userID string) error {
	ctx, span := r.tracer.Start(ctx, "relay.AddGroupMember")
	defer span.End()

	if !r.store.IsPrivileged() {
		return ErrNotPrivileged
	}
	if _, ok := r.store.Directory().User(userID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if _, ok := r.store.Group(groupID); !ok {
		return ErrConversationNotFound
	}

	r.mu.Lock()
	added := r.store.AddGroupMember(groupID, userID)
	group, _ := r.store.Group(groupID)
	r.mu.Unlock()
	if !added {
		return nil
	}

	r.persist(ctx, repository.SettingGroupChats)
	r.emit(ctx, &events.AddGroupMember{GroupID: groupID, UserID: userID}, nil)
	if userID != r.store.UserID() {
		r.emit(ctx, &events.GroupCreate{Group: group}, []string{userID})
	}
	r.views.RefreshConversation(groupID, models.ConversationGroup)
	r.views.RefreshHub()
	return nil
}

// RemoveGroupMember removes a user from a group.
func (r *Relay) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	ctx, span := r.tracer.Start(ctx, "relay.RemoveGroupMember")
	defer span.End()

	if !r.store.IsPrivileged() {
		return ErrNotPrivileged
	}
	if _, ok := r.store.Group(groupID); !ok {
		return ErrConversationNotFound
	}

	r.mu.Lock()
	removed := r.store.RemoveGroupMember(groupID, userID)
	r.mu.Unlock()
	if !removed {
		return ErrNotMember
	}

	r.persist(ctx, repository.SettingGroupChats)
	r.emit(ctx, &events.RemoveGroupMember{GroupID: groupID, UserID: userID}, nil)
	if userID == r.store.UserID() {
		r.views.CloseConversation(groupID, models.ConversationGroup)
	} else {
		r.views.RefreshConversation(groupID, models.ConversationGroup)
	}
	r.views.RefreshHub()
	return nil
}

// DeleteGroup removes a group from every session.
func (r *Relay) DeleteGroup(ctx context.Context, groupID string) error {
	ctx, span := r.tracer.Start(ctx, "relay.DeleteGroup")
	defer span.End()

	if !r.store.IsPrivileged() {
		return ErrNotPrivileged
	}

	r.mu.Lock()
	ok := r.store.DeleteGroup(groupID)
	r.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}

	r.persist(ctx,
		repository.SettingGroupChats,
		repository.SettingUnreadData,
		repository.SettingFavorites,
		repository.SettingMuted,
		repository.SettingPinnedMessages,
	)
	r.emit(ctx, &events.GroupDelete{GroupID: groupID}, nil)
	r.views.CloseConversation(groupID, models.ConversationGroup)
	r.views.RefreshHub()
	return nil
}

// ClearConversation truncates a conversation's history in every session.
func (r *Relay) ClearConversation(ctx context.Context, conversationID string, isGroup bool) error {
	ctx, span := r.tracer.Start(ctx, "relay.ClearConversation")
	defer span.End()

	if !r.store.IsPrivileged() {
		return ErrNotPrivileged
	}

	r.mu.Lock()
	ok := r.store.ClearHistory(conversationID, isGroup)
	r.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}

	r.persist(ctx, historySetting(isGroup))
	r.emit(ctx, &events.ClearConversation{ConversationID: conversationID, IsGroup: isGroup}, nil)
	r.views.RefreshConversation(conversationID, conversationType(isGroup))
	return nil
}

// UpdateBackground applies the local user's background and, when shared, publishes it.
func (r *Relay) UpdateBackground(ctx context.Context, path string, shared bool) error {
	ctx, span := r.tracer.Start(ctx, "relay.UpdateBackground")
	defer span.End()

	me := r.store.UserID()
	path = strings.TrimSpace(r.plain.Sanitize(path))
	published := ""
	if shared {
		published = path
	}

	r.mu.Lock()
	r.store.SetSharedBackground(me, published)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingSharedBackgrounds)
	r.emit(ctx, &events.BackgroundUpdate{UserID: me, Background: published, Shared: shared}, nil)
	r.views.ApplyBackground(me, path)
	return nil
}

// UpdateTheme switches the global theme for every session.
func (r *Relay) UpdateTheme(ctx context.Context, theme string) error {
	ctx, span := r.tracer.Start(ctx, "relay.UpdateTheme")
	defer span.End()

	if !r.store.IsPrivileged() {
		return ErrNotPrivileged
	}
	theme = strings.TrimSpace(r.plain.Sanitize(theme))
	if theme == "" {
		return ErrInvalidTheme
	}

	r.mu.Lock()
	r.store.SetTheme(theme)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingGlobalTheme)
	r.emit(ctx, &events.ThemeUpdate{Theme: theme}, nil)
	r.views.ApplyTheme(theme)
	return nil
}

// OpenPrivate opens (creating if needed) the chat with peerID and marks it read.
func (r *Relay) OpenPrivate(ctx context.Context, peerID string, opts ViewOptions) (dto.ConversationView, error) {
	me := r.store.UserID()
	if _, ok := r.store.Directory().User(peerID); !ok || peerID == me {
		return dto.ConversationView{}, fmt.Errorf("%w: %s", ErrUnknownUser, peerID)
	}

	r.mu.Lock()
	key := r.store.OpenPrivateChat(me, peerID)
	r.store.MarkAsRead(key)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingUnreadData)
	r.views.RefreshHub()
	return r.view(key, false, r.store.Directory().Name(peerID), []string{me, peerID}, opts), nil
}

// OpenGroup opens a group the local user belongs to and marks it read. Privileged sessions may open any group.
func (r *Relay) OpenGroup(ctx context.Context, groupID string, opts ViewOptions) (dto.ConversationView, error) {
	group, ok := r.store.Group(groupID)
	if !ok {
		return dto.ConversationView{}, ErrConversationNotFound
	}
	if !group.HasMember(r.store.UserID()) && !r.store.IsPrivileged() {
		return dto.ConversationView{}, ErrNotMember
	}

	r.mu.Lock()
	r.store.MarkAsRead(groupID)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingUnreadData)
	r.views.RefreshHub()
	return r.view(groupID, true, group.Name, group.Members, opts), nil
}

func (r *Relay) view(conversationID string, isGroup bool, name string, members []string, opts ViewOptions) dto.ConversationView {
	typing := r.store.TypingUsers(conversationID)
	view := dto.ConversationView{
		ID:          conversationID,
		Type:        conversationType(isGroup),
		Name:        name,
		Members:     append([]string{}, members...),
		Page:        r.store.MessagesPaginated(conversationID, isGroup, opts.Page, opts.PageSize),
		TypingUsers: typing,
		TypingText:  TypingText(typing),
		Pinned:      r.store.PinnedMessages(conversationID),
		IsFavorite:  r.store.IsFavorite(conversationID),
		IsMuted:     r.store.IsMuted(conversationID),
		Background:  r.store.SharedBackground(r.store.UserID()),
	}
	if query := strings.TrimSpace(opts.Query); query != "" {
		view.Search = r.store.SearchMessages(conversationID, isGroup, query)
	}
	return view
}

type nopViews struct{}

func (nopViews) RefreshConversation(string, string) {}
func (nopViews) CloseConversation(string, string) {}
func (nopViews) RefreshTyping(string, string) {}
func (nopViews) RefreshMonitor() {}
func (nopViews) RefreshHub() {}
func (nopViews) ApplyBackground(string, string) {}
func (nopViews) ApplyTheme(string) {}
func (nopViews) Alert(string, string, dto.Alert) {}
