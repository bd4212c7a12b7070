package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/runar/internal/events"
	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/observability"
	"github.com/noah-isme/runar/internal/repository"
)

// Outcomes recorded for received events.
const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
	outcomeEcho    = "echo"
	outcomeInvalid = "invalid"
)

// handle applies an envelope received from another session.
func (r *Relay) handle(env events.Envelope) {
	ctx, span := r.tracer.Start(context.Background(), "relay.apply", trace.WithAttributes(
		attribute.String("event.type", string(env.Type)),
		attribute.String("event.sender", env.SenderID),
	))
	defer span.End()

	outcome := r.apply(ctx, env)
	span.SetAttributes(attribute.String("event.outcome", outcome))
	observability.EventsReceived().WithLabelValues(string(env.Type), outcome).Inc()
}

func (r *Relay) apply(ctx context.Context, env events.Envelope) string {
	if env.Event == nil {
		return outcomeInvalid
	}
	if env.SenderID == r.store.UserID() {
		return outcomeEcho
	}
	if err := r.validator.Struct(env.Event); err != nil {
		r.logger.Warn().Err(err).Str("type", string(env.Type)).Str("sender_id", env.SenderID).Msg("invalid relay payload")
		return outcomeInvalid
	}
	// Traffic from a session means its user is connected.
	r.store.Directory().SetActive(env.SenderID, true)

	switch event := env.Event.(type) {
	case *events.PrivateMessage:
		return r.onPrivateMessage(ctx, env.SenderID, event)
	case *events.GroupMessage:
		return r.onGroupMessage(ctx, env.SenderID, event)
	case *events.Typing:
		return r.onTyping(env.SenderID, event)
	case *events.EditMessage:
		return r.onEditMessage(ctx, env.SenderID, event)
	case *events.DeleteMessage:
		return r.onDeleteMessage(ctx, env.SenderID, event)
	case *events.AddReaction:
		return r.onAddReaction(ctx, env.SenderID, event)
	case *events.PinMessage:
		return r.onPinMessage(ctx, event)
	case *events.RenameGroup:
		return r.onRenameGroup(ctx, event)
	case *events.AddGroupMember:
		return r.onAddGroupMember(ctx, env.SenderID, event)
	case *events.RemoveGroupMember:
		return r.onRemoveGroupMember(ctx, env.SenderID, event)
	case *events.ClearConversation:
		return r.onClearConversation(ctx, env.SenderID, event)
	case *events.GroupCreate:
		return r.onGroupCreate(ctx, event)
	case *events.GroupDelete:
		return r.onGroupDelete(ctx, env.SenderID, event)
	case *events.BackgroundUpdate:
		return r.onBackgroundUpdate(ctx, env.SenderID, event)
	case *events.ThemeUpdate:
		return r.onThemeUpdate(ctx, env.SenderID, event)
	default:
		return outcomeInvalid
	}
}

// fromGM reports whether senderID holds the gm role, logging the rejected event otherwise.
func (r *Relay) fromGM(senderID string, kind events.Type) bool {
	if r.store.Directory().IsGM(senderID) {
		return true
	}
	r.logger.Warn().Str("sender_id", senderID).Str("type", string(kind)).Msg("gm-only event from non-gm ignored")
	return false
}

// mayAlter reports whether senderID may edit or delete the message: its author or a gm.
func (r *Relay) mayAlter(senderID, conversationID string, isGroup bool, messageID string) bool {
	msg, ok := r.store.Message(conversationID, isGroup, messageID)
	if !ok {
		return false
	}
	if msg.SenderID == senderID || r.store.Directory().IsGM(senderID) {
		return true
	}
	r.logger.Warn().Str("sender_id", senderID).Str("message_id", messageID).Msg("change to another user's message ignored")
	return false
}

func (r *Relay) onPrivateMessage(ctx context.Context, senderID string, event *events.PrivateMessage) string {
	me := r.store.UserID()
	msg := event.Message
	if msg.SenderID != senderID || (event.IsRelay && event.OriginalSenderID != senderID) {
		return outcomeIgnored
	}
	if event.RecipientID != me || msg.SenderID == me {
		return outcomeIgnored
	}
	privileged := r.store.IsPrivileged()

	if event.IsRelay {
		if !privileged {
			return outcomeIgnored
		}
		r.mu.Lock()
		r.store.AddIntercepted(models.InterceptedMessage{
			SenderID:    event.OriginalSenderID,
			RecipientID: event.OriginalRecipientID,
			MessageData: msg,
		})
		r.mu.Unlock()
		r.views.RefreshMonitor()
		return outcomeApplied
	}

	key := PrivateChatKey(msg.SenderID, me)
	r.mu.Lock()
	stored, inserted := r.store.AddPrivateMessage(msg.SenderID, me, msg)
	if inserted {
		if privileged {
			r.store.AddIntercepted(models.InterceptedMessage{SenderID: msg.SenderID, RecipientID: me, MessageData: stored})
		}
		r.store.IncrementUnread(key)
	}
	r.mu.Unlock()
	if !inserted {
		return outcomeIgnored
	}

	r.persist(ctx, repository.SettingPrivateChats, repository.SettingUnreadData)
	if privileged {
		r.views.RefreshMonitor()
	}
	r.alert(key, false, "New message from "+r.store.Directory().Name(msg.SenderID), stored)
	r.views.RefreshConversation(key, models.ConversationPrivate)
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onGroupMessage(ctx context.Context, senderID string, event *events.GroupMessage) string {
	me := r.store.UserID()
	msg := event.Message
	if msg.SenderID != senderID || msg.SenderID == me {
		return outcomeIgnored
	}
	group, known := r.store.Group(event.GroupID)
	privileged := r.store.IsPrivileged()
	outcome := outcomeIgnored
	member := known && group.HasMember(me)
	inserted := false

	if member {
		var stored models.Message
		r.mu.Lock()
		stored, inserted = r.store.AddGroupMessage(event.GroupID, msg)
		if inserted {
			r.store.IncrementUnread(event.GroupID)
		}
		r.mu.Unlock()

		if inserted {
			r.persist(ctx, repository.SettingGroupChats, repository.SettingUnreadData)
			r.alert(event.GroupID, true, r.store.Directory().Name(msg.SenderID)+" in "+group.Name, stored)
			r.views.RefreshConversation(event.GroupID, models.ConversationGroup)
			r.views.RefreshHub()
			outcome = outcomeApplied
		}
	}

	// A member gm only records the first delivery of a message.
	if privileged && (!member || inserted) {
		groupName := group.Name
		if !known || groupName == "" {
			groupName = unknownGroupName
		}
		r.mu.Lock()
		r.store.AddIntercepted(models.InterceptedMessage{
			SenderID:    msg.SenderID,
			GroupID:     event.GroupID,
			GroupName:   groupName,
			MessageData: msg,
		})
		r.mu.Unlock()
		r.views.RefreshMonitor()
		outcome = outcomeApplied
	}
	return outcome
}

func (r *Relay) onTyping(senderID string, event *events.Typing) string {
	if event.UserID != senderID {
		return outcomeIgnored
	}
	r.mu.Lock()
	changed := r.store.SetTyping(event.ConversationID, event.UserID, event.IsTyping)
	r.mu.Unlock()
	if !changed {
		return outcomeIgnored
	}
	r.views.RefreshTyping(event.ConversationID, conversationType(event.IsGroup))
	return outcomeApplied
}

func (r *Relay) onEditMessage(ctx context.Context, senderID string, event *events.EditMessage) string {
	if !r.mayAlter(senderID, event.ConversationID, event.IsGroup, event.MessageID) {
		return outcomeIgnored
	}
	r.mu.Lock()
	applied := r.store.ApplyEdit(event.ConversationID, event.IsGroup, event.MessageID, event.NewContent, event.EditedAt)
	r.mu.Unlock()
	if !applied {
		return outcomeIgnored
	}
	r.persist(ctx, historySetting(event.IsGroup))
	r.views.RefreshConversation(event.ConversationID, conversationType(event.IsGroup))
	return outcomeApplied
}

func (r *Relay) onDeleteMessage(ctx context.Context, senderID string, event *events.DeleteMessage) string {
	if !r.mayAlter(senderID, event.ConversationID, event.IsGroup, event.MessageID) {
		return outcomeIgnored
	}
	r.mu.Lock()
	deleted := r.store.DeleteMessage(event.ConversationID, event.IsGroup, event.MessageID)
	r.mu.Unlock()
	if !deleted {
		return outcomeIgnored
	}
	r.persist(ctx, historySetting(event.IsGroup))
	r.views.RefreshConversation(event.ConversationID, conversationType(event.IsGroup))
	return outcomeApplied
}

func (r *Relay) onAddReaction(ctx context.Context, senderID string, event *events.AddReaction) string {
	if event.UserID != senderID {
		return outcomeIgnored
	}
	r.mu.Lock()
	toggled := r.store.ToggleReaction(event.ConversationID, event.IsGroup, event.MessageID, event.Emoji, event.UserID)
	r.mu.Unlock()
	if !toggled {
		return outcomeIgnored
	}
	r.persist(ctx, historySetting(event.IsGroup))
	r.views.RefreshConversation(event.ConversationID, conversationType(event.IsGroup))
	return outcomeApplied
}

func (r *Relay) onPinMessage(ctx context.Context, event *events.PinMessage) string {
	outcome := outcomeIgnored
	if r.pinsMode == PinsShared {
		r.mu.Lock()
		changed := r.store.SetPinned(event.ConversationID, event.MessageID, event.IsPinned)
		r.mu.Unlock()
		if changed {
			r.persist(ctx, repository.SettingPinnedMessages)
			outcome = outcomeApplied
		}
	}
	r.views.RefreshConversation(event.ConversationID, conversationType(event.IsGroup))
	return outcome
}

func (r *Relay) onRenameGroup(ctx context.Context, event *events.RenameGroup) string {
	name := r.plain.Sanitize(event.NewName)
	r.mu.Lock()
	renamed := r.store.RenameGroup(event.GroupID, name)
	r.mu.Unlock()
	if !renamed {
		return outcomeIgnored
	}
	r.persist(ctx, repository.SettingGroupChats)
	r.views.RefreshConversation(event.GroupID, models.ConversationGroup)
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onAddGroupMember(ctx context.Context, senderID string, event *events.AddGroupMember) string {
	if !r.fromGM(senderID, events.TypeAddGroupMember) {
		return outcomeIgnored
	}
	r.mu.Lock()
	added := r.store.AddGroupMember(event.GroupID, event.UserID)
	r.mu.Unlock()
	if !added {
		return outcomeIgnored
	}
	r.persist(ctx, repository.SettingGroupChats)
	r.views.RefreshConversation(event.GroupID, models.ConversationGroup)
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onRemoveGroupMember(ctx context.Context, senderID string, event *events.RemoveGroupMember) string {
	if !r.fromGM(senderID, events.TypeRemoveGroupMember) {
		return outcomeIgnored
	}
	r.mu.Lock()
	removed := r.store.RemoveGroupMember(event.GroupID, event.UserID)
	r.mu.Unlock()
	if !removed {
		return outcomeIgnored
	}
	r.persist(ctx, repository.SettingGroupChats)
	if event.UserID == r.store.UserID() {
		r.views.CloseConversation(event.GroupID, models.ConversationGroup)
	} else {
		r.views.RefreshConversation(event.GroupID, models.ConversationGroup)
	}
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onClearConversation(ctx context.Context, senderID string, event *events.ClearConversation) string {
	if !r.fromGM(senderID, events.TypeClearConversation) {
		return outcomeIgnored
	}
	r.mu.Lock()
	cleared := r.store.ClearHistory(event.ConversationID, event.IsGroup)
	r.mu.Unlock()
	if !cleared {
		return outcomeIgnored
	}
	r.persist(ctx, historySetting(event.IsGroup))
	r.views.RefreshConversation(event.ConversationID, conversationType(event.IsGroup))
	return outcomeApplied
}

func (r *Relay) onGroupCreate(ctx context.Context, event *events.GroupCreate) string {
	group := event.Group
	group.Name = r.plain.Sanitize(group.Name)
	r.mu.Lock()
	inserted := r.store.PutGroup(group)
	r.mu.Unlock()
	if !inserted {
		return outcomeIgnored
	}
	r.persist(ctx, repository.SettingGroupChats)
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onGroupDelete(ctx context.Context, senderID string, event *events.GroupDelete) string {
	if !r.fromGM(senderID, events.TypeGroupDelete) {
		return outcomeIgnored
	}
	r.mu.Lock()
	deleted := r.store.DeleteGroup(event.GroupID)
	r.mu.Unlock()
	if !deleted {
		return outcomeIgnored
	}
	r.persist(ctx,
		repository.SettingGroupChats,
		repository.SettingUnreadData,
		repository.SettingFavorites,
		repository.SettingMuted,
		repository.SettingPinnedMessages,
	)
	r.views.CloseConversation(event.GroupID, models.ConversationGroup)
	r.views.RefreshHub()
	return outcomeApplied
}

func (r *Relay) onBackgroundUpdate(ctx context.Context, senderID string, event *events.BackgroundUpdate) string {
	if event.UserID != senderID {
		return outcomeIgnored
	}
	background := ""
	if event.Shared {
		background = r.plain.Sanitize(event.Background)
	}
	r.mu.Lock()
	r.store.SetSharedBackground(event.UserID, background)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingSharedBackgrounds)
	r.views.ApplyBackground(event.UserID, background)
	return outcomeApplied
}

func (r *Relay) onThemeUpdate(ctx context.Context, senderID string, event *events.ThemeUpdate) string {
	if !r.fromGM(senderID, events.TypeThemeUpdate) {
		return outcomeIgnored
	}
	theme := r.plain.Sanitize(event.Theme)
	r.mu.Lock()
	r.store.SetTheme(theme)
	r.mu.Unlock()

	r.persist(ctx, repository.SettingGlobalTheme)
	r.views.ApplyTheme(theme)
	return outcomeApplied
}
