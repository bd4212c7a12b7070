// Package events defines the closed set of broadcast events exchanged between
// sessions on the shared channel. Every event is a pointer to one of the
// payload structs below; receivers match on them with an exhaustive type switch.
package events

import (
	"errors"
	"fmt"

	"github.com/noah-isme/runar/internal/models"
)

// Type is the wire tag of an event.
type Type string

// Event wire tags.
const (
	TypePrivateMessage    Type = "privateMessage"
	TypeGroupMessage      Type = "groupMessage"
	TypeTyping            Type = "typing"
	TypeEditMessage       Type = "editMessage"
	TypeDeleteMessage     Type = "deleteMessage"
	TypeAddReaction       Type = "addReaction"
	TypePinMessage        Type = "pinMessage"
	TypeRenameGroup       Type = "renameGroup"
	TypeAddGroupMember    Type = "addGroupMember"
	TypeRemoveGroupMember Type = "removeGroupMember"
	TypeClearConversation Type = "clearConversation"
	TypeGroupCreate       Type = "groupCreate"
	TypeGroupDelete       Type = "groupDelete"
	TypeBackgroundUpdate  Type = "backgroundUpdate"
	TypeThemeUpdate       Type = "themeUpdate"
)

// ErrUnknownType is returned when a frame carries a tag outside the closed set.
var ErrUnknownType = errors.New("unknown event type")

// Event is implemented only by the payload types in this package.
type Event interface {
	EventType() Type
	sealed()
}

// PrivateMessage delivers a direct message, or a monitoring copy when IsRelay is set.
type PrivateMessage struct {
	RecipientID         string         `json:"recipientId" validate:"required,max=64"`
	Message             models.Message `json:"message"`
	IsRelay             bool           `json:"isRelay,omitempty"`
	OriginalSenderID    string         `json:"originalSenderId,omitempty"`
	OriginalRecipientID string         `json:"originalRecipientId,omitempty"`
}

// GroupMessage delivers a message to group members.
type GroupMessage struct {
	GroupID string         `json:"groupId" validate:"required,max=64"`
	Message models.Message `json:"message"`
}

// Typing reports a typing state change.
type Typing struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	UserID         string `json:"userId" validate:"required,max=64"`
	IsTyping       bool   `json:"isTyping"`
	IsGroup        bool   `json:"isGroup"`
}

// EditMessage replaces a message's content.
type EditMessage struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	MessageID      string `json:"messageId" validate:"required,max=64"`
	NewContent     string `json:"newContent" validate:"required,max=4000"`
	EditedAt       int64  `json:"editedAt,omitempty"`
	IsGroup        bool   `json:"isGroup"`
}

// DeleteMessage removes a message.
type DeleteMessage struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	MessageID      string `json:"messageId" validate:"required,max=64"`
	IsGroup        bool   `json:"isGroup"`
}

// AddReaction toggles a user's emoji reaction.
type AddReaction struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	MessageID      string `json:"messageId" validate:"required,max=64"`
	Emoji          string `json:"emoji" validate:"required,max=32"`
	UserID         string `json:"userId" validate:"required,max=64"`
	IsGroup        bool   `json:"isGroup"`
}

// PinMessage reports a pin toggle.
type PinMessage struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	MessageID      string `json:"messageId" validate:"required,max=64"`
	IsPinned       bool   `json:"isPinned"`
	IsGroup        bool   `json:"isGroup"`
}

// RenameGroup renames a group.
type RenameGroup struct {
	GroupID string `json:"groupId" validate:"required,max=64"`
	NewName string `json:"newName" validate:"required,max=128"`
}

// AddGroupMember adds a member to a group.
type AddGroupMember struct {
	GroupID string `json:"groupId" validate:"required,max=64"`
	UserID  string `json:"userId" validate:"required,max=64"`
}

// RemoveGroupMember removes a member from a group.
type RemoveGroupMember struct {
	GroupID string `json:"groupId" validate:"required,max=64"`
	UserID  string `json:"userId" validate:"required,max=64"`
}

// ClearConversation truncates a conversation history.
type ClearConversation struct {
	ConversationID string `json:"conversationId" validate:"required,max=160"`
	IsGroup        bool   `json:"isGroup"`
}

// GroupCreate announces a newly created group.
type GroupCreate struct {
	Group models.GroupChat `json:"group"`
}

// GroupDelete removes a group everywhere.
type GroupDelete struct {
	GroupID string `json:"groupId" validate:"required,max=64"`
}

// BackgroundUpdate shares (or withdraws) a user's chat background.
type BackgroundUpdate struct {
	UserID     string `json:"userId" validate:"required,max=64"`
	Background string `json:"background,omitempty" validate:"omitempty,max=512"`
	Shared     bool   `json:"shared"`
}

// ThemeUpdate switches the global theme.
type ThemeUpdate struct {
	Theme string `json:"theme" validate:"required,max=64"`
}

func (*PrivateMessage) EventType() Type { return TypePrivateMessage }
func (*GroupMessage) EventType() Type { return TypeGroupMessage }
func (*Typing) EventType() Type { return TypeTyping }
func (*EditMessage) EventType() Type { return TypeEditMessage }
func (*DeleteMessage) EventType() Type { return TypeDeleteMessage }
func (*AddReaction) EventType() Type { return TypeAddReaction }
func (*PinMessage) EventType() Type { return TypePinMessage }
func (*RenameGroup) EventType() Type { return TypeRenameGroup }
func (*AddGroupMember) EventType() Type { return TypeAddGroupMember }
func (*RemoveGroupMember) EventType() Type { return TypeRemoveGroupMember }
func (*ClearConversation) EventType() Type { return TypeClearConversation }
func (*GroupCreate) EventType() Type { return TypeGroupCreate }
func (*GroupDelete) EventType() Type { return TypeGroupDelete }
func (*BackgroundUpdate) EventType() Type { return TypeBackgroundUpdate }
func (*ThemeUpdate) EventType() Type { return TypeThemeUpdate }

func (*PrivateMessage) sealed() {}
func (*GroupMessage) sealed() {}
func (*Typing) sealed() {}
func (*EditMessage) sealed() {}
func (*DeleteMessage) sealed() {}
func (*AddReaction) sealed() {}
func (*PinMessage) sealed() {}
func (*RenameGroup) sealed() {}
func (*AddGroupMember) sealed() {}
func (*RemoveGroupMember) sealed() {}
func (*ClearConversation) sealed() {}
func (*GroupCreate) sealed() {}
func (*GroupDelete) sealed() {}
func (*BackgroundUpdate) sealed() {}
func (*ThemeUpdate) sealed() {}

// New allocates an empty payload for the given tag, ready to be decoded into.
func New(t Type) (Event, error) {
	switch t {
	case TypePrivateMessage:
		return &PrivateMessage{}, nil
	case TypeGroupMessage:
		return &GroupMessage{}, nil
	case TypeTyping:
		return &Typing{}, nil
	case TypeEditMessage:
		return &EditMessage{}, nil
	case TypeDeleteMessage:
		return &DeleteMessage{}, nil
	case TypeAddReaction:
		return &AddReaction{}, nil
	case TypePinMessage:
		return &PinMessage{}, nil
	case TypeRenameGroup:
		return &RenameGroup{}, nil
	case TypeAddGroupMember:
		return &AddGroupMember{}, nil
	case TypeRemoveGroupMember:
		return &RemoveGroupMember{}, nil
	case TypeClearConversation:
		return &ClearConversation{}, nil
	case TypeGroupCreate:
		return &GroupCreate{}, nil
	case TypeGroupDelete:
		return &GroupDelete{}, nil
	case TypeBackgroundUpdate:
		return &BackgroundUpdate{}, nil
	case TypeThemeUpdate:
		return &ThemeUpdate{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Decode allocates the payload for t and fills it using unmarshal.
func Decode(t Type, unmarshal func(target any) error) (Event, error) {
	event, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := unmarshal(event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return event, nil
}

// Envelope is the {type, payload} unit carried on the channel, stamped with the emitting user.
type Envelope struct {
	Type     Type
	SenderID string
	Event    Event
}

// NewEnvelope wraps an event for emission by senderID.
func NewEnvelope(senderID string, event Event) Envelope {
	return Envelope{Type: event.EventType(), SenderID: senderID, Event: event}
}
