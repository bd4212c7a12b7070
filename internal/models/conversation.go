package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation kinds used by views, exports, and monitor entries.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Session roles.
const (
	RoleGM     = "gm"
	RolePlayer = "player"
)

// Message is a single chat entry inside a conversation history.
// Timestamps are unix milliseconds, matching the persisted settings shape.
type Message struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	SenderImg      string    `json:"senderImg,omitempty"`
	MessageContent string    `json:"messageContent"`
	Timestamp      int64     `json:"timestamp"`
	Edited         bool      `json:"edited,omitempty"`
	EditedAt       int64     `json:"editedAt,omitempty"`
	Version        int       `json:"version,omitempty"`
	ReplyToID      string    `json:"replyToId,omitempty"`
	Reactions      Reactions `json:"reactions,omitempty"`
	Mentions       []string  `json:"mentions,omitempty"`
}

// Reactions maps an emoji to the ordered list of users that reacted with it.
type Reactions map[string][]string

// Clone returns a deep copy so callers can hand messages out of the store safely.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make(Reactions, len(m.Reactions))
		for emoji, users := range m.Reactions {
			out.Reactions[emoji] = append([]string(nil), users...)
		}
	}
	if m.Mentions != nil {
		out.Mentions = append([]string(nil), m.Mentions...)
	}
	return out
}

// PrivateChat is a two-party conversation keyed by the canonical pair key.
type PrivateChat struct {
	Users   []string  `json:"users"`
	History []Message `json:"history"`
}

// Peer returns the participant that is not userID.
func (c PrivateChat) Peer(userID string) string {
	for _, id := range c.Users {
		if id != userID {
			return id
		}
	}
	return ""
}

// HasUser reports whether userID participates in the chat.
func (c PrivateChat) HasUser(userID string) bool {
	for _, id := range c.Users {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupChat is a named multi-member conversation.
type GroupChat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	History   []Message `json:"history"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt int64     `json:"createdAt,omitempty"`
}

// HasMember reports whether userID is a member of the group.
func (g GroupChat) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// InterceptedMessage is a monitor entry kept by privileged sessions.
type InterceptedMessage struct {
	ID          string  `json:"id"`
	SenderID    string  `json:"senderId"`
	RecipientID string  `json:"recipientId,omitempty"`
	GroupID     string  `json:"groupId,omitempty"`
	GroupName   string  `json:"groupName,omitempty"`
	MessageData Message `json:"messageData"`
	CapturedAt  int64   `json:"capturedAt"`
}

// UnreadData is the persisted snapshot of unread counters and read marks.
type UnreadData struct {
	Counts   map[string]int   `json:"counts"`
	LastRead map[string]int64 `json:"lastRead"`
}

// User is a roster entry supplied by the host session model.
type User struct {
	ID     string `json:"id" mapstructure:"id"`
	Name   string `json:"name" mapstructure:"name"`
	Avatar string `json:"avatar,omitempty" mapstructure:"avatar"`
	Role   string `json:"role" mapstructure:"role"`
	Active bool   `json:"active" mapstructure:"active"`
}

// IsGM reports whether the user carries the privileged role.
func (u User) IsGM() bool {
	return u.Role == RoleGM
}

// Setting is a namespaced key/value row used by the SQL settings backend.
type Setting struct {
	Namespace string         `gorm:"primaryKey;size:64" json:"namespace"`
	Key       string         `gorm:"primaryKey;size:64" json:"key"`
	Value     datatypes.JSON `gorm:"type:json" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}
