package dto

import (
	"github.com/noah-isme/runar/internal/models"
)

// SendMessageRequest is the payload a local user submits to post into a conversation.
type SendMessageRequest struct {
	Content     string `json:"content" validate:"required,min=1,max=4000"`
	ReplyToID   string `json:"replyToId" validate:"omitempty,max=64"`
	SpeakerName string `json:"speakerName" validate:"omitempty,max=128"`
	SpeakerImg  string `json:"speakerImg" validate:"omitempty,max=512"`
}

// EditMessageRequest replaces the content of an existing message.
type EditMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
	Group   bool   `json:"group"`
}

// ReactionRequest toggles an emoji reaction for the local user.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
	Group bool   `json:"group"`
}

// TypingRequest reports a keystroke (typing=true) or an explicit stop.
type TypingRequest struct {
	Group  bool `json:"group"`
	Typing bool `json:"typing"`
}

// CreateGroupRequest creates a group with the local user plus the listed members.
type CreateGroupRequest struct {
	Name    string   `json:"name" validate:"omitempty,max=128"`
	Members []string `json:"members" validate:"required,min=1,dive,required,max=64"`
}

// RenameGroupRequest renames a group.
type RenameGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

// GroupMemberRequest adds a member to a group.
type GroupMemberRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

// BackgroundRequest updates the local user's chat background.
type BackgroundRequest struct {
	Path   string `json:"path" validate:"omitempty,max=512"`
	Shared bool   `json:"shared"`
}

// PresenceRequest reports a user's connection state as seen by the host.
type PresenceRequest struct {
	Active bool `json:"active"`
}

// ThemeRequest updates the global theme.
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,max=64"`
}

// MessagePage is one page of a conversation history.
type MessagePage struct {
	Messages      []models.Message `json:"messages"`
	TotalPages    int              `json:"totalPages"`
	CurrentPage   int              `json:"currentPage"`
	TotalMessages int              `json:"totalMessages"`
}

// AnnotatedMessage is a message flattened out of its conversation for moderation views.
type AnnotatedMessage struct {
	models.Message
	ConversationID   string `json:"conversationId"`
	ConversationType string `json:"conversationType"`
	ConversationName string `json:"conversationName"`
}

// ConversationSummary describes a conversation for hub listings.
type ConversationSummary struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	UnreadCount  int      `json:"unreadCount"`
	LastActivity int64    `json:"lastActivity"`
	LastActive   string   `json:"lastActive,omitempty"`
	IsFavorite   bool     `json:"isFavorite"`
	IsMuted      bool     `json:"isMuted"`
	MessageCount int      `json:"messageCount"`
}

// ConversationExport is the document produced by a moderation export.
type ConversationExport struct {
	ConversationName string          `json:"conversationName"`
	ConversationType string          `json:"conversationType"`
	ExportDate       string          `json:"exportDate"`
	MessageCount     int             `json:"messageCount"`
	Messages         []ExportMessage `json:"messages"`
}

// ExportMessage is a single exported message line.
type ExportMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Edited    bool   `json:"edited"`
}

// UnreadResponse reports unread totals.
type UnreadResponse struct {
	Total int `json:"total"`
}

// ConversationView is what a view needs to render a conversation.
type ConversationView struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Name        string           `json:"name"`
	Members     []string         `json:"members"`
	Page        MessagePage      `json:"page"`
	TypingUsers []string         `json:"typingUsers"`
	TypingText  string           `json:"typingText,omitempty"`
	Pinned      []string         `json:"pinned"`
	IsFavorite  bool             `json:"isFavorite"`
	IsMuted     bool             `json:"isMuted"`
	Background  string           `json:"background,omitempty"`
	Search      []models.Message `json:"search,omitempty"`
}
