package dto

import "time"

// View update kinds pushed to subscribed UIs.
const (
	ViewRefresh      = "refresh"
	ViewClose        = "close"
	ViewTyping       = "typing"
	ViewMonitor      = "monitor"
	ViewHub          = "hub"
	ViewNotification = "notification"
	ViewBackground   = "background"
	ViewTheme        = "theme"
)

// ViewUpdate is a presentation-layer notice; the UI decides how to re-render.
type ViewUpdate struct {
	Kind             string    `json:"kind"`
	ConversationID   string    `json:"conversationId,omitempty"`
	ConversationType string    `json:"conversationType,omitempty"`
	UserID           string    `json:"userId,omitempty"`
	Value            string    `json:"value,omitempty"`
	Alert            *Alert    `json:"alert,omitempty"`
	SentAt           time.Time `json:"sentAt"`
}

// Alert is a desktop notification plus optional sound cue.
type Alert struct {
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Icon        string  `json:"icon,omitempty"`
	Tag         string  `json:"tag"`
	SoundPath   string  `json:"soundPath,omitempty"`
	SoundVolume float64 `json:"soundVolume,omitempty"`
	Desktop     bool    `json:"desktop"`
}

// ViewClientMessage is sent by a subscribed UI over the view stream.
type ViewClientMessage struct {
	Type string `json:"type" validate:"required,oneof=focus blur ping"`
}
