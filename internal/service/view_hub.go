package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/observability"
)

const viewBufferSize = 64

// ViewNotifier receives re-render requests after the store changes.
type ViewNotifier interface {
	RefreshConversation(conversationID, conversationType string)
	CloseConversation(conversationID, conversationType string)
	RefreshTyping(conversationID, conversationType string)
	RefreshMonitor()
	RefreshHub()
	ApplyBackground(userID, background string)
	ApplyTheme(theme string)
}

// AlertSink surfaces new-message alerts (desktop notification and sound).
type AlertSink interface {
	Alert(conversationID, conversationType string, alert dto.Alert)
}

// AlertOptions control how alerts are rendered.
type AlertOptions struct {
	Desktop     bool
	Sound       bool
	SoundPath   string
	SoundVolume float64
}

// ViewHub fans view updates out to every subscribed UI.
type ViewHub struct {
	mu          sync.RWMutex
	subscribers map[*ViewSubscription]struct{}
	alerts      AlertOptions
	log         zerolog.Logger
}

// ViewSubscription is one connected UI.
type ViewSubscription struct {
	hub     *ViewHub
	updates chan dto.ViewUpdate
	focused bool
	once    sync.Once
}

// NewViewHub constructs an empty hub.
func NewViewHub(alerts AlertOptions, logger zerolog.Logger) *ViewHub {
	return &ViewHub{
		subscribers: make(map[*ViewSubscription]struct{}),
		alerts:      alerts,
		log:         logger.With().Str("component", "view_hub").Logger(),
	}
}

// Subscribe registers a UI. Callers must Close the subscription when done.
func (h *ViewHub) Subscribe() *ViewSubscription {
	sub := &ViewSubscription{hub: h, updates: make(chan dto.ViewUpdate, viewBufferSize)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	observability.ViewSubscribers().Inc()
	return sub
}

// Updates returns the stream of view updates. It is closed by Close.
func (s *ViewSubscription) Updates() <-chan dto.ViewUpdate {
	return s.updates
}

// SetFocused records whether this UI currently has focus.
func (s *ViewSubscription) SetFocused(focused bool) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.focused = focused
}

// Close unregisters the UI.
func (s *ViewSubscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s)
		close(s.updates)
		s.hub.mu.Unlock()
		observability.ViewSubscribers().Dec()
	})
}

// Subscribers returns the number of connected UIs.
func (h *ViewHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *ViewHub) focused() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.focused {
			return true
		}
	}
	return false
}

func (h *ViewHub) broadcast(update dto.ViewUpdate) {
	update.SentAt = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.updates <- update:
		default:
			h.log.Warn().Str("kind", update.Kind).Msg("view subscriber lagging, update dropped")
		}
	}
}

func (h *ViewHub) RefreshConversation(conversationID, conversationType string) {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewRefresh, ConversationID: conversationID, ConversationType: conversationType})
}

func (h *ViewHub) CloseConversation(conversationID, conversationType string) {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewClose, ConversationID: conversationID, ConversationType: conversationType})
}

func (h *ViewHub) RefreshTyping(conversationID, conversationType string) {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewTyping, ConversationID: conversationID, ConversationType: conversationType})
}

func (h *ViewHub) RefreshMonitor() {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewMonitor})
}

func (h *ViewHub) RefreshHub() {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewHub})
}

func (h *ViewHub) ApplyBackground(userID, background string) {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewBackground, UserID: userID, Value: background})
}

func (h *ViewHub) ApplyTheme(theme string) {
	h.broadcast(dto.ViewUpdate{Kind: dto.ViewTheme, Value: theme})
}

// Alert pushes a notification. The desktop part is dropped while any UI has focus.
func (h *ViewHub) Alert(conversationID, conversationType string, alert dto.Alert) {
	alert.Desktop = h.alerts.Desktop && !h.focused()
	if h.alerts.Sound {
		alert.SoundPath = h.alerts.SoundPath
		alert.SoundVolume = h.alerts.SoundVolume
	}
	h.broadcast(dto.ViewUpdate{
		Kind:             dto.ViewNotification,
		ConversationID:   conversationID,
		ConversationType: conversationType,
		Alert:            &alert,
	})
}
