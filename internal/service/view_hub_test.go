package service

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/runar/internal/dto"
)

func TestViewHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewViewHub(AlertOptions{}, zerolog.Nop())
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer first.Close()
	require.Equal(t, 2, hub.Subscribers())

	hub.RefreshConversation("alice-bob", "private")

	for _, sub := range []*ViewSubscription{first, second} {
		update := <-sub.Updates()
		require.Equal(t, dto.ViewRefresh, update.Kind)
		require.Equal(t, "alice-bob", update.ConversationID)
		require.False(t, update.SentAt.IsZero())
	}

	second.Close()
	second.Close()
	require.Equal(t, 1, hub.Subscribers())
	_, open := <-second.Updates()
	require.False(t, open)
}

func TestViewHubDropsDesktopAlertWhileFocused(t *testing.T) {
	hub := NewViewHub(AlertOptions{Desktop: true, Sound: true, SoundPath: "sounds/ping.ogg", SoundVolume: 0.5}, zerolog.Nop())
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Alert("alice-bob", "private", dto.Alert{Title: "New message from Alice", Body: "hi"})
	update := <-sub.Updates()
	require.Equal(t, dto.ViewNotification, update.Kind)
	require.NotNil(t, update.Alert)
	require.True(t, update.Alert.Desktop)
	require.Equal(t, "sounds/ping.ogg", update.Alert.SoundPath)
	require.Equal(t, 0.5, update.Alert.SoundVolume)

	sub.SetFocused(true)
	hub.Alert("alice-bob", "private", dto.Alert{Title: "New message from Alice", Body: "again"})
	update = <-sub.Updates()
	require.False(t, update.Alert.Desktop)
	require.Equal(t, "sounds/ping.ogg", update.Alert.SoundPath)
}

func TestViewHubDropsUpdatesForLaggingSubscriber(t *testing.T) {
	hub := NewViewHub(AlertOptions{}, zerolog.Nop())
	sub := hub.Subscribe()
	defer sub.Close()

	for i := 0; i < viewBufferSize+10; i++ {
		hub.RefreshHub()
	}
	require.Len(t, sub.Updates(), viewBufferSize)

	hub.ApplyTheme("dark")
	require.Len(t, sub.Updates(), viewBufferSize)
}
