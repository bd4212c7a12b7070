package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/runar/internal/config"
	"github.com/noah-isme/runar/internal/database"
	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/handler"
	"github.com/noah-isme/runar/internal/middleware"
	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/repository"
	"github.com/noah-isme/runar/internal/router"
	"github.com/noah-isme/runar/internal/service"
	"github.com/noah-isme/runar/internal/transport"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type testSession struct {
	app   *fiber.App
	relay *service.Relay
	views *service.ViewHub
}

func roster() []models.User {
	return []models.User{
		{ID: "gm", Name: "Game Master", Role: models.RoleGM, Active: true},
		{ID: "alice", Name: "Alice", Role: models.RolePlayer, Active: true},
		{ID: "bob", Name: "Bob", Role: models.RolePlayer, Active: true},
	}
}

func newSession(t *testing.T, bus *transport.MemoryBus, userID, role string) *testSession {
	t.Helper()
	logger := zerolog.New(io.Discard)

	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), userID)
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.MigrateSettings(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := service.NewConversationStore(service.StoreOptions{
		UserID:    userID,
		Role:      role,
		Directory: service.NewDirectory(roster()),
		Settings:  repository.NewSettingsRepository(db, "ragnaroks-runar"),
		Logger:    logger,
	})
	views := service.NewViewHub(service.AlertOptions{Desktop: true}, logger)
	relay := service.NewRelay(service.RelayOptions{
		Store:     store,
		Transport: bus.Connect(transport.Identity{NodeID: userID + "-node", UserID: userID}),
		Views:     views,
		Alerts:    views,
		Validator: validate,
		Logger:    logger,
	})
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(relay.Close)

	cfg := config.Config{AppName: "runar", UserID: userID, Role: role, TransportDriver: "memory"}
	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		ConversationHandler: handler.NewConversationHandler(relay, validate, logger),
		ModerationHandler:   handler.NewModerationHandler(relay, validate, logger),
		ViewStreamHandler:   handler.NewViewStreamHandler(views, validate, logger),
		JWTMiddleware:       middleware.JWTProtected("", middleware.Session{UserID: userID, Role: role}),
	})

	return &testSession{app: app, relay: relay, views: views}
}

func call(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded envelope
	if resp.StatusCode != fiber.StatusNoContent {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(t, json.Unmarshal(raw, &decoded))
		}
	}
	return resp, decoded
}

func TestConversationHandler_SendPrivateAndOpen(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)
	bob := newSession(t, bus, "bob", models.RolePlayer)

	resp, body := call(t, alice.app, http.MethodPost, "/api/v1/chat/private/bob/messages", dto.SendMessageRequest{Content: "hello bob"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)

	var sent models.Message
	require.NoError(t, json.Unmarshal(body.Data, &sent))
	require.NotEmpty(t, sent.ID)
	require.Equal(t, "alice", sent.SenderID)

	resp, body = call(t, bob.app, http.MethodGet, "/api/v1/chat/unread", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var unread dto.UnreadResponse
	require.NoError(t, json.Unmarshal(body.Data, &unread))
	require.Equal(t, 1, unread.Total)

	resp, body = call(t, bob.app, http.MethodGet, "/api/v1/chat/private/alice?page=1&pageSize=10", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view dto.ConversationView
	require.NoError(t, json.Unmarshal(body.Data, &view))
	require.Equal(t, "alice-bob", view.ID)
	require.Len(t, view.Page.Messages, 1)
	require.Equal(t, "hello bob", view.Page.Messages[0].MessageContent)
	require.Equal(t, 0, bob.relay.Store().TotalUnread())

	resp, body = call(t, bob.app, http.MethodGet, "/api/v1/chat/conversations", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var summaries []dto.ConversationSummary
	require.NoError(t, json.Unmarshal(body.Data, &summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, "Alice", summaries[0].Name)
}

func TestConversationHandler_SendRejectsBadInput(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)

	resp, _ := call(t, alice.app, http.MethodPost, "/api/v1/chat/private/bob/messages", dto.SendMessageRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := call(t, alice.app, http.MethodPost, "/api/v1/chat/private/mallory/messages", dto.SendMessageRequest{Content: "hi"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.False(t, body.Success)

	resp, _ = call(t, alice.app, http.MethodGet, "/api/v1/chat/private/bob?page=x", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConversationHandler_OpenClampsPagination(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)
	newSession(t, bus, "bob", models.RolePlayer)

	resp, _ := call(t, alice.app, http.MethodPost, "/api/v1/chat/private/bob/messages", dto.SendMessageRequest{Content: "one"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := call(t, alice.app, http.MethodGet, "/api/v1/chat/private/bob?page=2&pageSize=9223372036854775807", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view dto.ConversationView
	require.NoError(t, json.Unmarshal(body.Data, &view))
	require.Empty(t, view.Page.Messages)
	require.Equal(t, 1, view.Page.TotalPages)

	resp, body = call(t, alice.app, http.MethodGet, "/api/v1/chat/private/bob?page=922337203685477580&pageSize=20", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &view))
	require.Empty(t, view.Page.Messages)
	require.Equal(t, 1, view.Page.TotalMessages)
}

func TestConversationHandler_EditReactAndDelete(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)
	bob := newSession(t, bus, "bob", models.RolePlayer)

	_, body := call(t, alice.app, http.MethodPost, "/api/v1/chat/private/bob/messages", dto.SendMessageRequest{Content: "first"})
	var sent models.Message
	require.NoError(t, json.Unmarshal(body.Data, &sent))
	path := "/api/v1/chat/conversations/alice-bob/messages/" + sent.ID

	resp, _ := call(t, bob.app, http.MethodPatch, path, dto.EditMessageRequest{Content: "hijacked"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, alice.app, http.MethodPatch, path, dto.EditMessageRequest{Content: "first, edited"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	edited, ok := bob.relay.Store().Message("alice-bob", false, sent.ID)
	require.True(t, ok)
	require.Equal(t, "first, edited", edited.MessageContent)
	require.True(t, edited.Edited)

	resp, body = call(t, bob.app, http.MethodPost, path+"/reactions", dto.ReactionRequest{Emoji: "👍"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var reacted models.Message
	require.NoError(t, json.Unmarshal(body.Data, &reacted))
	require.Equal(t, []string{"bob"}, reacted.Reactions["👍"])

	resp, _ = call(t, alice.app, http.MethodDelete, path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, ok = bob.relay.Store().Message("alice-bob", false, sent.ID)
	require.False(t, ok)

	resp, _ = call(t, alice.app, http.MethodDelete, path, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestConversationHandler_TogglesAndTyping(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)

	resp, _ := call(t, alice.app, http.MethodPost, "/api/v1/chat/conversations/alice-bob/typing", dto.TypingRequest{Typing: true})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, alice.app, http.MethodGet, "/api/v1/chat/private/bob", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := call(t, alice.app, http.MethodPost, "/api/v1/chat/conversations/alice-bob/favorite", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"favorite":true}`, string(body.Data))

	resp, body = call(t, alice.app, http.MethodPost, "/api/v1/chat/conversations/alice-bob/mute", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"muted":true}`, string(body.Data))

	resp, _ = call(t, alice.app, http.MethodPost, "/api/v1/chat/conversations/alice-bob/typing", dto.TypingRequest{Typing: true})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, []string{"Alice"}, alice.relay.Store().TypingUsers("alice-bob"))
	resp, _ = call(t, alice.app, http.MethodPost, "/api/v1/chat/conversations/alice-bob/typing", dto.TypingRequest{Typing: false})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Empty(t, alice.relay.Store().TypingUsers("alice-bob"))
}

func TestConversationHandler_GroupAdministrationRequiresGM(t *testing.T) {
	bus := transport.NewMemoryBus()
	gm := newSession(t, bus, "gm", models.RoleGM)
	alice := newSession(t, bus, "alice", models.RolePlayer)

	resp, body := call(t, alice.app, http.MethodPost, "/api/v1/chat/groups", dto.CreateGroupRequest{Members: []string{"bob"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var group models.GroupChat
	require.NoError(t, json.Unmarshal(body.Data, &group))
	require.Equal(t, "Group: Bob", group.Name)

	resp, _ = call(t, alice.app, http.MethodPost, "/api/v1/chat/groups/"+group.ID+"/members", dto.GroupMemberRequest{UserID: "gm"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, gm.app, http.MethodPost, "/api/v1/chat/groups/"+group.ID+"/members", dto.GroupMemberRequest{UserID: "gm"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	synced, ok := alice.relay.Store().Group(group.ID)
	require.True(t, ok)
	require.True(t, synced.HasMember("gm"))

	resp, _ = call(t, alice.app, http.MethodPatch, "/api/v1/chat/groups/"+group.ID, dto.RenameGroupRequest{Name: "Party"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	renamed, _ := gm.relay.Store().Group(group.ID)
	require.Equal(t, "Party", renamed.Name)

	resp, _ = call(t, alice.app, http.MethodDelete, "/api/v1/chat/groups/"+group.ID, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, gm.app, http.MethodDelete, "/api/v1/chat/groups/"+group.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, ok = alice.relay.Store().Group(group.ID)
	require.False(t, ok)
}

func TestViewStreamHandler_PushesUpdates(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = alice.app.Listener(ln) }()
	t.Cleanup(func() { _ = alice.app.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/v1/chat/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return alice.views.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteJSON(dto.ViewClientMessage{Type: "focus"}))

	resp, _ := call(t, alice.app, http.MethodPut, "/api/v1/chat/background", dto.BackgroundRequest{Path: "maps/tavern.webp"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update dto.ViewUpdate
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, dto.ViewBackground, update.Kind)
	require.Equal(t, "alice", update.UserID)
	require.Equal(t, "maps/tavern.webp", update.Value)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return alice.views.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestViewStreamHandler_RequiresUpgrade(t *testing.T) {
	bus := transport.NewMemoryBus()
	alice := newSession(t, bus, "alice", models.RolePlayer)

	resp, _ := call(t, alice.app, http.MethodGet, "/api/v1/chat/ws", nil)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestConversationHandler_PresenceControlsMonitorRelay(t *testing.T) {
	bus := transport.NewMemoryBus()
	gm := newSession(t, bus, "gm", models.RoleGM)
	alice := newSession(t, bus, "alice", models.RolePlayer)
	newSession(t, bus, "bob", models.RolePlayer)

	resp, body := call(t, alice.app, http.MethodPut, "/api/v1/chat/users/gm/presence", dto.PresenceRequest{Active: false})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var user models.User
	require.NoError(t, json.Unmarshal(body.Data, &user))
	require.False(t, user.Active)

	resp, _ = call(t, alice.app, http.MethodPost, "/api/v1/chat/private/bob/messages", dto.SendMessageRequest{Content: "nobody watching"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Empty(t, gm.relay.Store().Intercepted())

	resp, _ = call(t, alice.app, http.MethodPut, "/api/v1/chat/users/mallory/presence", dto.PresenceRequest{Active: true})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
