package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/middleware"
	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/service"
	"github.com/noah-isme/runar/internal/utils"
)

const maxPageSize = 100

// ChatRelay is the set of relay actions the local API exposes.
type ChatRelay interface {
	Store() *service.ConversationStore
	SendPrivateMessage(ctx context.Context, recipientID string, req dto.SendMessageRequest) (models.Message, error)
	SendGroupMessage(ctx context.Context, groupID string, req dto.SendMessageRequest) (models.Message, error)
	EditMessage(ctx context.Context, conversationID string, isGroup bool, messageID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, conversationID string, isGroup bool, messageID string) error
	ToggleReaction(ctx context.Context, conversationID string, isGroup bool, messageID, emoji string) error
	TogglePin(ctx context.Context, conversationID string, isGroup bool, messageID string) (bool, error)
	ToggleFavorite(ctx context.Context, conversationID string) bool
	ToggleMute(ctx context.Context, conversationID string) bool
	Typing(ctx context.Context, conversationID string, isGroup bool) error
	StopTyping(ctx context.Context, conversationID string, isGroup bool)
	CreateGroup(ctx context.Context, name string, members []string) (models.GroupChat, error)
	RenameGroup(ctx context.Context, groupID, name string) error
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, groupID string) error
	ClearConversation(ctx context.Context, conversationID string, isGroup bool) error
	UpdateBackground(ctx context.Context, path string, shared bool) error
	UpdateTheme(ctx context.Context, theme string) error
	OpenPrivate(ctx context.Context, peerID string, opts service.ViewOptions) (dto.ConversationView, error)
	OpenGroup(ctx context.Context, groupID string, opts service.ViewOptions) (dto.ConversationView, error)
}

// ConversationHandler exposes the local user's chat actions and queries.
type ConversationHandler struct {
	relay     ChatRelay
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewConversationHandler constructs a conversation handler.
func NewConversationHandler(relay ChatRelay, validate *validator.Validate, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		relay:     relay,
		validator: validate,
		logger:    logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ConversationHandler) Register(router fiber.Router) {
	gmOnly := middleware.AuthOptions{Role: middleware.AuthRoleGM}
	sendLimit := middleware.RateLimit("chat_send", 20, 10*time.Second)

	router.Get("/users", h.users)
	router.Put("/users/:userId/presence", h.presence)
	router.Get("/conversations", h.conversations)
	router.Get("/unread", h.unread)

	router.Get("/private/:userId", h.openPrivate)
	router.Post("/private/:userId/messages", sendLimit, h.sendPrivate)

	router.Post("/groups", h.createGroup)
	router.Get("/groups/:groupId", h.openGroup)
	router.Patch("/groups/:groupId", h.renameGroup)
	router.Delete("/groups/:groupId", middleware.WithAuth(h.deleteGroup, gmOnly))
	router.Post("/groups/:groupId/messages", sendLimit, h.sendGroup)
	router.Post("/groups/:groupId/members", middleware.WithAuth(h.addMember, gmOnly))
	router.Delete("/groups/:groupId/members/:userId", middleware.WithAuth(h.removeMember, gmOnly))

	router.Patch("/conversations/:id/messages/:messageId", h.editMessage)
	router.Delete("/conversations/:id/messages/:messageId", h.deleteMessage)
	router.Post("/conversations/:id/messages/:messageId/reactions", h.react)
	router.Post("/conversations/:id/messages/:messageId/pin", h.pin)
	router.Post("/conversations/:id/favorite", h.favorite)
	router.Post("/conversations/:id/mute", h.mute)
	router.Post("/conversations/:id/typing", h.typing)

	router.Put("/background", h.background)
}

func (h *ConversationHandler) users(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "users retrieved", h.relay.Store().Directory().Users())
}

func (h *ConversationHandler) presence(c *fiber.Ctx) error {
	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	directory := h.relay.Store().Directory()
	userID := c.Params("userId")
	if !directory.SetActive(userID, req.Active) {
		return respondError(c, h.logger, service.ErrUnknownUser, "update presence")
	}
	user, _ := directory.User(userID)
	return utils.SendSuccess(c, "presence updated", user)
}

func (h *ConversationHandler) conversations(c *fiber.Ctx) error {
	summaries := h.relay.Store().Conversations(c.Query("sort"))
	return utils.SendSuccess(c, "conversations retrieved", summaries)
}

func (h *ConversationHandler) unread(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "unread retrieved", dto.UnreadResponse{Total: h.relay.Store().TotalUnread()})
}

func (h *ConversationHandler) viewOptions(c *fiber.Ctx) (service.ViewOptions, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return service.ViewOptions{}, err
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return service.ViewOptions{}, err
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return service.ViewOptions{Page: page, PageSize: pageSize, Query: c.Query("q")}, nil
}

func (h *ConversationHandler) openPrivate(c *fiber.Ctx) error {
	opts, err := h.viewOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}
	view, err := h.relay.OpenPrivate(requestContext(c), c.Params("userId"), opts)
	if err != nil {
		return respondError(c, h.logger, err, "open conversation")
	}
	return utils.SendSuccess(c, "conversation opened", view)
}

func (h *ConversationHandler) openGroup(c *fiber.Ctx) error {
	opts, err := h.viewOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}
	view, err := h.relay.OpenGroup(requestContext(c), c.Params("groupId"), opts)
	if err != nil {
		return respondError(c, h.logger, err, "open conversation")
	}
	return utils.SendSuccess(c, "conversation opened", view)
}

func (h *ConversationHandler) sendPrivate(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	msg, err := h.relay.SendPrivateMessage(requestContext(c), c.Params("userId"), req)
	if err != nil {
		return respondError(c, h.logger, err, "send message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", msg)
}

func (h *ConversationHandler) sendGroup(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	msg, err := h.relay.SendGroupMessage(requestContext(c), c.Params("groupId"), req)
	if err != nil {
		return respondError(c, h.logger, err, "send message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", msg)
}

func (h *ConversationHandler) createGroup(c *fiber.Ctx) error {
	var req dto.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if len(req.Members) == 0 {
		req.Members = splitAndTrim(c.Query("members"))
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	group, err := h.relay.CreateGroup(requestContext(c), req.Name, req.Members)
	if err != nil {
		return respondError(c, h.logger, err, "create group")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *ConversationHandler) renameGroup(c *fiber.Ctx) error {
	var req dto.RenameGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.relay.RenameGroup(requestContext(c), c.Params("groupId"), req.Name); err != nil {
		return respondError(c, h.logger, err, "rename group")
	}
	group, _ := h.relay.Store().Group(c.Params("groupId"))
	return utils.SendSuccess(c, "group renamed", group)
}

func (h *ConversationHandler) deleteGroup(c *fiber.Ctx) error {
	if err := h.relay.DeleteGroup(requestContext(c), c.Params("groupId")); err != nil {
		return respondError(c, h.logger, err, "delete group")
	}
	return utils.SendSuccess(c, "group deleted", nil)
}

func (h *ConversationHandler) addMember(c *fiber.Ctx) error {
	var req dto.GroupMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	groupID := c.Params("groupId")
	if err := h.relay.AddGroupMember(requestContext(c), groupID, req.UserID); err != nil {
		return respondError(c, h.logger, err, "add member")
	}
	group, _ := h.relay.Store().Group(groupID)
	return utils.SendSuccess(c, "member added", group)
}

func (h *ConversationHandler) removeMember(c *fiber.Ctx) error {
	groupID := c.Params("groupId")
	if err := h.relay.RemoveGroupMember(requestContext(c), groupID, c.Params("userId")); err != nil {
		return respondError(c, h.logger, err, "remove member")
	}
	group, _ := h.relay.Store().Group(groupID)
	return utils.SendSuccess(c, "member removed", group)
}

func (h *ConversationHandler) editMessage(c *fiber.Ctx) error {
	var req dto.EditMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	msg, err := h.relay.EditMessage(requestContext(c), c.Params("id"), req.Group, c.Params("messageId"), req.Content)
	if err != nil {
		return respondError(c, h.logger, err, "edit message")
	}
	return utils.SendSuccess(c, "message edited", msg)
}

func (h *ConversationHandler) deleteMessage(c *fiber.Ctx) error {
	err := h.relay.DeleteMessage(requestContext(c), c.Params("id"), parseQueryBool(c, "group"), c.Params("messageId"))
	if err != nil {
		return respondError(c, h.logger, err, "delete message")
	}
	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *ConversationHandler) react(c *fiber.Ctx) error {
	var req dto.ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	conversationID, messageID := c.Params("id"), c.Params("messageId")
	if err := h.relay.ToggleReaction(requestContext(c), conversationID, req.Group, messageID, req.Emoji); err != nil {
		return respondError(c, h.logger, err, "toggle reaction")
	}
	msg, _ := h.relay.Store().Message(conversationID, req.Group, messageID)
	return utils.SendSuccess(c, "reaction toggled", msg)
}

func (h *ConversationHandler) pin(c *fiber.Ctx) error {
	pinned, err := h.relay.TogglePin(requestContext(c), c.Params("id"), parseQueryBool(c, "group"), c.Params("messageId"))
	if err != nil {
		return respondError(c, h.logger, err, "toggle pin")
	}
	return utils.SendSuccess(c, "pin toggled", fiber.Map{"pinned": pinned})
}

func (h *ConversationHandler) favorite(c *fiber.Ctx) error {
	on := h.relay.ToggleFavorite(requestContext(c), c.Params("id"))
	return utils.SendSuccess(c, "favorite toggled", fiber.Map{"favorite": on})
}

func (h *ConversationHandler) mute(c *fiber.Ctx) error {
	on := h.relay.ToggleMute(requestContext(c), c.Params("id"))
	return utils.SendSuccess(c, "mute toggled", fiber.Map{"muted": on})
}

func (h *ConversationHandler) typing(c *fiber.Ctx) error {
	var req dto.TypingRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := requestContext(c)
	conversationID := c.Params("id")
	if !req.Typing {
		h.relay.StopTyping(ctx, conversationID, req.Group)
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err := h.relay.Typing(ctx, conversationID, req.Group); err != nil {
		return respondError(c, h.logger, err, "typing")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ConversationHandler) background(c *fiber.Ctx) error {
	var req dto.BackgroundRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.relay.UpdateBackground(requestContext(c), req.Path, req.Shared); err != nil {
		return respondError(c, h.logger, err, "update background")
	}
	return utils.SendSuccess(c, "background updated", req)
}
