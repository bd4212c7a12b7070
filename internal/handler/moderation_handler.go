package handler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/service"
	"github.com/noah-isme/runar/internal/utils"
)

// ModerationHandler serves the gm's cross-conversation views.
type ModerationHandler struct {
	relay     ChatRelay
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewModerationHandler constructs a moderation handler.
func NewModerationHandler(relay ChatRelay, validate *validator.Validate, logger zerolog.Logger) *ModerationHandler {
	return &ModerationHandler{
		relay:     relay,
		validator: validate,
		logger:    logger.With().Str("component", "moderation_handler").Logger(),
	}
}

// Register binds moderation routes. Callers are expected to guard the group with the gm role.
func (h *ModerationHandler) Register(router fiber.Router) {
	router.Get("/messages", h.allMessages)
	router.Get("/monitor", h.monitor)
	router.Get("/conversations/:id/messages", h.conversationMessages)
	router.Delete("/conversations/:id/messages", h.clear)
	router.Get("/conversations/:id/export", h.export)
	router.Put("/theme", h.theme)
}

func (h *ModerationHandler) allMessages(c *fiber.Ctx) error {
	store := h.relay.Store()

	var (
		messages []dto.AnnotatedMessage
		err      error
	)
	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		messages, err = store.MessagesByUser(userID)
	} else {
		messages, err = store.AllMessages()
	}
	if err != nil {
		return respondError(c, h.logger, err, "list messages")
	}
	return utils.OK(c, messages, "messages retrieved", fiber.Map{"total": len(messages)})
}

func (h *ModerationHandler) monitor(c *fiber.Ctx) error {
	if !h.relay.Store().IsPrivileged() {
		return respondError(c, h.logger, service.ErrNotPrivileged, "monitor")
	}
	return utils.SendSuccess(c, "monitor retrieved", h.relay.Store().Intercepted())
}

func (h *ModerationHandler) conversationMessages(c *fiber.Ctx) error {
	messages, err := h.relay.Store().MessagesByConversation(c.Params("id"), parseQueryBool(c, "group"))
	if err != nil {
		return respondError(c, h.logger, err, "list messages")
	}
	return utils.OK(c, messages, "messages retrieved", fiber.Map{"total": len(messages)})
}

func (h *ModerationHandler) clear(c *fiber.Ctx) error {
	if err := h.relay.ClearConversation(requestContext(c), c.Params("id"), parseQueryBool(c, "group")); err != nil {
		return respondError(c, h.logger, err, "clear conversation")
	}
	return utils.SendSuccess(c, "conversation cleared", nil)
}

func (h *ModerationHandler) export(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	document, err := h.relay.Store().ExportConversation(conversationID, parseQueryBool(c, "group"))
	if err != nil {
		return respondError(c, h.logger, err, "export conversation")
	}
	if document == nil {
		return utils.SendError(c, fiber.StatusNotFound, "no messages to export")
	}

	if !parseQueryBool(c, "download") {
		return utils.SendSuccess(c, "conversation exported", document)
	}

	payload, err := service.MarshalExport(document)
	if err != nil {
		return respondError(c, h.logger, err, "export conversation")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "chat-export-"+conversationID+".json"))
	return c.Send(payload)
}

func (h *ModerationHandler) theme(c *fiber.Ctx) error {
	var req dto.ThemeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.relay.UpdateTheme(requestContext(c), req.Theme); err != nil {
		return respondError(c, h.logger, err, "update theme")
	}
	return utils.SendSuccess(c, "theme updated", req)
}
