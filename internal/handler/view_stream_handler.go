package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/dto"
	"github.com/noah-isme/runar/internal/service"
)

const viewKeepalive = 30 * time.Second

// ViewSource hands out view update subscriptions.
type ViewSource interface {
	Subscribe() *service.ViewSubscription
}

// ViewStreamHandler pushes view updates to a connected UI over a websocket.
type ViewStreamHandler struct {
	views     ViewSource
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewViewStreamHandler creates a view stream handler.
func NewViewStreamHandler(views ViewSource, validate *validator.Validate, logger zerolog.Logger) *ViewStreamHandler {
	return &ViewStreamHandler{
		views:     views,
		validator: validate,
		logger:    logger.With().Str("component", "view_stream_handler").Logger(),
	}
}

// Register binds the websocket upgrade route under the provided router group.
func (h *ViewStreamHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *ViewStreamHandler) handleConnection(conn *websocket.Conn) {
	sub := h.views.Subscribe()
	done := make(chan struct{})
	defer func() {
		close(done)
		sub.Close()
		_ = conn.Close()
	}()

	h.logger.Info().Msg("view stream connected")
	go h.writer(conn, sub, done)
	h.reader(conn, sub)
	h.logger.Info().Msg("view stream disconnected")
}

func (h *ViewStreamHandler) reader(conn *websocket.Conn, sub *service.ViewSubscription) {
	for {
		var payload dto.ViewClientMessage
		if err := conn.ReadJSON(&payload); err != nil {
			h.logger.Debug().Err(err).Msg("view read loop ended")
			return
		}
		if err := h.validator.Struct(payload); err != nil {
			h.logger.Warn().Err(err).Msg("invalid view client message")
			continue
		}

		switch payload.Type {
		case "focus":
			sub.SetFocused(true)
		case "blur":
			sub.SetFocused(false)
		}
	}
}

func (h *ViewStreamHandler) writer(conn *websocket.Conn, sub *service.ViewSubscription, done <-chan struct{}) {
	for {
		select {
		case update, ok := <-sub.Updates():
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				h.logger.Debug().Err(err).Msg("view write loop terminated")
				return
			}
		case <-time.After(viewKeepalive):
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				h.logger.Debug().Err(err).Msg("view ping failed")
				return
			}
		case <-done:
			return
		}
	}
}
