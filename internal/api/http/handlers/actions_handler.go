package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-desk/internal/api/dto"
	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/bot"
	apperrors "github.com/spec-kit/maintenance-desk/pkg/util"
)

// ActionEngine handles one inbound chat action.
type ActionEngine interface {
	Handle(ctx context.Context, action bot.Action) (*bot.Response, error)
}

// ActionsHandler is the ingress for the chat gateway.
type ActionsHandler struct {
	engine ActionEngine
	logger *zap.Logger
}

// NewActionsHandler constructs handler.
func NewActionsHandler(engine ActionEngine, logger *zap.Logger) *ActionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionsHandler{engine: engine, logger: logger}
}

// Handle POST /v1/actions.
func (h *ActionsHandler) Handle(c *fiber.Ctx) error {
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == 0 {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	if req.Text == "" && req.Callback == "" && req.PhotoID == "" {
		return apperrors.NewValidationError("one of text, callback, photo_id required", nil)
	}

	gateway := "anonymous"
	if principal, ok := auth.PrincipalFromContext(c); ok {
		gateway = principal.ClientID
	}
	h.logger.Debug("action received",
		zap.String("client_id", gateway),
		zap.Int64("actor_id", req.ActorID))

	resp, err := h.engine.Handle(c.UserContext(), bot.Action{
		ActorID:  req.ActorID,
		Handle:   req.Handle,
		Name:     req.Name,
		Text:     req.Text,
		Callback: req.Callback,
		PhotoID:  req.PhotoID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ActionResponse{
		Role:    string(resp.Role),
		Replies: resp.Replies,
	}})
}
