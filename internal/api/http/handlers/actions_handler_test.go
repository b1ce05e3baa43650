package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/maintenance-desk/internal/auth"
	"github.com/spec-kit/maintenance-desk/internal/bot"
	"github.com/spec-kit/maintenance-desk/internal/domain"
)

type stubEngine struct {
	got bot.Action
}

func (s *stubEngine) Handle(_ context.Context, action bot.Action) (*bot.Response, error) {
	s.got = action
	return &bot.Response{Role: domain.RoleResident}, nil
}

func TestActionsHandler_LogsGatewayClient(t *testing.T) {
	tokens := auth.NewTokenManager("secret", 5)
	token, _, err := tokens.GenerateToken("chat-gateway")
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	engine := &stubEngine{}
	app := fiber.New()
	app.Post("/v1/actions", auth.NewAuthMiddleware(tokens).Handle, NewActionsHandler(engine, zap.New(core)).Handle)

	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(`{"actor_id":7,"text":"/start"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), engine.got.ActorID)
	entries := logs.FilterMessage("action received").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "chat-gateway", entries[0].ContextMap()["client_id"])
}

func TestActionsHandler_WithoutAuthIsAnonymous(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Post("/v1/actions", NewActionsHandler(&stubEngine{}, zap.New(core)).Handle)

	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(`{"actor_id":7,"callback":"queue_1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries := logs.FilterMessage("action received").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "anonymous", entries[0].ContextMap()["client_id"])
}
