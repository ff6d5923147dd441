package sync

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"chatsync/internal/domain/chat"
	"chatsync/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getSettingsOp(), h.getSettings)
	huma.Register(api, h.updateSettingsOp(), h.updateSettings)
	huma.Register(api, h.listConversationsOp(), h.listConversations)
	huma.Register(api, h.syncOp(), h.sync)
	huma.Register(api, h.deleteConversationOp(), h.deleteConversation)
}

func (h *Handler) getSettings(ctx context.Context, _ *getSettingsInput) (*settingsOutput, error) {
	resp, err := h.service.GetSettings(ctx)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &settingsOutput{Body: *resp}, nil
}

func (h *Handler) updateSettings(ctx context.Context, input *updateSettingsInput) (*settingsOutput, error) {
	resp, err := h.service.UpdateSettings(ctx, input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &settingsOutput{Body: *resp}, nil
}

func (h *Handler) listConversations(ctx context.Context, _ *listConversationsInput) (*listConversationsOutput, error) {
	resp, err := h.service.ListConversations(ctx)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &listConversationsOutput{Body: *resp}, nil
}

func (h *Handler) sync(ctx context.Context, input *syncInput) (*syncOutput, error) {
	resp, err := h.service.Sync(ctx, input.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &syncOutput{Body: *resp}, nil
}

func (h *Handler) deleteConversation(ctx context.Context, input *deleteConversationInput) (*deleteConversationOutput, error) {
	resp, err := h.service.DeleteConversation(ctx, input.ID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &deleteConversationOutput{Body: *resp}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, sync.ErrNotAuthenticated):
		return huma.Error401Unauthorized("Not authenticated")
	case errors.Is(err, sync.ErrConversationNotFound):
		return huma.Error404NotFound("Conversation not found")
	case errors.Is(err, chat.ErrInvalidRecord):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		h.log.Error("sync request failed", "error", err)
		return huma.Error500InternalServerError("Internal server error")
	}
}
