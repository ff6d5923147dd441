package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) getSettingsOp() huma.Operation {
	return huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/api/v1/settings",
		Summary:     "Get user settings",
		Description: "Returns stored settings or null when the user has none yet",
		Tags:        []string{"settings"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateSettingsOp() huma.Operation {
	return huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings",
		Summary:     "Replace user settings",
		Tags:        []string{"settings"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) listConversationsOp() huma.Operation {
	return huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/api/v1/conversations",
		Summary:     "List conversations",
		Tags:        []string{"conversations"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Merge conversations and settings",
		Description: "Stores each conversation that is new or has a newer updated_at, " +
			"stores settings when newer, and returns the full server state",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteConversationOp() huma.Operation {
	return huma.Operation{
		OperationID: "delete-conversation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/conversations/{id}",
		Summary:     "Delete conversation",
		Tags:        []string{"conversations"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}
