package sync

import "errors"

var (
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrConversationNotFound = errors.New("conversation not found")
)
