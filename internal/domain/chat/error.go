package chat

import (
	"errors"
)

var (
	ErrInvalidRecord       = errors.New("invalid record")
	ErrConversationMissing = errors.New("conversation not found")
)
