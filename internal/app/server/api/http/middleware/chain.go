package middleware

import (
	"github.com/danielgtaylor/huma/v2"
)

// Func сигнатура middleware Huma
type Func = func(ctx huma.Context, next func(huma.Context))

// Chain собирает наборы middleware для публичных и защищенных операций.
// Логгер всегда идет первым, чтобы отказы авторизации тоже попадали в лог.
type Chain struct {
	common []Func
	auth   []Func
}

// NewChain создает цепочку с общими middleware
func NewChain(common ...Func) *Chain {
	return &Chain{common: common}
}

// WithAuth добавляет middleware авторизации для защищенных операций
func (c *Chain) WithAuth(auth ...Func) *Chain {
	c.auth = append(c.auth, auth...)
	return c
}

// Public возвращает middleware для операций без авторизации
func (c *Chain) Public() huma.Middlewares {
	out := make(huma.Middlewares, 0, len(c.common))
	for _, mw := range c.common {
		out = append(out, mw)
	}
	return out
}

// Protected возвращает middleware для операций, требующих токен
func (c *Chain) Protected() huma.Middlewares {
	out := c.Public()
	for _, mw := range c.auth {
		out = append(out, mw)
	}
	return out
}
